package model

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ChizhovVadim/nnuetrainer/internal/ml"
)

var magic = [4]byte{66, 90, 3, 0}

// Binary layout of the checkpoint file:
// - All the data is stored in little-endian layout
// - The magic number/version consists of 4 bytes:
//   - 66 (which is the ASCII code for B), uint8
//   - 90 (which is the ASCII code for Z), uint8
//   - 3 The major part of the current version number, uint8
//   - 0 The minor part of the current version number, uint8
//
// - 4 bytes (uint32) to denote the number of tensors
// - For every tensor:
//   - 4 bytes (uint32) name length followed by the name
//   - 4 bytes (uint32) rank followed by rank dimensions, 4 bytes (uint32) each
//   - All values as float32, row-major
func SaveParameters(path string, params []*ml.Parameter) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w = bufio.NewWriter(f)
	err = WriteParameters(w, params)
	if err != nil {
		return err
	}
	err = w.Flush()
	if err != nil {
		return err
	}
	return f.Close()
}

func WriteParameters(w io.Writer, params []*ml.Parameter) error {
	var err = binary.Write(w, binary.LittleEndian, magic)
	if err != nil {
		return err
	}
	err = writeUint32(w, len(params))
	if err != nil {
		return err
	}
	for _, p := range params {
		err = writeUint32(w, len(p.Name))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, p.Name)
		if err != nil {
			return err
		}
		err = writeUint32(w, len(p.Shape))
		if err != nil {
			return err
		}
		for _, dim := range p.Shape {
			err = writeUint32(w, dim)
			if err != nil {
				return err
			}
		}
		err = writeSlice(w, p.Data)
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadParameters fills params from a checkpoint file.
// Every parameter must be present with the same shape.
func LoadParameters(path string, params []*ml.Parameter) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = ReadParameters(bufio.NewReader(f), params)
	if err != nil {
		return fmt.Errorf("load %v: %w", path, err)
	}
	return nil
}

func ReadParameters(r io.Reader, params []*ml.Parameter) error {
	var header [4]byte
	var _, err = io.ReadFull(r, header[:])
	if err != nil {
		return err
	}
	if header[0] != magic[0] || header[1] != magic[1] {
		return fmt.Errorf("magic word does not match expected")
	}
	if header != magic {
		return fmt.Errorf("network binary format %v.%v is not supported", header[2], header[3])
	}

	var byName = make(map[string]*ml.Parameter, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}

	count, err := readUint32(r)
	if err != nil {
		return err
	}
	var loaded = make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		nameLen, err := readUint32(r)
		if err != nil {
			return err
		}
		var name = make([]byte, nameLen)
		_, err = io.ReadFull(r, name)
		if err != nil {
			return err
		}
		rank, err := readUint32(r)
		if err != nil {
			return err
		}
		var shape = make([]int, rank)
		var size = 1
		for j := range shape {
			shape[j], err = readUint32(r)
			if err != nil {
				return err
			}
			size *= shape[j]
		}
		var p, found = byName[string(name)]
		if !found {
			return fmt.Errorf("unexpected tensor %v", string(name))
		}
		if !sameShape(p.Shape, shape) {
			return fmt.Errorf("tensor %v shape %v, want %v", p.Name, shape, p.Shape)
		}
		err = readSlice(r, p.Data[:size])
		if err != nil {
			return err
		}
		loaded[p.Name] = struct{}{}
	}
	for _, p := range params {
		if _, found := loaded[p.Name]; !found {
			return fmt.Errorf("tensor %v not found", p.Name)
		}
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeUint32(w io.Writer, v int) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	var _, err = w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (int, error) {
	var buf [4]byte
	var _, err = io.ReadFull(r, buf[:])
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint32(buf[:])), nil
}

func writeSlice(w io.Writer, data []float64) error {
	buf := make([]byte, 4)
	for j := range data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(data[j])))
		_, err := w.Write(buf)
		if err != nil {
			return err
		}
	}
	return nil
}

func readSlice(r io.Reader, data []float64) error {
	buf := make([]byte, 4)
	for j := range data {
		_, err := io.ReadFull(r, buf)
		if err != nil {
			return err
		}
		data[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	}
	return nil
}
