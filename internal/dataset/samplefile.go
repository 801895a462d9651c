package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ChizhovVadim/nnuetrainer/internal/chess"
)

// Binary sample file layout, one 32 byte little-endian record per position:
// - 8 bytes occupancy bitboard
// - 16 bytes piece codes, 4 bits each, in ascending square order of occupancy;
//   code = side*6 + piece type
// - 1 byte side to move (0 white, 1 black)
// - 2 bytes centipawn score, int16, side to move view
// - 1 byte game result (0 loss, 1 draw, 2 win), side to move view
// - 4 bytes reserved
const RecordSize = 32

const (
	offsetOccupancy = 0
	offsetPieces    = 8
	offsetStm       = 24
	offsetScore     = 25
	offsetResult    = 27
)

const (
	ResultLoss = 0
	ResultDraw = 1
	ResultWin  = 2
)

type Sample struct {
	Pos    chess.Position
	CP     int16
	Result uint8
}

// WDL returns the game result as 0, 0.5 or 1.
func (s *Sample) WDL() float32 {
	return float32(s.Result) / 2
}

func EncodeSample(buf []byte, s *Sample) error {
	if len(buf) < RecordSize {
		return fmt.Errorf("buffer too small %v", len(buf))
	}
	if s.Result > ResultWin {
		return fmt.Errorf("bad result %v", s.Result)
	}
	var occupancy = s.Pos.AllPieces()
	if chess.PopCount(occupancy) > 32 {
		return fmt.Errorf("too many pieces %v", chess.PopCount(occupancy))
	}
	clear(buf[:RecordSize])
	binary.LittleEndian.PutUint64(buf[offsetOccupancy:], occupancy)
	var i int
	for x := occupancy; x != 0; x &= x - 1 {
		var pt, side, _ = s.Pos.GetPieceTypeAndSide(chess.FirstOne(x))
		var code = byte(side*chess.PieceTypeNb + pt)
		buf[offsetPieces+i/2] |= code << (4 * uint(i%2))
		i++
	}
	if !s.Pos.WhiteMove {
		buf[offsetStm] = 1
	}
	binary.LittleEndian.PutUint16(buf[offsetScore:], uint16(s.CP))
	buf[offsetResult] = s.Result
	return nil
}

func DecodeSample(buf []byte) (Sample, error) {
	if len(buf) < RecordSize {
		return Sample{}, fmt.Errorf("buffer too small %v", len(buf))
	}
	var s Sample
	var occupancy = binary.LittleEndian.Uint64(buf[offsetOccupancy:])
	if chess.PopCount(occupancy) > 32 {
		return Sample{}, fmt.Errorf("too many pieces %v", chess.PopCount(occupancy))
	}
	var i int
	for x := occupancy; x != 0; x &= x - 1 {
		var code = int(buf[offsetPieces+i/2]>>(4*uint(i%2))) & 0xF
		if code >= 2*chess.PieceTypeNb {
			return Sample{}, fmt.Errorf("bad piece code %v", code)
		}
		s.Pos.Put(code%chess.PieceTypeNb, code/chess.PieceTypeNb, chess.FirstOne(x))
		i++
	}
	switch buf[offsetStm] {
	case 0:
		s.Pos.WhiteMove = true
	case 1:
		s.Pos.WhiteMove = false
	default:
		return Sample{}, fmt.Errorf("bad side to move %v", buf[offsetStm])
	}
	s.CP = int16(binary.LittleEndian.Uint16(buf[offsetScore:]))
	s.Result = buf[offsetResult]
	if s.Result > ResultWin {
		return Sample{}, fmt.Errorf("bad result %v", s.Result)
	}
	var err = s.Pos.Validate()
	if err != nil {
		return Sample{}, err
	}
	return s, nil
}

type Writer struct {
	w     *bufio.Writer
	buf   [RecordSize]byte
	count int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Write(s *Sample) error {
	var err = EncodeSample(w.buf[:], s)
	if err != nil {
		return err
	}
	_, err = w.w.Write(w.buf[:])
	if err != nil {
		return err
	}
	w.count++
	return nil
}

func (w *Writer) Count() int {
	return w.count
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}

type Reader struct {
	r     *bufio.Reader
	buf   [RecordSize]byte
	count int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 1<<16)}
}

// Read returns io.EOF after the last record
// and io.ErrUnexpectedEOF if the input ends inside a record.
func (r *Reader) Read() (Sample, error) {
	var _, err = io.ReadFull(r.r, r.buf[:])
	if err != nil {
		return Sample{}, err
	}
	s, err := DecodeSample(r.buf[:])
	if err != nil {
		return Sample{}, fmt.Errorf("record %v: %w", r.count, err)
	}
	r.count++
	return s, nil
}

func WalkSampleFile(path string, fn func(s Sample) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r = NewReader(f)
	for {
		s, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %v: %w", path, err)
		}
		err = fn(s)
		if err != nil {
			return err
		}
	}
}

func WriteSampleFile(path string, samples []Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w = NewWriter(f)
	for i := range samples {
		err = w.Write(&samples[i])
		if err != nil {
			return err
		}
	}
	err = w.Flush()
	if err != nil {
		return err
	}
	return f.Close()
}
