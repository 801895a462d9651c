package trainlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldPositions protowire.Number = 1
	fieldLoss      protowire.Number = 2
)

var ErrTruncated = errors.New("truncated train log record")

type Sample struct {
	Positions int64
	Loss      float64
}

// TrainLog keeps running loss samples of one training run.
// Save appends samples that are not yet in the file.
type TrainLog struct {
	path    string
	samples []Sample
	saved   int
}

func New(dir, trainID string) *TrainLog {
	return &TrainLog{path: filepath.Join(dir, trainID+".trainlog")}
}

func (tl *TrainLog) Path() string {
	return tl.path
}

func (tl *TrainLog) Samples() []Sample {
	return tl.samples
}

func (tl *TrainLog) Update(positions int64, loss float64) {
	tl.samples = append(tl.samples, Sample{Positions: positions, Loss: loss})
}

func (tl *TrainLog) Save() error {
	if tl.saved == len(tl.samples) {
		return nil
	}
	var err = os.MkdirAll(filepath.Dir(tl.path), 0o755)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(tl.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	var w = bufio.NewWriter(f)
	var buf []byte
	for _, s := range tl.samples[tl.saved:] {
		buf = AppendSample(buf[:0], s)
		_, err = w.Write(buf)
		if err != nil {
			return err
		}
	}
	err = w.Flush()
	if err != nil {
		return err
	}
	err = f.Close()
	if err != nil {
		return err
	}
	tl.saved = len(tl.samples)
	return nil
}

// AppendSample appends a length-delimited record.
func AppendSample(b []byte, s Sample) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, fieldPositions, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(s.Positions))
	msg = protowire.AppendTag(msg, fieldLoss, protowire.Fixed64Type)
	msg = protowire.AppendFixed64(msg, math.Float64bits(s.Loss))
	return protowire.AppendBytes(b, msg)
}

// Load reads all samples of a train log file.
func Load(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	return ParseSamples(data)
}

func ParseSamples(data []byte) ([]Sample, error) {
	var result []Sample
	for len(data) > 0 {
		var msg, n = protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("record %v: %w", len(result), ErrTruncated)
		}
		data = data[n:]
		var s, err = parseSample(msg)
		if err != nil {
			return nil, fmt.Errorf("record %v: %w", len(result), err)
		}
		result = append(result, s)
	}
	return result, nil
}

func parseSample(msg []byte) (Sample, error) {
	var s Sample
	for len(msg) > 0 {
		var num, typ, n = protowire.ConsumeTag(msg)
		if n < 0 {
			return Sample{}, protowire.ParseError(n)
		}
		msg = msg[n:]
		switch {
		case num == fieldPositions && typ == protowire.VarintType:
			var v, m = protowire.ConsumeVarint(msg)
			if m < 0 {
				return Sample{}, protowire.ParseError(m)
			}
			s.Positions = int64(v)
			n = m
		case num == fieldLoss && typ == protowire.Fixed64Type:
			var v, m = protowire.ConsumeFixed64(msg)
			if m < 0 {
				return Sample{}, protowire.ParseError(m)
			}
			s.Loss = math.Float64frombits(v)
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return Sample{}, protowire.ParseError(n)
			}
		}
		msg = msg[n:]
	}
	return s, nil
}
