package dataset

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ChizhovVadim/nnuetrainer/internal/chess"
	"github.com/ChizhovVadim/nnuetrainer/internal/domain"
	"github.com/ChizhovVadim/nnuetrainer/internal/features"
	"github.com/janpfeifer/must"
)

const testText = `rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1 | 25 | 0.5
r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 2 3 | -40 | 0
4k3/8/8/8/8/8/8/QQQQK3 w - - 0 1 | 3500 | 1
4k3/8/8/3n4/4P3/8/8/4K3 b - - 0 1 | -120 | 0
`

func TestSampleEncoding(t *testing.T) {
	var pos = must.M1(chess.ParseFEN("r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 2 3"))
	var sample = Sample{Pos: pos, CP: -321, Result: ResultDraw}
	var buf [RecordSize]byte
	must.M(EncodeSample(buf[:], &sample))
	decoded, err := DecodeSample(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	if decoded != sample {
		t.Errorf("decoded %v, want %v", decoded.Pos.String(), sample.Pos.String())
	}
	if decoded.WDL() != 0.5 {
		t.Errorf("WDL = %v", decoded.WDL())
	}
}

func TestDecodeSampleErrors(t *testing.T) {
	var pos = must.M1(chess.ParseFEN("4k3/8/8/8/8/8/8/4K3 w - - 0 1"))
	var buf [RecordSize]byte
	must.M(EncodeSample(buf[:], &Sample{Pos: pos}))

	var badResult = buf
	badResult[offsetResult] = 3
	if _, err := DecodeSample(badResult[:]); err == nil {
		t.Error("expected error for bad result")
	}
	var badStm = buf
	badStm[offsetStm] = 2
	if _, err := DecodeSample(badStm[:]); err == nil {
		t.Error("expected error for bad side to move")
	}
	var badPiece = buf
	badPiece[offsetPieces] = 0xFF
	if _, err := DecodeSample(badPiece[:]); err == nil {
		t.Error("expected error for bad piece code")
	}

	var noKings [RecordSize]byte
	binary.LittleEndian.PutUint64(noKings[offsetOccupancy:], 1)
	if _, err := DecodeSample(noKings[:]); err == nil {
		t.Error("expected error for position without kings")
	}
	// drop the first piece of the record, the white king
	var oneKing = buf
	var occupancy = binary.LittleEndian.Uint64(buf[offsetOccupancy:])
	binary.LittleEndian.PutUint64(oneKing[offsetOccupancy:], occupancy&(occupancy-1))
	oneKing[offsetPieces] = buf[offsetPieces] >> 4
	if _, err := DecodeSample(oneKing[:]); err == nil {
		t.Error("expected error for position with one king")
	}
}

func TestReaderTruncated(t *testing.T) {
	var pos = must.M1(chess.ParseFEN("4k3/8/8/8/8/8/8/4K3 w - - 0 1"))
	var buf bytes.Buffer
	var w = NewWriter(&buf)
	must.M(w.Write(&Sample{Pos: pos, CP: 10, Result: ResultWin}))
	must.M(w.Flush())
	buf.Write([]byte{1, 2, 3})

	var r = NewReader(&buf)
	if _, err := r.Read(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Read(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want unexpected EOF", err)
	}
}

func TestParseTextSampleSideToMove(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantCP     int16
		wantResult uint8
	}{
		{"white win", "4k3/8/8/8/8/8/8/4KQ2 w - - 0 1 | 200 | 1", 200, ResultWin},
		{"black loses", "4k3/8/8/8/8/8/8/4KQ2 b - - 0 1 | 200 | 1", -200, ResultLoss},
		{"black wins", "4k3/8/8/8/8/8/8/4KQ2 b - - 0 1 | -150 | 0", 150, ResultWin},
		{"black draw", "4k3/8/8/8/8/8/8/4KQ2 b - - 0 1 | 30 | 0.5", -30, ResultDraw},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample, ok, err := ParseTextSample(tt.line)
			if err != nil || !ok {
				t.Fatalf("ok = %v, err = %v", ok, err)
			}
			if sample.CP != tt.wantCP || sample.Result != tt.wantResult {
				t.Errorf("cp = %v, result = %v, want %v, %v", sample.CP, sample.Result, tt.wantCP, tt.wantResult)
			}
		})
	}
}

func TestParseTextSample(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		ok      bool
		wantErr bool
	}{
		{"draw", "4k3/8/8/8/8/8/8/4K3 w - - 0 1 | 0 | 0.5", true, false},
		{"big score", "4k3/8/8/8/8/8/8/4K3 w - - 0 1 | -3001 | 0", false, false},
		{"big score black", "4k3/8/8/8/8/8/8/4K3 b - - 0 1 | 3001 | 1", false, false},
		{"score limit", "4k3/8/8/8/8/8/8/4K3 w - - 0 1 | 3000 | 1", true, false},
		{"bad result", "4k3/8/8/8/8/8/8/4K3 w - - 0 1 | 0 | 0.7", false, true},
		{"bad score", "4k3/8/8/8/8/8/8/4K3 w - - 0 1 | x | 0", false, true},
		{"missing field", "4k3/8/8/8/8/8/8/4K3 w - - 0 1 | 0", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := ParseTextSample(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.ok {
				t.Errorf("ok = %v, want %v", ok, tt.ok)
			}
		})
	}
}

func TestConvertText(t *testing.T) {
	var buf bytes.Buffer
	var w = NewWriter(&buf)
	stats, err := ConvertText(context.Background(), strings.NewReader(testText), w, 2)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Lines != 4 || stats.Written != 3 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if buf.Len() != 3*RecordSize {
		t.Errorf("output size = %v", buf.Len())
	}
}

func TestConvertTextBadLine(t *testing.T) {
	var w = NewWriter(io.Discard)
	_, err := ConvertText(context.Background(), strings.NewReader(testText+"garbage\n"), w, 2)
	if err == nil || !strings.Contains(err.Error(), "line 5") {
		t.Errorf("err = %v, want error at line 5", err)
	}
}

func writeTestFiles(t *testing.T, counts ...int) []string {
	var pos = must.M1(chess.ParseFEN("4k3/8/8/3n4/4P3/8/8/4K3 w - - 0 1"))
	var dir = t.TempDir()
	var paths []string
	for i, count := range counts {
		var samples = make([]Sample, count)
		for j := range samples {
			samples[j] = Sample{Pos: pos, CP: int16(100*i + j), Result: ResultWin}
		}
		var path = filepath.Join(dir, string(rune('a'+i))+".bin")
		must.M(WriteSampleFile(path, samples))
		paths = append(paths, path)
	}
	return paths
}

func TestBatchLoaderEpochs(t *testing.T) {
	// 5 samples per pass, batch size 2: two batches, one sample dropped
	var paths = writeTestFiles(t, 3, 2)
	var loader = must.M1(NewBatchLoader(paths, &features.Board768{}, 2))
	defer loader.Close()

	var device = domain.Device{Name: "cpu", Threads: 2}
	var wantNewEpoch = []bool{false, false, true, false, true, false}
	var wantFirstCP = []float32{0, 2, 0, 2, 0, 2}
	for i := range wantNewEpoch {
		newEpoch, batch, err := loader.ReadBatch(device)
		if err != nil {
			t.Fatal(err)
		}
		if newEpoch != wantNewEpoch[i] {
			t.Errorf("batch %v: newEpoch = %v", i, newEpoch)
		}
		if batch.Size != 2 || len(batch.Inputs) != 2 {
			t.Errorf("batch %v: size = %v", i, batch.Size)
		}
		if batch.CP[0] != wantFirstCP[i] {
			t.Errorf("batch %v: cp = %v, want %v", i, batch.CP[0], wantFirstCP[i])
		}
		if batch.WDL[0] != 1 {
			t.Errorf("batch %v: wdl = %v", i, batch.WDL[0])
		}
	}
	if err := loader.Close(); err != nil {
		t.Error(err)
	}
}

func TestBatchLoaderEmptyDataset(t *testing.T) {
	var paths = writeTestFiles(t, 1)
	var loader = must.M1(NewBatchLoader(paths, &features.Board768{}, 2))
	defer loader.Close()

	_, _, err := loader.ReadBatch(domain.Device{Threads: 1})
	if !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("err = %v, want ErrEmptyDataset", err)
	}
}

func TestSampleFiles(t *testing.T) {
	var paths = writeTestFiles(t, 1, 1)
	var dir = filepath.Dir(paths[0])
	must.M(WriteSampleFile(filepath.Join(dir, "notes.txt"), nil))
	files, err := SampleFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0] != paths[0] || files[1] != paths[1] {
		t.Errorf("files = %v", files)
	}
}
