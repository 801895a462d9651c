package trainlog

import (
	"errors"
	"os"
	"testing"
)

func TestSaveAppends(t *testing.T) {
	var dir = t.TempDir()
	var tl = New(dir, "run")
	tl.Update(10_000_001, 0.031)
	tl.Update(20_000_002, 0.029)
	if err := tl.Save(); err != nil {
		t.Fatal(err)
	}
	if err := tl.Save(); err != nil {
		t.Fatal(err)
	}
	tl.Update(30_000_003, 0.027)
	if err := tl.Save(); err != nil {
		t.Fatal(err)
	}

	samples, err := Load(tl.Path())
	if err != nil {
		t.Fatal(err)
	}
	var want = []Sample{{10_000_001, 0.031}, {20_000_002, 0.029}, {30_000_003, 0.027}}
	if len(samples) != len(want) {
		t.Fatalf("samples = %v", samples)
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %v = %v, want %v", i, samples[i], want[i])
		}
	}
}

func TestParseSamplesTruncated(t *testing.T) {
	var data = AppendSample(nil, Sample{Positions: 5, Loss: 0.5})
	data = AppendSample(data, Sample{Positions: 6, Loss: 0.25})
	if _, err := ParseSamples(data[:len(data)-1]); !errors.Is(err, ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir() + "/missing.trainlog"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v", err)
	}
}
