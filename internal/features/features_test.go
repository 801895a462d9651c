package features

import (
	"slices"
	"testing"

	"github.com/ChizhovVadim/nnuetrainer/internal/chess"
	"github.com/janpfeifer/must"
)

var testFens = []string{
	"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
	"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3",
	"4k3/8/8/3n4/4P3/8/8/4K3 b - - 0 1",
	"8/5k2/8/2q5/8/1R6/4K3/8 w - - 0 1",
}

func TestFeatureRange(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			var fs = must.M1(Get(name))
			for _, fen := range testFens {
				var pos = must.M1(chess.ParseFEN(fen))
				var input = fs.Compute(&pos)
				if len(input.Stm) != len(input.Nstm) {
					t.Errorf("%v: perspectives differ in size %v %v", fen, len(input.Stm), len(input.Nstm))
				}
				if len(input.Stm) > fs.MaxActive() {
					t.Errorf("%v: %v active features, max %v", fen, len(input.Stm), fs.MaxActive())
				}
				for _, index := range append(input.Stm, input.Nstm...) {
					if index < 0 || int(index) >= fs.Size() {
						t.Errorf("%v: index %v out of range", fen, index)
					}
				}
			}
		})
	}
}

func TestFeatureMirrorSymmetry(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			var fs = must.M1(Get(name))
			for _, fen := range testFens {
				var pos = must.M1(chess.ParseFEN(fen))
				var mirror = chess.MirrorPosition(&pos)
				var a = fs.Compute(&pos)
				var b = fs.Compute(&mirror)
				if !sameSet(a.Stm, b.Stm) || !sameSet(a.Nstm, b.Nstm) {
					t.Errorf("%v: features change under colour mirror", fen)
				}
			}
		})
	}
}

func TestBoard768Initial(t *testing.T) {
	var pos = must.M1(chess.ParseFEN(testFens[0]))
	var input = (&Board768{}).Compute(&pos)
	if len(input.Stm) != 32 {
		t.Fatalf("active = %v, want 32", len(input.Stm))
	}
	// the initial position looks the same from both sides
	if !sameSet(input.Stm, input.Nstm) {
		t.Error("initial position perspectives differ")
	}
	// white king on e1, own colour, king slot
	if !slices.Contains(input.Stm, int32(0*384+chess.King*64+chess.SquareE1)) {
		t.Error("own king feature missing")
	}
}

func TestThreats(t *testing.T) {
	var pos = must.M1(chess.ParseFEN("4k3/8/8/3n4/4P3/8/8/4K3 w - - 0 1"))
	var d5 = chess.MakeSquare(chess.FileD, chess.Rank5)
	if got := Threats(&pos, chess.White); got != chess.SquareMask(d5) {
		t.Errorf("white threats = %x", got)
	}
	if got := Threats(&pos, chess.Black); got != 0 {
		t.Errorf("black threats = %x", got)
	}
	var input = (&HalfKAT{}).Compute(&pos)
	if len(input.Stm) != 5 {
		t.Errorf("active = %v, want 4 pieces and 1 threat", len(input.Stm))
	}
}

func TestGetUnknown(t *testing.T) {
	if _, err := Get("halfkx"); err == nil {
		t.Error("expected error for unknown feature set")
	}
}

func sameSet(a, b []int32) bool {
	a = slices.Clone(a)
	b = slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
