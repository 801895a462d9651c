package features

import (
	"fmt"
	"sort"

	"github.com/ChizhovVadim/nnuetrainer/internal/chess"
	"github.com/ChizhovVadim/nnuetrainer/internal/domain"
)

// IFeatureSet encodes a position into sparse network inputs
// seen from both sides.
type IFeatureSet interface {
	Name() string
	Size() int
	MaxActive() int
	Compute(pos *chess.Position) domain.SparseInput
}

var builders = map[string]func() IFeatureSet{
	"board768": func() IFeatureSet { return &Board768{} },
	"halfkp":   func() IFeatureSet { return &HalfKP{} },
	"halfka":   func() IFeatureSet { return &HalfKA{} },
	"halfkat":  func() IFeatureSet { return &HalfKAT{} },
}

func Get(name string) (IFeatureSet, error) {
	var build, found = builders[name]
	if !found {
		return nil, fmt.Errorf("unknown feature set %v", name)
	}
	return build(), nil
}

func Names() []string {
	var result = make([]string, 0, len(builders))
	for name := range builders {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// relative maps square and colour to the given perspective:
// the perspective side always plays "up" and has colour 0.
func relative(perspective, side, sq int) (int, int) {
	if perspective == chess.Black {
		sq = chess.FlipSquare(sq)
	}
	return side ^ perspective, sq
}

func compute(pos *chess.Position, maxActive int,
	add func(perspective int, buffer []int32) []int32) domain.SparseInput {
	var stm = pos.SideToMove()
	return domain.SparseInput{
		Stm:  add(stm, make([]int32, 0, maxActive)),
		Nstm: add(stm^1, make([]int32, 0, maxActive)),
	}
}

type Board768 struct{}

func (*Board768) Name() string   { return "board768" }
func (*Board768) Size() int      { return 768 }
func (*Board768) MaxActive() int { return 32 }

func (f *Board768) Compute(pos *chess.Position) domain.SparseInput {
	return compute(pos, f.MaxActive(), func(perspective int, buffer []int32) []int32 {
		for side := chess.White; side <= chess.Black; side++ {
			for pt, b := range pos.Pieces[side] {
				for x := b; x != 0; x &= x - 1 {
					var color, sq = relative(perspective, side, chess.FirstOne(x))
					buffer = append(buffer, int32(color*384+pt*64+sq))
				}
			}
		}
		return buffer
	})
}

// HalfKP is king square times non-king pieces.
type HalfKP struct{}

func (*HalfKP) Name() string   { return "halfkp" }
func (*HalfKP) Size() int      { return 64 * 640 }
func (*HalfKP) MaxActive() int { return 30 }

func (f *HalfKP) Compute(pos *chess.Position) domain.SparseInput {
	return compute(pos, f.MaxActive(), func(perspective int, buffer []int32) []int32 {
		var _, king = relative(perspective, perspective, pos.KingSquare(perspective))
		for side := chess.White; side <= chess.Black; side++ {
			for pt := chess.Pawn; pt < chess.King; pt++ {
				for x := pos.Pieces[side][pt]; x != 0; x &= x - 1 {
					var color, sq = relative(perspective, side, chess.FirstOne(x))
					buffer = append(buffer, int32(king*640+(color*5+pt)*64+sq))
				}
			}
		}
		return buffer
	})
}

// HalfKA is king square times all pieces, kings included.
type HalfKA struct{}

func (*HalfKA) Name() string   { return "halfka" }
func (*HalfKA) Size() int      { return 64 * 768 }
func (*HalfKA) MaxActive() int { return 32 }

func (f *HalfKA) Compute(pos *chess.Position) domain.SparseInput {
	return compute(pos, f.MaxActive(), func(perspective int, buffer []int32) []int32 {
		var _, king = relative(perspective, perspective, pos.KingSquare(perspective))
		for side := chess.White; side <= chess.Black; side++ {
			for pt, b := range pos.Pieces[side] {
				for x := b; x != 0; x &= x - 1 {
					var color, sq = relative(perspective, side, chess.FirstOne(x))
					buffer = append(buffer, int32(king*768+color*384+pt*64+sq))
				}
			}
		}
		return buffer
	})
}
