package features

import (
	"github.com/ChizhovVadim/nnuetrainer/internal/chess"
	"github.com/ChizhovVadim/nnuetrainer/internal/domain"
)

const threatSlot = chess.PieceTypeNb

// HalfKAT is HalfKA with an extra piece slot per colour
// marking pieces attacked by a less valuable enemy piece.
type HalfKAT struct{}

func (*HalfKAT) Name() string   { return "halfkat" }
func (*HalfKAT) Size() int      { return 64 * 2 * (chess.PieceTypeNb + 1) * 64 }
func (*HalfKAT) MaxActive() int { return 64 }

func (f *HalfKAT) Compute(pos *chess.Position) domain.SparseInput {
	var threatened = [2]uint64{
		Threats(pos, chess.Black),
		Threats(pos, chess.White),
	}
	return compute(pos, f.MaxActive(), func(perspective int, buffer []int32) []int32 {
		var _, king = relative(perspective, perspective, pos.KingSquare(perspective))
		for side := chess.White; side <= chess.Black; side++ {
			for pt, b := range pos.Pieces[side] {
				for x := b; x != 0; x &= x - 1 {
					var color, sq = relative(perspective, side, chess.FirstOne(x))
					buffer = append(buffer, halfKATIndex(king, color, pt, sq))
				}
			}
			for x := threatened[side]; x != 0; x &= x - 1 {
				var color, sq = relative(perspective, side, chess.FirstOne(x))
				buffer = append(buffer, halfKATIndex(king, color, threatSlot, sq))
			}
		}
		return buffer
	})
}

func halfKATIndex(king, color, piece, sq int) int32 {
	var index = king
	index = index*2 + color
	index = index*(chess.PieceTypeNb+1) + piece
	index = index*64 + sq
	return int32(index)
}

// Threats returns pieces of the other side attacked by a less valuable piece of threatsOf.
func Threats(pos *chess.Position, threatsOf int) uint64 {
	var occupied = pos.AllPieces()
	var own = &pos.Pieces[threatsOf]
	var enemy = pos.Colors(threatsOf ^ 1)

	var minors = pos.PiecesByType(chess.Knight) | pos.PiecesByType(chess.Bishop)
	var majors = pos.PiecesByType(chess.Rook) | pos.PiecesByType(chess.Queen)
	var pieces = minors | majors

	var pawnAttacks uint64
	for x := own[chess.Pawn]; x != 0; x &= x - 1 {
		pawnAttacks |= chess.PawnAttacks(chess.FirstOne(x), threatsOf)
	}

	var minorAttacks uint64
	for x := own[chess.Knight]; x != 0; x &= x - 1 {
		minorAttacks |= chess.KnightAttacks(chess.FirstOne(x))
	}
	for x := own[chess.Bishop]; x != 0; x &= x - 1 {
		minorAttacks |= chess.BishopAttacks(chess.FirstOne(x), occupied)
	}

	var rookAttacks uint64
	for x := own[chess.Rook]; x != 0; x &= x - 1 {
		rookAttacks |= chess.RookAttacks(chess.FirstOne(x), occupied)
	}

	return ((pawnAttacks & pieces) |
		(minorAttacks & majors) |
		(rookAttacks & pos.PiecesByType(chess.Queen))) & enemy
}
