package chess

import "math/bits"

const (
	FileA = iota
	FileB
	FileC
	FileD
	FileE
	FileF
	FileG
	FileH
)

const (
	Rank1 = iota
	Rank2
	Rank3
	Rank4
	Rank5
	Rank6
	Rank7
	Rank8
)

const (
	SquareA1 = 0
	SquareE1 = 4
	SquareH1 = 7
	SquareA8 = 56
	SquareE8 = 60
	SquareH8 = 63
)

const (
	fileNames = "abcdefgh"
	rankNames = "12345678"
)

func FlipSquare(sq int) int {
	return sq ^ 56
}

func File(sq int) int {
	return sq & 7
}

func Rank(sq int) int {
	return sq >> 3
}

func MakeSquare(file, rank int) int {
	return (rank << 3) | file
}

func SquareName(sq int) string {
	var file = fileNames[File(sq)]
	var rank = rankNames[Rank(sq)]
	return string(file) + string(rank)
}

func PopCount(b uint64) int {
	return bits.OnesCount64(b)
}

func FirstOne(b uint64) int {
	return bits.TrailingZeros64(b)
}

func SquareMask(sq int) uint64 {
	return uint64(1) << uint(sq)
}

// FlipBitboard mirrors a bitboard vertically (rank 1 <-> rank 8).
func FlipBitboard(b uint64) uint64 {
	return bits.ReverseBytes64(b)
}
