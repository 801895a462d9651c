package chess

var (
	pawnAttacks   [2][64]uint64
	knightAttacks [64]uint64
	kingAttacks   [64]uint64
)

var (
	rookDirections   = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopDirections = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

func init() {
	var knightSteps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	var kingSteps = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	for sq := 0; sq < 64; sq++ {
		var f, r = File(sq), Rank(sq)
		for _, s := range knightSteps {
			knightAttacks[sq] |= stepMask(f+s[0], r+s[1])
		}
		for _, s := range kingSteps {
			kingAttacks[sq] |= stepMask(f+s[0], r+s[1])
		}
		pawnAttacks[White][sq] = stepMask(f-1, r+1) | stepMask(f+1, r+1)
		pawnAttacks[Black][sq] = stepMask(f-1, r-1) | stepMask(f+1, r-1)
	}
}

func stepMask(file, rank int) uint64 {
	if file < FileA || file > FileH || rank < Rank1 || rank > Rank8 {
		return 0
	}
	return SquareMask(MakeSquare(file, rank))
}

func PawnAttacks(sq, side int) uint64 {
	return pawnAttacks[side][sq]
}

func KnightAttacks(sq int) uint64 {
	return knightAttacks[sq]
}

func KingAttacks(sq int) uint64 {
	return kingAttacks[sq]
}

func BishopAttacks(sq int, occupied uint64) uint64 {
	return slidingAttacks(sq, occupied, &bishopDirections)
}

func RookAttacks(sq int, occupied uint64) uint64 {
	return slidingAttacks(sq, occupied, &rookDirections)
}

func slidingAttacks(sq int, occupied uint64, directions *[4][2]int) uint64 {
	var result uint64
	for _, d := range directions {
		var f, r = File(sq) + d[0], Rank(sq) + d[1]
		for {
			var mask = stepMask(f, r)
			if mask == 0 {
				break
			}
			result |= mask
			if occupied&mask != 0 {
				break
			}
			f += d[0]
			r += d[1]
		}
	}
	return result
}
