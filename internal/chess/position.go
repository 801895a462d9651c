package chess

import (
	"fmt"
	"strings"

	"github.com/dylhunn/dragontoothmg"
)

const (
	Pawn = iota
	Knight
	Bishop
	Rook
	Queen
	King
)

const (
	White = iota
	Black
)

const PieceTypeNb = 6

// Position is the board part of a chess position:
// enough to compute network input features.
type Position struct {
	Pieces    [2][PieceTypeNb]uint64
	WhiteMove bool
}

func (p *Position) Put(pieceType, side, sq int) {
	p.Pieces[side][pieceType] |= SquareMask(sq)
}

func (p *Position) Colors(side int) uint64 {
	var result uint64
	for _, b := range p.Pieces[side] {
		result |= b
	}
	return result
}

func (p *Position) AllPieces() uint64 {
	return p.Colors(White) | p.Colors(Black)
}

func (p *Position) PiecesByType(pieceType int) uint64 {
	return p.Pieces[White][pieceType] | p.Pieces[Black][pieceType]
}

func (p *Position) SideToMove() int {
	if p.WhiteMove {
		return White
	}
	return Black
}

func (p *Position) GetPieceTypeAndSide(sq int) (pieceType, side int, ok bool) {
	var mask = SquareMask(sq)
	for side := White; side <= Black; side++ {
		for pt, b := range p.Pieces[side] {
			if b&mask != 0 {
				return pt, side, true
			}
		}
	}
	return 0, 0, false
}

func (p *Position) KingSquare(side int) int {
	return FirstOne(p.Pieces[side][King])
}

func (p *Position) Validate() error {
	for side := White; side <= Black; side++ {
		if PopCount(p.Pieces[side][King]) != 1 {
			return fmt.Errorf("side %v must have exactly one king", side)
		}
	}
	if PopCount(p.AllPieces()) > 32 {
		return fmt.Errorf("too many pieces %v", PopCount(p.AllPieces()))
	}
	var overlap uint64
	for side := White; side <= Black; side++ {
		for _, b := range p.Pieces[side] {
			if overlap&b != 0 {
				return fmt.Errorf("pieces overlap")
			}
			overlap |= b
		}
	}
	return nil
}

// ParseFEN reads the board and side to move of a FEN string.
func ParseFEN(fen string) (pos Position, err error) {
	fen = strings.TrimSpace(fen)
	if len(strings.Fields(fen)) < 2 {
		return Position{}, fmt.Errorf("bad fen %v", fen)
	}
	defer func() {
		if r := recover(); r != nil {
			pos = Position{}
			err = fmt.Errorf("bad fen %v: %v", fen, r)
		}
	}()
	var board = dragontoothmg.ParseFen(fen)
	pos = FromDragontooth(&board)
	if err := pos.Validate(); err != nil {
		return Position{}, fmt.Errorf("bad fen %v: %w", fen, err)
	}
	return pos, nil
}

func FromDragontooth(b *dragontoothmg.Board) Position {
	var pos = Position{WhiteMove: b.Wtomove}
	for side, bb := range [2]*dragontoothmg.Bitboards{&b.White, &b.Black} {
		pos.Pieces[side][Pawn] = uint64(bb.Pawns)
		pos.Pieces[side][Knight] = uint64(bb.Knights)
		pos.Pieces[side][Bishop] = uint64(bb.Bishops)
		pos.Pieces[side][Rook] = uint64(bb.Rooks)
		pos.Pieces[side][Queen] = uint64(bb.Queens)
		pos.Pieces[side][King] = uint64(bb.Kings)
	}
	return pos
}

// MirrorPosition swaps colours and flips ranks.
func MirrorPosition(p *Position) Position {
	var result = Position{WhiteMove: !p.WhiteMove}
	for side := White; side <= Black; side++ {
		for pt, b := range p.Pieces[side] {
			result.Pieces[side^1][pt] = FlipBitboard(b)
		}
	}
	return result
}

func (p *Position) String() string {
	const pieceNames = "pnbrqk"
	var sb strings.Builder
	for rank := Rank8; rank >= Rank1; rank-- {
		var empty int
		for file := FileA; file <= FileH; file++ {
			var pt, side, ok = p.GetPieceTypeAndSide(MakeSquare(file, rank))
			if !ok {
				empty++
				continue
			}
			if empty > 0 {
				fmt.Fprint(&sb, empty)
				empty = 0
			}
			var ch = pieceNames[pt]
			if side == White {
				ch -= 'a' - 'A'
			}
			sb.WriteByte(ch)
		}
		if empty > 0 {
			fmt.Fprint(&sb, empty)
		}
		if rank > Rank1 {
			sb.WriteByte('/')
		}
	}
	if p.WhiteMove {
		sb.WriteString(" w")
	} else {
		sb.WriteString(" b")
	}
	return sb.String()
}
