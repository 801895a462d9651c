package chess

import "testing"

const initialFen = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestParseFEN(t *testing.T) {
	tests := []struct {
		name      string
		fen       string
		pieces    int
		whiteMove bool
		wantErr   bool
	}{
		{"initial", initialFen, 32, true, false},
		{"kings", "8/8/4k3/8/8/3K4/8/8 b - - 0 1", 2, false, false},
		{"empty", "", 0, false, true},
		{"no side", "8/8/8/8/8/8/8/8", 0, false, true},
		{"no kings", "8/8/8/8/8/8/8/8 w - - 0 1", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := ParseFEN(tt.fen)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFEN error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := PopCount(pos.AllPieces()); got != tt.pieces {
				t.Errorf("pieces = %v, want %v", got, tt.pieces)
			}
			if pos.WhiteMove != tt.whiteMove {
				t.Errorf("WhiteMove = %v, want %v", pos.WhiteMove, tt.whiteMove)
			}
		})
	}
}

func TestInitialPosition(t *testing.T) {
	pos, err := ParseFEN(initialFen)
	if err != nil {
		t.Fatal(err)
	}
	if pos.KingSquare(White) != SquareE1 || pos.KingSquare(Black) != SquareE8 {
		t.Errorf("king squares %v %v", pos.KingSquare(White), pos.KingSquare(Black))
	}
	pt, side, ok := pos.GetPieceTypeAndSide(SquareH8)
	if !ok || pt != Rook || side != Black {
		t.Errorf("h8 = %v %v %v", pt, side, ok)
	}
	if got := pos.String(); got != "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w" {
		t.Errorf("String() = %v", got)
	}
}

func TestMirrorPosition(t *testing.T) {
	pos, err := ParseFEN("4k3/8/8/8/8/8/4P3/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	var mirror = MirrorPosition(&pos)
	if mirror.WhiteMove {
		t.Error("mirror must change side to move")
	}
	if got := mirror.String(); got != "4k3/4p3/8/8/8/8/8/4K3 b" {
		t.Errorf("mirror = %v", got)
	}
	var back = MirrorPosition(&mirror)
	if back != pos {
		t.Error("double mirror must restore position")
	}
}

func TestAttacks(t *testing.T) {
	if got := PopCount(KnightAttacks(SquareA1)); got != 2 {
		t.Errorf("knight a1 attacks = %v", got)
	}
	if got := PopCount(KingAttacks(SquareE1)); got != 5 {
		t.Errorf("king e1 attacks = %v", got)
	}
	if got := PopCount(RookAttacks(SquareA1, 0)); got != 14 {
		t.Errorf("rook a1 attacks = %v", got)
	}
	var blocker = SquareMask(MakeSquare(FileA, Rank3))
	if got := PopCount(RookAttacks(SquareA1, blocker)); got != 9 {
		t.Errorf("blocked rook a1 attacks = %v", got)
	}
	if got := PopCount(BishopAttacks(MakeSquare(FileD, Rank4), 0)); got != 13 {
		t.Errorf("bishop d4 attacks = %v", got)
	}
	if got := PawnAttacks(MakeSquare(FileE, Rank2), White); got != SquareMask(MakeSquare(FileD, Rank3))|SquareMask(MakeSquare(FileF, Rank3)) {
		t.Errorf("pawn e2 attacks = %v", got)
	}
}
