package ai

import (
	"math"
	"testing"

	chesslib "github.com/corentings/chess/v2"
)

func positionFromFEN(t *testing.T, fen string) *chesslib.Position {
	t.Helper()
	opt, err := chesslib.FEN(fen)
	if err != nil {
		t.Fatalf("parse fen %q: %v", fen, err)
	}
	return chesslib.NewGame(opt).Position()
}

func TestEvaluateInitialPositionIsBalanced(t *testing.T) {
	pos := chesslib.NewGame().Position()
	if got := Evaluate(pos); got != 0 {
		t.Fatalf("initial position should score 0, got %f", got)
	}
}

func TestEvaluateMaterialSwing(t *testing.T) {
	// black is missing the d8 queen
	pos := positionFromFEN(t, "rnb1kbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	got := Evaluate(pos)
	if got < 8.5 || got > 9.5 {
		t.Fatalf("queen-up position should score about +9, got %f", got)
	}

	// mirror: white is missing the d1 queen
	pos = positionFromFEN(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNB1KBNR w KQkq - 0 1")
	got = Evaluate(pos)
	if got > -8.5 || got < -9.5 {
		t.Fatalf("queen-down position should score about -9, got %f", got)
	}
}

func TestEvaluateMirrorSymmetry(t *testing.T) {
	// a knight developed to f3 and its black mirror on f6 must cancel
	white := positionFromFEN(t, "rnbqkbnr/pppppppp/8/8/8/5N2/PPPPPPPP/RNBQKB1R b KQkq - 0 1")
	both := positionFromFEN(t, "rnbqkb1r/pppppppp/5n2/8/8/5N2/PPPPPPPP/RNBQKB1R w KQkq - 0 1")

	if got := Evaluate(both); math.Abs(got) > 1e-9 {
		t.Fatalf("mirrored development should cancel, got %f", got)
	}
	if got := Evaluate(white); got <= 0 {
		t.Fatalf("developed knight should score positive for white, got %f", got)
	}
}

func TestEvaluateCentralPawnBonus(t *testing.T) {
	before := chesslib.NewGame().Position()
	after := positionFromFEN(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	if Evaluate(after) <= Evaluate(before) {
		t.Fatal("advancing a pawn to e4 should improve white's score")
	}
}
