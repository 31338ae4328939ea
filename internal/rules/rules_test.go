package rules

import (
	"errors"
	"testing"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func mustApply(t *testing.T, pos *Position, from, to, promo string) {
	t.Helper()
	mv, err := pos.FindMove(from, to, promo)
	if err != nil {
		t.Fatalf("FindMove %s%s%s: %v", from, to, promo, err)
	}
	if err := pos.Apply(&mv); err != nil {
		t.Fatalf("Apply %s%s: %v", from, to, err)
	}
}

func TestInitialPosition(t *testing.T) {
	pos := Initial()
	if got := pos.FEN(); got != startFEN {
		t.Fatalf("unexpected initial FEN: %s", got)
	}
	if pos.SideToMove() != White {
		t.Fatalf("white moves first, got %s", pos.SideToMove())
	}
	if got := len(pos.LegalMoves()); got != 20 {
		t.Fatalf("expected 20 legal opening moves, got %d", got)
	}
	if pos.Status() != StatusOngoing {
		t.Fatalf("initial status: %s", pos.Status())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode("not a fen"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDecodeStartposAlias(t *testing.T) {
	pos, err := Decode("startpos")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pos.FEN() != startFEN {
		t.Fatalf("startpos alias mismatch: %s", pos.FEN())
	}
}

func TestFindMoveErrors(t *testing.T) {
	pos := Initial()

	if _, err := pos.FindMove("z9", "e4", ""); !errors.Is(err, ErrMalformedMove) {
		t.Fatalf("bad square should be malformed, got %v", err)
	}
	if _, err := pos.FindMove("e2", "e4", "x"); !errors.Is(err, ErrMalformedMove) {
		t.Fatalf("bad promotion should be malformed, got %v", err)
	}
	if _, err := pos.FindMove("e2", "e5", ""); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("e2e5 should be illegal, got %v", err)
	}
	if _, err := pos.FindMove("e7", "e5", ""); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("black move on white's turn should be illegal, got %v", err)
	}
}

func TestPromotionRequiresExplicitPiece(t *testing.T) {
	pos, err := Decode("8/P6k/8/8/8/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, err := pos.FindMove("a7", "a8", ""); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("promotion without a piece choice should be rejected, got %v", err)
	}
	mv, err := pos.FindMove("a7", "a8", "q")
	if err != nil {
		t.Fatalf("explicit promotion: %v", err)
	}
	if mv.String() != "a7a8q" {
		t.Fatalf("unexpected move encoding: %s", mv.String())
	}
}

func TestReplayDeterminism(t *testing.T) {
	pos := Initial()
	moves := [][3]string{
		{"e2", "e4", ""}, {"e7", "e5", ""},
		{"g1", "f3", ""}, {"b8", "c6", ""},
		{"f1", "b5", ""}, {"g8", "f6", ""},
	}
	var log []string
	for _, m := range moves {
		mv, err := pos.FindMove(m[0], m[1], m[2])
		if err != nil {
			t.Fatalf("FindMove: %v", err)
		}
		log = append(log, mv.String())
		if err := pos.Apply(&mv); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	replayed, err := Replay(log)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed.FEN() != pos.FEN() {
		t.Fatalf("replay diverged:\n live   %s\n replay %s", pos.FEN(), replayed.FEN())
	}
}

func TestReplayRejectsBadLog(t *testing.T) {
	if _, err := Replay([]string{"e2e4", "e7e5", "e4e5"}); err == nil {
		t.Fatal("expected replay error for illegal move in log")
	}
}

func TestStatusCheckAndCheckmate(t *testing.T) {
	pos := Initial()
	mustApply(t, pos, "f2", "f3", "")
	mustApply(t, pos, "e7", "e5", "")
	mustApply(t, pos, "g2", "g4", "")
	if pos.Status() != StatusOngoing {
		t.Fatalf("pre-mate status: %s", pos.Status())
	}
	mustApply(t, pos, "d8", "h4", "")
	if pos.Status() != StatusCheckmate {
		t.Fatalf("fool's mate should be checkmate, got %s", pos.Status())
	}
	if !pos.Status().Terminal() {
		t.Fatal("checkmate must be terminal")
	}
}

func TestStatusCheckIsNotTerminal(t *testing.T) {
	pos := Initial()
	mustApply(t, pos, "e2", "e4", "")
	mustApply(t, pos, "f7", "f6", "")
	mustApply(t, pos, "d1", "h5", "")
	if pos.Status() != StatusCheck {
		t.Fatalf("expected check, got %s", pos.Status())
	}
	if pos.Status().Terminal() {
		t.Fatal("check must not be terminal")
	}
}

func TestStatusStalemate(t *testing.T) {
	pos, err := Decode("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pos.Status() != StatusStalemate {
		t.Fatalf("expected stalemate, got %s", pos.Status())
	}
}

func TestStatusInsufficientMaterial(t *testing.T) {
	pos, err := Decode("8/8/4k3/8/8/4K3/8/8 w - - 0 1")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pos.Status() != StatusDrawInsufficient {
		t.Fatalf("expected insufficient material draw, got %s", pos.Status())
	}
}

func TestPlacementKey(t *testing.T) {
	pos := Initial()
	want := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"
	if got := pos.PlacementKey(); got != want {
		t.Fatalf("placement key: %s", got)
	}
	mustApply(t, pos, "e2", "e4", "")
	if pos.PlacementKey() == want {
		t.Fatal("placement key should change after a move")
	}
}

func TestSANBeforeApply(t *testing.T) {
	pos := Initial()
	mv, err := pos.FindMove("g1", "f3", "")
	if err != nil {
		t.Fatalf("FindMove: %v", err)
	}
	if san := pos.SAN(&mv); san != "Nf3" {
		t.Fatalf("SAN: %s", san)
	}
}
