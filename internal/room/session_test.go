package room

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sp14green/chessarena/internal/rules"
	"github.com/sp14green/chessarena/pkg/gamedto"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return newSession("test-game", rules.Initial(), nil, nil, nil)
}

func join(t *testing.T, s *Session, clientID string) (*Subscriber, rules.Color) {
	t.Helper()
	sub, color, _, err := s.Join(clientID)
	if err != nil {
		t.Fatalf("Join %s: %v", clientID, err)
	}
	return sub, color
}

func drain(sub *Subscriber) []any {
	var frames []any
	for {
		select {
		case f, ok := <-sub.Out:
			if !ok {
				return frames
			}
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestJoinAssignsColorsInOrder(t *testing.T) {
	s := newTestSession(t)
	_, c1 := join(t, s, "alice")
	_, c2 := join(t, s, "bob")

	if c1 != rules.White {
		t.Fatalf("first joiner should be white, got %s", c1)
	}
	if c2 != rules.Black {
		t.Fatalf("second joiner should be black, got %s", c2)
	}
}

func TestJoinThirdClientRejected(t *testing.T) {
	s := newTestSession(t)
	join(t, s, "alice")
	join(t, s, "bob")

	if _, _, _, err := s.Join("carol"); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("expected ErrSessionFull, got %v", err)
	}
}

func TestJoinSameClientKeepsColor(t *testing.T) {
	s := newTestSession(t)
	_, first := join(t, s, "alice")
	_, again := join(t, s, "alice")
	if first != again {
		t.Fatalf("rejoin changed color: %s -> %s", first, again)
	}
	if _, color := join(t, s, "bob"); color != rules.Black {
		t.Fatalf("second client should still get black, got %s", color)
	}
}

func TestDisconnectReleasesClaim(t *testing.T) {
	s := newTestSession(t)
	aliceSub, _ := join(t, s, "alice")
	join(t, s, "bob")
	s.Disconnect(aliceSub)

	// the freed white claim goes to a new client
	_, color := join(t, s, "carol")
	if color != rules.White {
		t.Fatalf("freed color should be reassigned, got %s", color)
	}
}

func TestStaleDisconnectKeepsRejoinedClient(t *testing.T) {
	s := newTestSession(t)
	staleSub, _ := join(t, s, "alice")
	bobSub, _ := join(t, s, "bob")
	liveSub, color := join(t, s, "alice")
	if color != rules.White {
		t.Fatalf("rejoin should keep white, got %s", color)
	}

	// the old handler's deferred disconnect fires after the rejoin;
	// it must not touch the replacement connection
	s.Disconnect(staleSub)

	if _, ok := s.Color("alice"); !ok {
		t.Fatal("rejoined client lost its claim to a stale disconnect")
	}
	applyMove(t, s, "alice", "e2", "e4", "")
	drain(bobSub)
	applyMove(t, s, "bob", "e7", "e5", "")
	frames := drain(liveSub)
	if len(frames) != 1 {
		t.Fatalf("rejoined client should still receive broadcasts, got %d frames", len(frames))
	}
}

func TestSessionSurvivesAllDisconnects(t *testing.T) {
	s := newTestSession(t)
	aliceSub, _ := join(t, s, "alice")
	bobSub, _ := join(t, s, "bob")
	applyMove(t, s, "alice", "e2", "e4", "")
	s.Disconnect(aliceSub)
	s.Disconnect(bobSub)

	state := s.State()
	if len(state.MovesUCI) != 1 {
		t.Fatalf("history lost on disconnect: %v", state.MovesUCI)
	}
	if state.Status != rules.StatusOngoing {
		t.Fatalf("status reset on disconnect: %s", state.Status)
	}
}

func applyMove(t *testing.T, s *Session, clientID, from, to, promo string) {
	t.Helper()
	if _, err := s.ApplyMove(context.Background(), clientID, from, to, promo); err != nil {
		t.Fatalf("ApplyMove %s %s%s: %v", clientID, from, to, err)
	}
}

func TestApplyMoveTurnEnforcement(t *testing.T) {
	s := newTestSession(t)
	join(t, s, "alice") // white
	join(t, s, "bob")   // black

	if _, err := s.ApplyMove(context.Background(), "bob", "e7", "e5", ""); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("black moving first should fail, got %v", err)
	}
	applyMove(t, s, "alice", "e2", "e4", "")
	if _, err := s.ApplyMove(context.Background(), "alice", "d2", "d4", ""); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("white moving twice should fail, got %v", err)
	}
	applyMove(t, s, "bob", "e7", "e5", "")
}

func TestApplyMoveRequiresJoin(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.ApplyMove(context.Background(), "ghost", "e2", "e4", ""); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("expected ErrNotJoined, got %v", err)
	}
}

func TestApplyMoveValidation(t *testing.T) {
	s := newTestSession(t)
	join(t, s, "alice")

	if _, err := s.ApplyMove(context.Background(), "alice", "zz", "e4", ""); !errors.Is(err, rules.ErrMalformedMove) {
		t.Fatalf("expected malformed move, got %v", err)
	}
	if _, err := s.ApplyMove(context.Background(), "alice", "e2", "e5", ""); !errors.Is(err, rules.ErrIllegalMove) {
		t.Fatalf("expected illegal move, got %v", err)
	}
	// rejected moves leave no trace
	if state := s.State(); len(state.MovesUCI) != 0 {
		t.Fatalf("rejected moves must not enter history: %v", state.MovesUCI)
	}
}

func TestApplyMoveBroadcastsToOthersOnly(t *testing.T) {
	s := newTestSession(t)
	aliceSub, _ := join(t, s, "alice")
	bobSub, _ := join(t, s, "bob")

	applyMove(t, s, "alice", "e2", "e4", "")

	if frames := drain(aliceSub); len(frames) != 0 {
		t.Fatalf("originator must not receive its own move, got %d frames", len(frames))
	}
	frames := drain(bobSub)
	if len(frames) != 1 {
		t.Fatalf("peer should receive exactly one frame, got %d", len(frames))
	}
	mv, ok := frames[0].(gamedto.MoveFrame)
	if !ok {
		t.Fatalf("unexpected frame type %T", frames[0])
	}
	if mv.From != "e2" || mv.To != "e4" || mv.Type != gamedto.FrameMove {
		t.Fatalf("unexpected move frame %+v", mv)
	}
	if mv.Status != string(rules.StatusOngoing) {
		t.Fatalf("frame should carry fresh status, got %s", mv.Status)
	}
}

func TestStatusFreshAfterMatingSequence(t *testing.T) {
	s := newTestSession(t)
	join(t, s, "alice")
	join(t, s, "bob")

	applyMove(t, s, "alice", "f2", "f3", "")
	applyMove(t, s, "bob", "e7", "e5", "")
	applyMove(t, s, "alice", "g2", "g4", "")
	applyMove(t, s, "bob", "d8", "h4", "")

	if state := s.State(); state.Status != rules.StatusCheckmate {
		t.Fatalf("expected checkmate, got %s", state.Status)
	}
	if _, err := s.ApplyMove(context.Background(), "alice", "a2", "a3", ""); !errors.Is(err, ErrGameOver) {
		t.Fatalf("moves after mate should fail, got %v", err)
	}
}

func TestConcurrentMovesExactlyOneWins(t *testing.T) {
	for i := 0; i < 20; i++ {
		s := newTestSession(t)
		join(t, s, "alice")
		join(t, s, "bob")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		for j, move := range [][3]string{{"e2", "e4", ""}, {"d2", "d4", ""}} {
			wg.Add(1)
			go func(idx int, m [3]string) {
				defer wg.Done()
				<-start
				_, errs[idx] = s.ApplyMove(context.Background(), "alice", m[0], m[1], m[2])
			}(j, move)
		}
		close(start)
		wg.Wait()

		accepted := 0
		for _, err := range errs {
			if err == nil {
				accepted++
			} else if !errors.Is(err, ErrNotYourTurn) {
				t.Fatalf("loser should fail the turn check, got %v", err)
			}
		}
		if accepted != 1 {
			t.Fatalf("exactly one racing move should win, got %d", accepted)
		}
		if state := s.State(); len(state.MovesUCI) != 1 {
			t.Fatalf("history should record the single winner: %v", state.MovesUCI)
		}
	}
}

func TestResetClearsStateAndReassignsColors(t *testing.T) {
	s := newTestSession(t)
	join(t, s, "alice")
	bobSub, _ := join(t, s, "bob")
	applyMove(t, s, "alice", "e2", "e4", "")
	drain(bobSub)

	frame, err := s.Reset(context.Background(), "bob")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if frame.Type != gamedto.FrameReset {
		t.Fatalf("unexpected frame type %s", frame.Type)
	}

	state := s.State()
	if len(state.MovesUCI) != 0 || state.Status != rules.StatusOngoing {
		t.Fatalf("reset left state behind: %+v", state)
	}
	if color, ok := s.Color("bob"); !ok || color != rules.White {
		t.Fatalf("resetter should hold white, got %s ok=%v", color, ok)
	}
	if _, ok := s.Color("alice"); ok {
		t.Fatal("other claims should be cleared by reset")
	}

	// every subscriber, the resetter included, hears the reset
	frames := drain(bobSub)
	if len(frames) != 1 {
		t.Fatalf("resetter should receive the reset frame, got %d", len(frames))
	}
}

func TestResetFrameCarriesRecipientColor(t *testing.T) {
	s := newTestSession(t)
	aliceSub, _ := join(t, s, "alice")
	bobSub, _ := join(t, s, "bob")
	applyMove(t, s, "alice", "e2", "e4", "")
	drain(aliceSub)
	drain(bobSub)

	if _, err := s.Reset(context.Background(), "bob"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	bobFrames := drain(bobSub)
	if len(bobFrames) != 1 {
		t.Fatalf("resetter should receive one frame, got %d", len(bobFrames))
	}
	bf, ok := bobFrames[0].(gamedto.InitFrame)
	if !ok {
		t.Fatalf("unexpected frame type %T", bobFrames[0])
	}
	if bf.Color != string(rules.White) {
		t.Fatalf("resetter should be told white, got %q", bf.Color)
	}

	aliceFrames := drain(aliceSub)
	if len(aliceFrames) != 1 {
		t.Fatalf("peer should receive one frame, got %d", len(aliceFrames))
	}
	af, ok := aliceFrames[0].(gamedto.InitFrame)
	if !ok {
		t.Fatalf("unexpected frame type %T", aliceFrames[0])
	}
	if af.Color != "" {
		t.Fatalf("claimless peer should get an empty color, got %q", af.Color)
	}
}

func TestLastDisconnectWritesSnapshot(t *testing.T) {
	fs := newTestStore(t)
	s := newSession("test-game", rules.Initial(), nil, nil, fs)
	aliceSub, _ := join(t, s, "alice")

	ctx := context.Background()
	if snap, _ := fs.Load(ctx, "test-game"); snap != nil {
		t.Fatal("no snapshot expected before disconnect")
	}
	s.Disconnect(aliceSub)

	snap, err := fs.Load(ctx, "test-game")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap == nil {
		t.Fatal("last disconnect should persist a snapshot")
	}
	if snap.Status != rules.StatusOngoing || len(snap.MovesUCI) != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestResetRequiresJoin(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Reset(context.Background(), "ghost"); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("expected ErrNotJoined, got %v", err)
	}
}

func TestValidateInvariantKeepsFirstClaimant(t *testing.T) {
	s := newTestSession(t)
	join(t, s, "alice")
	// manufacture the corrupt state the repair pass exists for
	s.mu.Lock()
	s.claims = append(s.claims, claim{color: rules.White, clientID: "mallory"})
	s.mu.Unlock()

	if dropped := s.ValidateInvariant(); dropped != 1 {
		t.Fatalf("expected 1 dropped claim, got %d", dropped)
	}
	if color, ok := s.Color("alice"); !ok || color != rules.White {
		t.Fatal("first claimant should keep the color")
	}
	if _, ok := s.Color("mallory"); ok {
		t.Fatal("duplicate claimant should be dropped")
	}
}

func TestWaiting(t *testing.T) {
	s := newTestSession(t)
	if s.Waiting() {
		t.Fatal("empty session is not waiting")
	}
	join(t, s, "alice")
	if !s.Waiting() {
		t.Fatal("one claimed color means waiting")
	}
	join(t, s, "bob")
	if s.Waiting() {
		t.Fatal("full session is not waiting")
	}
}
