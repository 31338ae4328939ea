package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sp14green/chessarena/internal/obslog"
	"github.com/sp14green/chessarena/internal/rules"
	"github.com/sp14green/chessarena/internal/store"
	"github.com/sp14green/chessarena/pkg/gamedto"
)

var (
	ErrSessionFull   = errors.New("session full")
	ErrSessionClosed = errors.New("session closed")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrGameOver      = errors.New("game is over")
	ErrNotJoined     = errors.New("client has not joined")
	ErrUnknownFrame  = errors.New("unknown frame type")
)

const subscriberBuffer = 16

// Subscriber is one live client connection attached to a session. The
// transport layer drains Out; frames are dropped when the buffer is
// full rather than blocking the session.
type Subscriber struct {
	ClientID string
	Out      chan any
}

type claim struct {
	color    rules.Color
	clientID string
}

// Session is one game room: the authoritative position, its replay
// log, color claims, and the attached subscribers. All mutation goes
// through the session mutex, so concurrent moves serialize and exactly
// one of two racing moves wins.
type Session struct {
	ID string

	mu       sync.Mutex
	pos      *rules.Position
	movesUCI []string
	movesSAN []string
	status   rules.Status
	claims   []claim
	subs     map[string]*Subscriber
	closed   bool

	store      store.Store
	createdAt  time.Time
	lastActive time.Time
	emptySince time.Time
}

func newSession(id string, pos *rules.Position, movesUCI, movesSAN []string, st store.Store) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		pos:        pos,
		movesUCI:   append([]string(nil), movesUCI...),
		movesSAN:   append([]string(nil), movesSAN...),
		status:     pos.Status(),
		subs:       make(map[string]*Subscriber),
		store:      st,
		createdAt:  now,
		lastActive: now,
		emptySince: now,
	}
}

// State is a point-in-time copy of the session's public view.
type State struct {
	FEN      string
	MovesUCI []string
	MovesSAN []string
	Status   rules.Status
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		FEN:      s.pos.FEN(),
		MovesUCI: append([]string(nil), s.movesUCI...),
		MovesSAN: append([]string(nil), s.movesSAN...),
		Status:   s.status,
	}
}

// Join attaches a client and claims a color for it. A client that
// already holds a claim gets the same color back, so reconnecting
// clients resume their side. The first free color goes white first.
// A third distinct client is rejected.
func (s *Session) Join(clientID string) (*Subscriber, rules.Color, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, "", State{}, ErrSessionClosed
	}
	color, held := s.claimLocked(clientID)
	if !held {
		free, ok := s.freeColorLocked()
		if !ok {
			return nil, "", State{}, ErrSessionFull
		}
		color = free
		s.claims = append(s.claims, claim{color: color, clientID: clientID})
	}

	if old, ok := s.subs[clientID]; ok {
		close(old.Out)
	}
	sub := &Subscriber{ClientID: clientID, Out: make(chan any, subscriberBuffer)}
	s.subs[clientID] = sub
	s.lastActive = time.Now()
	s.emptySince = time.Time{}

	obslog.L().Info("client_joined",
		zap.String("game_id", s.ID),
		zap.String("client_id", clientID),
		zap.String("color", string(color)),
	)
	return sub, color, s.stateLocked(), nil
}

// Disconnect detaches one connection and releases its color claim. The
// session itself survives; the claim frees up for the next joiner and
// the replay log keeps the game resumable. A stale handler whose
// client already rejoined is a no-op: only the subscriber currently
// registered for the client id is removed.
func (s *Session) Disconnect(sub *Subscriber) {
	if sub == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.subs[sub.ClientID]
	if !ok || cur != sub {
		return
	}
	delete(s.subs, sub.ClientID)
	close(sub.Out)

	for i, c := range s.claims {
		if c.clientID == sub.ClientID {
			s.claims = append(s.claims[:i], s.claims[i+1:]...)
			break
		}
	}
	if len(s.subs) == 0 {
		s.emptySince = time.Now()
		s.saveLocked(context.Background())
	}
	obslog.L().Info("client_left",
		zap.String("game_id", s.ID),
		zap.String("client_id", sub.ClientID),
	)
}

// ApplyMove validates and applies one move from a joined client. On
// acceptance the status is recomputed, a snapshot save is attempted,
// and a move frame fans out to every other subscriber exactly once.
func (s *Session) ApplyMove(ctx context.Context, clientID, from, to, promotion string) (gamedto.MoveFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return gamedto.MoveFrame{}, ErrGameOver
	}
	color, held := s.claimLocked(clientID)
	if !held {
		return gamedto.MoveFrame{}, ErrNotJoined
	}
	if color != s.pos.SideToMove() {
		return gamedto.MoveFrame{}, ErrNotYourTurn
	}

	mv, err := s.pos.FindMove(from, to, promotion)
	if err != nil {
		return gamedto.MoveFrame{}, err
	}
	san := s.pos.SAN(&mv)
	if err := s.pos.Apply(&mv); err != nil {
		return gamedto.MoveFrame{}, err
	}

	s.movesUCI = append(s.movesUCI, mv.String())
	s.movesSAN = append(s.movesSAN, san)
	s.status = s.pos.Status()
	s.lastActive = time.Now()

	s.saveLocked(ctx)

	frame := gamedto.MoveFrame{
		Type:      gamedto.FrameMove,
		From:      from,
		To:        to,
		Promotion: promotion,
		Status:    string(s.status),
	}
	s.broadcastLocked(frame, clientID)

	obslog.L().Info("move_applied",
		zap.String("game_id", s.ID),
		zap.String("client_id", clientID),
		zap.String("move", mv.String()),
		zap.String("status", string(s.status)),
	)
	return frame, nil
}

// Reset replaces the position with a fresh initial one, clears the
// replay log and all claims, and hands white to the resetting client.
// Every subscriber, the resetter included, receives the reset frame.
func (s *Session) Reset(ctx context.Context, clientID string) (gamedto.InitFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[clientID]; !ok {
		return gamedto.InitFrame{}, ErrNotJoined
	}

	s.pos = rules.Initial()
	s.movesUCI = nil
	s.movesSAN = nil
	s.status = s.pos.Status()
	s.claims = []claim{{color: rules.White, clientID: clientID}}
	s.lastActive = time.Now()

	s.saveLocked(ctx)

	// every subscriber hears the reset with its own color; clients
	// whose claim was just cleared get an empty color
	for id, sub := range s.subs {
		color, _ := s.claimLocked(id)
		frame := gamedto.InitFrame{
			Type:        gamedto.FrameReset,
			Color:       string(color),
			Position:    s.pos.FEN(),
			MoveHistory: nil,
			Status:      string(s.status),
		}
		select {
		case sub.Out <- frame:
		default:
			obslog.L().Warn("subscriber_slow_drop",
				zap.String("game_id", s.ID),
				zap.String("client_id", id),
			)
		}
	}

	obslog.L().Info("session_reset",
		zap.String("game_id", s.ID),
		zap.String("client_id", clientID),
	)
	return gamedto.InitFrame{
		Type:        gamedto.FrameReset,
		Color:       string(rules.White),
		Position:    s.pos.FEN(),
		MoveHistory: nil,
		Status:      string(s.status),
	}, nil
}

// Color reports the color held by a client, if any.
func (s *Session) Color(clientID string) (rules.Color, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimLocked(clientID)
}

// Waiting reports whether exactly one color is claimed.
func (s *Session) Waiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims) == 1
}

// tryClose marks the session closed when it has been empty for at
// least ttl. The idle check and the closing happen under one lock, so
// a Join racing the reaper either lands before (session stays) or
// after (it gets ErrSessionClosed and retries the registry).
func (s *Session) tryClose(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) > 0 || s.emptySince.IsZero() || now.Sub(s.emptySince) < ttl {
		return false
	}
	s.closed = true
	return true
}

// ValidateInvariant repairs duplicate color claims, keeping the first
// claimant of each color. It returns the number of dropped claims.
func (s *Session) ValidateInvariant() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[rules.Color]bool, 2)
	kept := s.claims[:0]
	dropped := 0
	for _, c := range s.claims {
		if seen[c.color] {
			dropped++
			continue
		}
		seen[c.color] = true
		kept = append(kept, c)
	}
	s.claims = kept
	if dropped > 0 {
		obslog.L().Warn("duplicate_claims_repaired",
			zap.String("game_id", s.ID),
			zap.Int("dropped", dropped),
		)
	}
	return dropped
}

func (s *Session) claimLocked(clientID string) (rules.Color, bool) {
	for _, c := range s.claims {
		if c.clientID == clientID {
			return c.color, true
		}
	}
	return "", false
}

func (s *Session) freeColorLocked() (rules.Color, bool) {
	taken := make(map[rules.Color]bool, 2)
	for _, c := range s.claims {
		taken[c.color] = true
	}
	if !taken[rules.White] {
		return rules.White, true
	}
	if !taken[rules.Black] {
		return rules.Black, true
	}
	return "", false
}

// saveLocked persists a snapshot. Persistence failure never rejects a
// move; it is logged and the in-memory state stays authoritative.
func (s *Session) saveLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	snap := &store.Snapshot{
		FEN:       s.pos.FEN(),
		MovesUCI:  append([]string(nil), s.movesUCI...),
		MovesSAN:  append([]string(nil), s.movesSAN...),
		Status:    s.status,
		UpdatedAt: time.Now(),
	}
	if err := s.store.Save(ctx, s.ID, snap); err != nil {
		obslog.L().Error("snapshot_save_failed",
			zap.String("game_id", s.ID),
			zap.Error(err),
		)
	}
}

// broadcastLocked fans a frame out to subscribers, skipping exceptID.
// The recipient set is whatever is subscribed at this instant; slow
// subscribers lose frames instead of stalling the room.
func (s *Session) broadcastLocked(frame any, exceptID string) {
	for id, sub := range s.subs {
		if id == exceptID {
			continue
		}
		select {
		case sub.Out <- frame:
		default:
			obslog.L().Warn("subscriber_slow_drop",
				zap.String("game_id", s.ID),
				zap.String("client_id", id),
			)
		}
	}
}

// record builds the archive view of a finished session.
func (s *Session) record() (State, time.Time, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(), s.createdAt, s.lastActive
}

func (s *Session) String() string {
	return fmt.Sprintf("session(%s)", s.ID)
}
