package ai

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	chesslib "github.com/corentings/chess/v2"
)

// Mode picks how the non-human side chooses its move.
type Mode string

const (
	// ModeSearch uses the built-in bounded minimax.
	ModeSearch Mode = "minimax"
	// ModeEngine delegates to the external UCI engine.
	ModeEngine Mode = "engine"
)

var (
	ErrUnknownMode       = errors.New("unknown game mode")
	ErrEngineUnavailable = errors.New("external engine unavailable")
)

// EngineClient is the external strongest-play collaborator: given a
// position and a thinking-time budget it reports one move in UCI
// notation or fails. Lifecycle of the engine process is its concern.
type EngineClient interface {
	BestMove(ctx context.Context, fen string, budget time.Duration) (string, error)
}

// Selector chooses a move by consulting the opening book first, then
// falling back to the configured mode.
type Selector struct {
	book         *Book
	depth        int
	engine       EngineClient
	engineBudget time.Duration

	randMu sync.Mutex
	rand   *rand.Rand

	// searchFn is swapped in tests to observe whether the search ran.
	searchFn func(*chesslib.Position, int) (chesslib.Move, float64, error)
}

// NewSelector builds a selector. book and engine may be nil; a nil
// engine makes ModeEngine fail with ErrEngineUnavailable.
func NewSelector(book *Book, depth int, engine EngineClient, engineBudget time.Duration) *Selector {
	if depth <= 0 {
		depth = 2
	}
	if engineBudget <= 0 {
		engineBudget = 100 * time.Millisecond
	}
	return &Selector{
		book:         book,
		depth:        depth,
		engine:       engine,
		engineBudget: engineBudget,
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
		searchFn:     BestMove,
	}
}

// SetRandomSeed fixes the book-choice randomness for reproducible runs.
func (s *Selector) SetRandomSeed(seed int64) {
	s.randMu.Lock()
	s.rand = rand.New(rand.NewSource(seed))
	s.randMu.Unlock()
}

// Select returns a move for the side to move in pos. The opening book
// is consulted first; a validated hit short-circuits both the search
// and the engine. ErrNoMove signals a terminal position.
func (s *Selector) Select(ctx context.Context, pos *chesslib.Position, mode Mode) (chesslib.Move, error) {
	if candidates := s.book.Candidates(pos); len(candidates) > 0 {
		s.randMu.Lock()
		pick := candidates[s.rand.Intn(len(candidates))]
		s.randMu.Unlock()
		return pick, nil
	}

	switch mode {
	case ModeSearch:
		mv, _, err := s.searchFn(pos, s.depth)
		return mv, err
	case ModeEngine:
		return s.engineMove(ctx, pos)
	default:
		return chesslib.Move{}, fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}
}

func (s *Selector) engineMove(ctx context.Context, pos *chesslib.Position) (chesslib.Move, error) {
	if s.engine == nil {
		return chesslib.Move{}, ErrEngineUnavailable
	}
	uci, err := s.engine.BestMove(ctx, pos.String(), s.engineBudget)
	if err != nil {
		return chesslib.Move{}, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	uci = strings.ToLower(strings.TrimSpace(uci))
	for _, mv := range pos.ValidMoves() {
		if mv.String() == uci {
			return mv, nil
		}
	}
	return chesslib.Move{}, fmt.Errorf("%w: engine returned illegal move %q", ErrEngineUnavailable, uci)
}
