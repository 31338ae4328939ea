package room

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sp14green/chessarena/internal/archive"
	"github.com/sp14green/chessarena/internal/obslog"
	"github.com/sp14green/chessarena/internal/rules"
	"github.com/sp14green/chessarena/internal/store"
)

const (
	defaultIdleTTL      = 30 * time.Minute
	defaultReapInterval = time.Minute
)

// Manager owns the registry of live sessions. Lookups take the read
// lock; creation and reaping take the write lock. Loading a snapshot
// always goes through replay of the move log, never the stored FEN.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store        store.Store
	repo         *archive.Repository
	idleTTL      time.Duration
	reapInterval time.Duration
}

type ManagerOption func(*Manager)

func WithIdleTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.idleTTL = ttl
		}
	}
}

func WithReapInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		if interval > 0 {
			m.reapInterval = interval
		}
	}
}

// WithArchive attaches a Postgres repository; finished games are
// archived when their session is reaped. Nil disables archiving.
func WithArchive(repo *archive.Repository) ManagerOption {
	return func(m *Manager) { m.repo = repo }
}

func NewManager(st store.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions:     make(map[string]*Session),
		store:        st,
		idleTTL:      defaultIdleTTL,
		reapInterval: defaultReapInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns an existing in-memory session without creating one.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the live session for an id, seeding it from a
// persisted snapshot when one exists. The snapshot's move log is
// replayed from the initial position; a snapshot that fails to replay
// is discarded and the game starts fresh.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	if s, ok := m.sessions[id]; ok {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}

	pos := rules.Initial()
	var movesUCI, movesSAN []string
	if m.store != nil {
		snap, err := m.store.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", id, err)
		}
		if snap != nil {
			replayed, err := rules.Replay(snap.MovesUCI)
			if err != nil {
				obslog.L().Warn("snapshot_replay_failed",
					zap.String("game_id", id),
					zap.Error(err),
				)
			} else {
				pos = replayed
				movesUCI = snap.MovesUCI
				movesSAN = snap.MovesSAN
			}
		}
	}

	s := newSession(id, pos, movesUCI, movesSAN, m.store)
	m.sessions[id] = s
	obslog.L().Info("session_created",
		zap.String("game_id", id),
		zap.Int("replayed_moves", len(movesUCI)),
	)
	return s, nil
}

// ListWaiting returns the ids of sessions with exactly one claimed
// color, sorted for a stable response.
func (m *Manager) ListWaiting() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, s := range m.sessions {
		if s.Waiting() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ValidateInvariant repairs duplicate color claims across all sessions
// and returns the total number of dropped claims.
func (m *Manager) ValidateInvariant() int {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	total := 0
	for _, s := range sessions {
		total += s.ValidateInvariant()
	}
	return total
}

// Run drives the reaper until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.reap(ctx, now)
		}
	}
}

// reap drops sessions that have had no subscribers for longer than the
// idle TTL. Finished games are archived first; their snapshots are
// deleted since the archive row supersedes them. Unfinished games keep
// their snapshot so a later join resumes them.
func (m *Manager) reap(ctx context.Context, now time.Time) {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.tryClose(now, m.idleTTL) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		state, startedAt, endedAt := s.record()
		if state.Status.Terminal() {
			m.archiveFinished(ctx, s.ID, state, startedAt, endedAt)
		}
		obslog.L().Info("session_reaped",
			zap.String("game_id", s.ID),
			zap.String("status", string(state.Status)),
		)
	}
}

func (m *Manager) archiveFinished(ctx context.Context, id string, state State, startedAt, endedAt time.Time) {
	if m.repo != nil {
		rec := &archive.Record{
			GameID:    id,
			MovesUCI:  state.MovesUCI,
			MovesSAN:  state.MovesSAN,
			FinalFEN:  state.FEN,
			Status:    state.Status,
			StartedAt: startedAt,
			EndedAt:   endedAt,
		}
		if err := m.repo.SaveResult(ctx, rec); err != nil {
			obslog.L().Error("archive_failed",
				zap.String("game_id", id),
				zap.Error(err),
			)
			return
		}
	}
	if m.store != nil {
		if err := m.store.Delete(ctx, id); err != nil {
			obslog.L().Warn("snapshot_delete_failed",
				zap.String("game_id", id),
				zap.Error(err),
			)
		}
	}
}
