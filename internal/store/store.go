package store

import (
	"context"
	"time"

	"github.com/sp14green/chessarena/internal/rules"
)

// Snapshot is the persisted projection of a session: the canonical
// position key, the authoritative replay log in UCI, the derived SAN
// history served to clients, and the derived status. It is written on
// every accepted move and on last-client disconnect, and read once on
// first access after a restart.
type Snapshot struct {
	FEN       string       `json:"fen"`
	MovesUCI  []string     `json:"moves_uci"`
	MovesSAN  []string     `json:"moves_san"`
	Status    rules.Status `json:"status"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Store is the durable snapshot backend, one record per session id.
// Load returns (nil, nil) when no snapshot exists.
type Store interface {
	Save(ctx context.Context, sessionID string, snap *Snapshot) error
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}
