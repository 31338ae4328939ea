package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/sp14green/chessarena/internal/rules"
)

// Record is a finished game ready for archival.
type Record struct {
	GameID    string
	MovesUCI  []string
	MovesSAN  []string
	FinalFEN  string
	Status    rules.Status
	StartedAt time.Time
	EndedAt   time.Time
}

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// EnsureSchema creates the archive table if it does not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	q := `CREATE TABLE IF NOT EXISTS archived_games (
        game_id      TEXT PRIMARY KEY,
        result       TEXT NOT NULL,
        termination  TEXT NOT NULL,
        moves_uci    TEXT NOT NULL,
        moves_san    TEXT NOT NULL,
        final_fen    TEXT NOT NULL,
        pgn          TEXT NOT NULL,
        started_at   TIMESTAMPTZ NOT NULL,
        ended_at     TIMESTAMPTZ NOT NULL,
        duration_ms  BIGINT NOT NULL
    )`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// SaveResult upserts a finished game. Re-archiving the same game ID
// overwrites the earlier row.
func (r *Repository) SaveResult(ctx context.Context, rec *Record) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}

	pgnResult := resultToken(rec)
	pgn := buildPGN(rec, pgnResult)

	movesUCIRaw, _ := json.Marshal(rec.MovesUCI)
	movesSANRaw, _ := json.Marshal(rec.MovesSAN)
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO archived_games (
        game_id, result, termination, moves_uci, moves_san,
        final_fen, pgn, started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
      ) ON CONFLICT (game_id) DO UPDATE SET
        result=EXCLUDED.result,
        termination=EXCLUDED.termination,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        final_fen=EXCLUDED.final_fen,
        pgn=EXCLUDED.pgn,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.GameID,
		pgnResult, string(rec.Status),
		string(movesUCIRaw), string(movesSANRaw),
		rec.FinalFEN, pgn,
		rec.StartedAt, rec.EndedAt, duration,
	)
	return err
}

// resultToken maps a final status to a PGN result string. On checkmate
// the side that just moved won, so the loser is the side to move in the
// final position (the last field consulted via move parity).
func resultToken(rec *Record) string {
	switch rec.Status {
	case rules.StatusCheckmate:
		// even ply count means white is to move and has been mated
		if len(rec.MovesUCI)%2 == 1 {
			return "1-0"
		}
		return "0-1"
	case rules.StatusStalemate,
		rules.StatusDrawInsufficient,
		rules.StatusDrawFiftyMove,
		rules.StatusDrawRepetition:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(rec *Record, pgnResult string) string {
	if rec == nil {
		return ""
	}
	var b strings.Builder
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Chess Arena\"]\n")
	b.WriteString("[Site \"chessarena\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(rec.GameID+"-white")))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(rec.GameID+"-black")))
	if rec.Status.Terminal() {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(string(rec.Status))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(rec.MovesSAN[i])))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	if pgnResult != "" {
		b.WriteString(pgnResult)
	}
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
