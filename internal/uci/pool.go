package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"
)

var errPoolAtCapacity = errors.New("engine pool at capacity")

// PoolConfig configures the engine process pool.
type PoolConfig struct {
	BinaryPath string
	Options    Options
	Capacity   int
}

// Pool keeps a bounded set of reusable engine sessions. Sessions are
// created on demand up to the capacity; releasing with an error
// discards the process instead of reusing it.
type Pool struct {
	binaryPath string
	opt        Options
	capacity   int

	mu    sync.Mutex
	total int
	idle  chan *Session
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity()
	}
	return &Pool{
		binaryPath: cfg.BinaryPath,
		opt:        cfg.Options,
		capacity:   capacity,
		idle:       make(chan *Session, capacity),
	}, nil
}

// Acquire returns a ready session, preferring an idle one, creating a
// new one under capacity, and otherwise waiting for a release.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		select {
		case session := <-p.idle:
			if session == nil {
				continue
			}
			if err := session.EnsureReady(ctx); err != nil {
				p.discard(session)
				continue
			}
			return session, nil
		default:
		}

		session, err := p.create(ctx)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, errPoolAtCapacity) {
			return nil, err
		}

		select {
		case session := <-p.idle:
			if session == nil {
				continue
			}
			if err := session.EnsureReady(ctx); err != nil {
				p.discard(session)
				continue
			}
			return session, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns a session to the pool, or discards it when the
// caller observed an error on it.
func (p *Pool) Release(session *Session, err error) {
	if session == nil {
		return
	}
	if err != nil {
		p.discard(session)
		return
	}
	select {
	case p.idle <- session:
	default:
		p.discard(session)
	}
}

func (p *Pool) Close() error {
	var errs []error
	for {
		select {
		case session := <-p.idle:
			if session == nil {
				continue
			}
			if err := session.Close(); err != nil {
				errs = append(errs, err)
			}
			p.decrement()
		default:
			if len(errs) > 0 {
				return errors.Join(errs...)
			}
			return nil
		}
	}
}

func (p *Pool) create(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.total >= p.capacity {
		p.mu.Unlock()
		return nil, errPoolAtCapacity
	}
	p.total++
	p.mu.Unlock()

	session, err := NewSession(ctx, p.binaryPath, p.opt)
	if err != nil {
		p.decrement()
		return nil, err
	}
	return session, nil
}

func (p *Pool) discard(session *Session) {
	if session != nil {
		_ = session.Close()
	}
	p.decrement()
}

func (p *Pool) decrement() {
	p.mu.Lock()
	if p.total > 0 {
		p.total--
	}
	p.mu.Unlock()
}

func defaultCapacity() int {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		return 2
	}
	if cpu > 4 {
		return 4
	}
	return cpu
}

// Engine adapts the pool to the move selector's collaborator contract:
// one position in, one UCI move out, within a time budget.
type Engine struct {
	pool *Pool
}

func NewEngine(binaryPath string, opt Options) (*Engine, error) {
	pool, err := NewPool(PoolConfig{BinaryPath: binaryPath, Options: opt})
	if err != nil {
		return nil, err
	}
	return &Engine{pool: pool}, nil
}

// BestMove acquires a session, resets it, and runs one bounded search.
func (e *Engine) BestMove(ctx context.Context, fen string, budget time.Duration) (string, error) {
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	var opErr error
	defer func() {
		e.pool.Release(session, opErr)
	}()

	if opErr = session.NewGame(ctx); opErr != nil {
		return "", opErr
	}
	var move string
	move, opErr = session.BestMove(ctx, fen, budget)
	if opErr != nil {
		return "", opErr
	}
	return move, nil
}

func (e *Engine) Close() error {
	if e.pool == nil {
		return nil
	}
	return e.pool.Close()
}
