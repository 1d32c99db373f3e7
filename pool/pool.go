// Package pool implements the fixed-size connection pool of spec.md
// §4.K: semaphore-counted acquisition bounded by max_connections, an
// optional min_connections warm set, and acquire-timeout producing
// qailerr.PoolExhausted. A checked-out connection found broken is
// discarded rather than returned to the pool.
//
// Grounded on SPEC_FULL.md's domain-stack wiring of
// golang.org/x/sync/semaphore (pulled from hashicorp/mql's postgres test
// module / qail-go's indirect x/sync dependency) for bounded acquisition,
// since the retrieval pack carries no standalone connection pool to
// imitate; the acquire/release shape follows spec.md §4.K directly.
package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/qail-lang/qail/pgconn"
	"github.com/qail-lang/qail/qailerr"
)

// Factory creates a new Connection, used both for the initial
// min-connections warm set and for replacing a discarded broken
// connection.
type Factory func(ctx context.Context) (*pgconn.Connection, error)

// Pool is a fixed-size set of pgconn.Connection, acquired with a
// semaphore and returned to an internal free list on release.
type Pool struct {
	factory Factory
	sem     *semaphore.Weighted
	max     int64

	mu   sync.Mutex
	free []*pgconn.Connection
}

// Config configures a Pool.
type Config struct {
	MaxConnections int
	MinConnections int
}

// New builds a Pool bounded by cfg.MaxConnections, warming
// cfg.MinConnections eagerly via factory.
func New(ctx context.Context, factory Factory, cfg Config) (*Pool, error) {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 1
	}
	p := &Pool{
		factory: factory,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConnections)),
		max:     int64(cfg.MaxConnections),
	}
	for i := 0; i < cfg.MinConnections && i < cfg.MaxConnections; i++ {
		conn, err := factory(ctx)
		if err != nil {
			p.CloseAll()
			return nil, err
		}
		p.free = append(p.free, conn)
	}
	return p, nil
}

// Guard is a checked-out connection; callers must call Release exactly
// once, whether or not the connection was used successfully.
type Guard struct {
	pool *Pool
	conn *pgconn.Connection
}

// Conn returns the underlying connection.
func (g *Guard) Conn() *pgconn.Connection { return g.conn }

// Release returns the connection to the pool, or discards and replaces
// it if it's been marked broken (spec.md §4.K).
func (g *Guard) Release(ctx context.Context) {
	g.pool.release(ctx, g.conn)
}

// Acquire waits for a free connection slot, bounded by timeout (achieved
// via ctx's deadline/cancellation), and returns a Guard. A timed-out wait
// returns a PoolExhausted error.
func (p *Pool) Acquire(ctx context.Context) (*Guard, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, qailerr.New(qailerr.PoolExhausted, "timed out waiting for a connection")
	}

	p.mu.Lock()
	var conn *pgconn.Connection
	if n := len(p.free); n > 0 {
		conn = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if conn == nil {
		c, err := p.factory(ctx)
		if err != nil {
			p.sem.Release(1)
			return nil, err
		}
		conn = c
	} else if conn.Broken() {
		conn.Close()
		c, err := p.factory(ctx)
		if err != nil {
			p.sem.Release(1)
			return nil, err
		}
		conn = c
	}

	return &Guard{pool: p, conn: conn}, nil
}

func (p *Pool) release(ctx context.Context, conn *pgconn.Connection) {
	defer p.sem.Release(1)

	if conn.Broken() {
		conn.Close()
		if replacement, err := p.factory(ctx); err == nil {
			p.mu.Lock()
			p.free = append(p.free, replacement)
			p.mu.Unlock()
		}
		return
	}

	p.mu.Lock()
	p.free = append(p.free, conn)
	p.mu.Unlock()
}

// CloseAll closes every idle connection currently held by the pool.
// Connections checked out via a live Guard are unaffected until released.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.free {
		c.Close()
	}
	p.free = nil
}
