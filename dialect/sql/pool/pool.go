// Package pool implements a bounded pool of live database connections with
// validation on acquisition, lifetime and idle aging, and best-effort
// backfill to a minimum idle count.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrPoolExhausted is returned when no connection could be acquired
	// within the configured acquisition timeout.
	ErrPoolExhausted = errors.New("pool: exhausted")
	// ErrClosed is returned by operations on a closed pool.
	ErrClosed = errors.New("pool: closed")
)

// Conn is a single live database connection. *sql.Conn implements it.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Opener opens a new physical connection.
type Opener func(context.Context) (Conn, error)

// DBOpener returns an Opener that takes dedicated connections from db.
// The db should be configured with SetMaxIdleConns(0) so that retiring a
// connection closes it instead of parking it in the database/sql pool.
func DBOpener(db *sql.DB) Opener {
	return func(ctx context.Context) (Conn, error) {
		c, err := db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// PooledConn is a connection checked out of a Pool. It must be handed
// back with Pool.Release; releasing twice is a no-op.
type PooledConn struct {
	Conn
	pool      *Pool
	createdAt time.Time
	lastUsed  time.Time
	out       atomic.Bool
}

// Release returns the connection to its pool.
func (c *PooledConn) Release() { c.pool.Release(c) }

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Open     int   // Open connections, idle or checked out.
	Idle     int   // Idle connections.
	InUse    int64 // Checked out connections.
	Opened   int64 // Connections opened over the pool lifetime.
	Retired  int64 // Connections closed over the pool lifetime.
	Invalid  int64 // Connections that failed validation.
	Timeouts int64 // Acquisitions that failed with ErrPoolExhausted.
}

// Pool is a bounded connection pool. All methods are safe for concurrent use.
type Pool struct {
	cfg  Config
	open Opener
	log  *slog.Logger
	now  func() time.Time

	idle  chan *PooledConn
	slots chan struct{} // one token per open connection
	done  chan struct{}

	mu     sync.Mutex // guards closed transitions and wg.Add
	closed atomic.Bool
	wg     sync.WaitGroup

	inUse, opened, retired, invalid, timeouts atomic.Int64
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for retirement and backfill events.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.log = l }
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// New creates a pool and warms it up with cfg.MinIdle connections.
func New(ctx context.Context, cfg Config, open Opener, opts ...Option) (*Pool, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if open == nil {
		return nil, errors.New("pool: nil opener")
	}
	p := &Pool{
		cfg:   cfg,
		open:  open,
		log:   slog.Default(),
		now:   time.Now,
		idle:  make(chan *PooledConn, cfg.MaxSize),
		slots: make(chan struct{}, cfg.MaxSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.warm(ctx); err != nil {
		return nil, errors.Join(err, p.Close())
	}
	return p, nil
}

// warm opens MinIdle connections in parallel.
func (p *Pool) warm(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.MinIdle; i++ {
		p.slots <- struct{}{}
		g.Go(func() error {
			c, err := p.dial(ctx)
			if err != nil {
				return err
			}
			p.idle <- c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("pool: warm up: %w", err)
	}
	return nil
}

// Config returns the pool configuration.
func (p *Pool) Config() Config { return p.cfg }

// Acquire checks out a validated connection, waiting up to the acquisition
// timeout for an idle connection or a free slot. A connection failing
// validation is retired and replaced once before the error is surfaced.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()
	replaced := false
	for {
		c, err := p.next(ctx, timer)
		if err != nil {
			return nil, err
		}
		if p.closed.Load() {
			p.retire(c, "pool closed")
			return nil, ErrClosed
		}
		if reason := p.expired(c, p.now()); reason != "" {
			p.retire(c, reason)
			continue
		}
		if err := p.validate(ctx, c); err != nil {
			p.invalid.Add(1)
			p.retire(c, "invalid")
			if replaced {
				return nil, fmt.Errorf("pool: connection validation failed: %w", err)
			}
			replaced = true
			continue
		}
		c.lastUsed = p.now()
		c.out.Store(true)
		p.inUse.Add(1)
		return c, nil
	}
}

// next returns an idle connection, or opens one if a slot is free.
func (p *Pool) next(ctx context.Context, timer *time.Timer) (*PooledConn, error) {
	select {
	case c := <-p.idle:
		return c, nil
	default:
	}
	select {
	case c := <-p.idle:
		return c, nil
	case p.slots <- struct{}{}:
		return p.dial(ctx)
	case <-timer.C:
		p.timeouts.Add(1)
		return nil, fmt.Errorf("%w: no connection available within %s (max size %d)", ErrPoolExhausted, p.cfg.AcquireTimeout, p.cfg.MaxSize)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrClosed
	}
}

// dial opens a connection for an already reserved slot. The slot is freed
// on failure, and when the pool was closed while the connection opened.
func (p *Pool) dial(ctx context.Context) (*PooledConn, error) {
	raw, err := p.open(ctx)
	if err != nil {
		<-p.slots
		return nil, fmt.Errorf("pool: open connection: %w", err)
	}
	if p.closed.Load() {
		if err := raw.Close(); err != nil {
			p.log.Debug("pool: close connection", "reason", "pool closed", "error", err)
		}
		<-p.slots
		return nil, ErrClosed
	}
	p.opened.Add(1)
	now := p.now()
	return &PooledConn{Conn: raw, pool: p, createdAt: now, lastUsed: now}, nil
}

func (p *Pool) validate(ctx context.Context, c *PooledConn) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ValidationTimeout)
	defer cancel()
	return c.PingContext(ctx)
}

// expired reports why c must be retired, or "" if it is still usable.
func (p *Pool) expired(c *PooledConn, now time.Time) string {
	switch {
	case now.Sub(c.createdAt) > p.cfg.MaxLifetime:
		return "max lifetime"
	case now.Sub(c.lastUsed) > p.cfg.IdleTimeout:
		return "idle timeout"
	}
	return ""
}

// Release returns c to the pool. Connections past their lifetime or idle
// timeout are retired and the pool is backfilled to its minimum idle count.
func (p *Pool) Release(c *PooledConn) {
	if c == nil || !c.out.CompareAndSwap(true, false) {
		return
	}
	p.inUse.Add(-1)
	if p.closed.Load() {
		p.retire(c, "pool closed")
		return
	}
	now := p.now()
	if reason := p.expired(c, now); reason != "" {
		p.retire(c, reason)
		p.backfill()
		return
	}
	c.lastUsed = now
	select {
	case p.idle <- c:
	default:
		// Unreachable while slots bound the number of connections.
		p.retire(c, "idle queue full")
	}
}

// retire closes c and frees its slot.
func (p *Pool) retire(c *PooledConn, reason string) {
	if err := c.Close(); err != nil {
		p.log.Debug("pool: close connection", "reason", reason, "error", err)
	}
	p.retired.Add(1)
	<-p.slots
	p.log.Debug("pool: connection retired", "reason", reason)
}

// backfill tops the idle queue up to MinIdle in the background.
func (p *Pool) backfill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() || len(p.idle) >= p.cfg.MinIdle {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for len(p.idle) < p.cfg.MinIdle && !p.closed.Load() {
			select {
			case p.slots <- struct{}{}:
			default:
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
			c, err := p.dial(ctx)
			cancel()
			if errors.Is(err, ErrClosed) {
				return
			}
			if err != nil {
				p.log.Warn("pool: backfill failed", "error", err)
				return
			}
			p.idle <- c
		}
	}()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Open:     len(p.slots),
		Idle:     len(p.idle),
		InUse:    p.inUse.Load(),
		Opened:   p.opened.Load(),
		Retired:  p.retired.Load(),
		Invalid:  p.invalid.Load(),
		Timeouts: p.timeouts.Load(),
	}
}

// Close retires every idle connection and makes later acquisitions fail.
// Connections still checked out are retired when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if !p.closed.CompareAndSwap(false, true) {
		p.mu.Unlock()
		return nil
	}
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
	var errs []error
	for {
		select {
		case c := <-p.idle:
			errs = append(errs, c.Close())
			p.retired.Add(1)
			<-p.slots
		default:
			return errors.Join(errs...)
		}
	}
}
