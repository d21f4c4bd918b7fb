package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shrek82/mysqlpool/driver"
	"github.com/shrek82/mysqlpool/logger"
	"github.com/shrek82/mysqlpool/sink"
)

// Conn is a connection handed out by a Pool. The caller owns it until it is
// passed back to Release.
type Conn struct {
	driver.Conn

	ID      uint64
	Created time.Time

	// bound is false for connections opened without a database; those are
	// never recycled.
	bound    bool
	released atomic.Bool
}

// Bound reports whether the connection has the pool's database selected.
func (c *Conn) Bound() bool {
	return c.bound
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Idle            int   // connections waiting in the idle stack
	Open            int   // database-bound connections, idle or in use
	Created         int64 // connections established, bound or not
	Destroyed       int64 // connections closed
	Waits           int64 // acquires that blocked on MaxOpen
	ConnectFailures int64 // failed connect attempts
}

// Option configures a Pool.
type Option func(*Pool)

// WithSink sets where connection failures are reported.
func WithSink(s sink.Sink) Option {
	return func(p *Pool) { p.sink = sink.Safe(s) }
}

// WithLogger sets the operational logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) { p.log = l }
}

// WithRetry sets the connection establishment policy.
func WithRetry(r RetryPolicy) Option {
	return func(p *Pool) { p.retry = r.withDefaults() }
}

// WithMaxOpen bounds the number of database-bound connections. Acquire blocks
// while the bound is reached. n <= 0 leaves the pool unbounded.
func WithMaxOpen(n int) Option {
	return func(p *Pool) {
		if n < 0 {
			n = 0
		}
		p.maxOpen = n
	}
}

// Pool recycles connections to a single database. It is safe for concurrent
// use. The mutex only guards in-memory state: connecting, closing and
// sleeping between retries happen outside it.
type Pool struct {
	connector driver.Connector
	database  string
	sink      sink.Sink
	log       logger.Logger
	retry     RetryPolicy
	maxOpen   int

	nextID          atomic.Uint64
	created         atomic.Int64
	destroyed       atomic.Int64
	waits           atomic.Int64
	connectFailures atomic.Int64

	mu      sync.Mutex // protects following fields
	idle    connStack
	open    int
	waiters []chan struct{}
	closed  bool
}

// New creates an empty pool. Connections are opened lazily.
func New(connector driver.Connector, database string, opts ...Option) *Pool {
	p := &Pool{
		connector: connector,
		database:  database,
		sink:      sink.Safe(sink.NewDefault("")),
		log:       logger.NewStdLogger(),
		retry:     DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithFields(map[string]any{"database": database})
	return p
}

// Database returns the database name pooled connections are bound to.
func (p *Pool) Database() string {
	return p.database
}

// Acquire hands out a connection. When databaseRequired is false a brand new
// connection with no database selected is returned; it is closed on Release
// whatever the caller asks. Otherwise an idle connection is reused, or a new
// one is opened when none is idle.
//
// Failed connection attempts are reported as CONNECTION FAIL and retried
// according to the pool's RetryPolicy.
func (p *Pool) Acquire(ctx context.Context, databaseRequired bool) (*Conn, error) {
	if !databaseRequired {
		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return nil, ErrPoolClosed
		}
		return p.connect(ctx, "", false)
	}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if c, ok := p.idle.Pop(); ok {
			p.mu.Unlock()
			c.released.Store(false)
			return c, nil
		}
		if p.maxOpen == 0 || p.open < p.maxOpen {
			p.open++
			p.mu.Unlock()

			c, err := p.connect(ctx, p.database, true)
			if err != nil {
				p.mu.Lock()
				p.open--
				p.notifyLocked()
				p.mu.Unlock()
				return nil, err
			}
			return c, nil
		}

		ch := make(chan struct{})
		p.waiters = append(p.waiters, ch)
		p.mu.Unlock()
		p.waits.Add(1)

		select {
		case <-ch:
		case <-ctx.Done():
			p.mu.Lock()
			if !p.removeWaiterLocked(ch) {
				// Signalled concurrently with cancellation; pass it on.
				p.notifyLocked()
			}
			p.mu.Unlock()
			return nil, errors.Join(ErrPoolTimeout, ctx.Err())
		}
	}
}

// Release returns a connection obtained from Acquire. With destroy set, or
// for a connection opened without a database, or after Close, the connection
// is closed. Otherwise it goes back to the idle stack as is.
func (p *Pool) Release(c *Conn, destroy bool) {
	if c == nil {
		return
	}
	if c.released.Swap(true) {
		p.log.Error("connection %d released twice", c.ID)
		return
	}
	if !c.bound {
		p.destroy(c)
		return
	}

	p.mu.Lock()
	if destroy || p.closed {
		p.open--
		p.notifyLocked()
		p.mu.Unlock()
		p.destroy(c)
		return
	}
	p.idle.Push(c)
	p.notifyLocked()
	p.mu.Unlock()
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	idle, open := p.idle.Len(), p.open
	p.mu.Unlock()
	return Stats{
		Idle:            idle,
		Open:            open,
		Created:         p.created.Load(),
		Destroyed:       p.destroyed.Load(),
		Waits:           p.waits.Load(),
		ConnectFailures: p.connectFailures.Load(),
	}
}

// Close closes every idle connection and fails later acquires. Connections in
// use are closed when they are released. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle.Drain()
	p.open -= len(idle)
	for _, ch := range p.waiters {
		close(ch)
	}
	p.waiters = nil
	p.mu.Unlock()

	var errs []error
	for _, c := range idle {
		if err := p.destroy(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// connect establishes a connection, retrying per policy.
func (p *Pool) connect(ctx context.Context, database string, bound bool) (*Conn, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Join(ErrConnectionFailed, err)
		}

		dc, err := p.connector.Connect(ctx, database)
		if err == nil {
			c := &Conn{
				Conn:    dc,
				ID:      p.nextID.Add(1),
				Created: time.Now(),
				bound:   bound,
			}
			p.created.Add(1)
			p.log.Info("opened connection %d (bound=%t)", c.ID, bound)
			return c, nil
		}

		p.connectFailures.Add(1)
		p.sink.Report(sink.CategoryConnectionFail, err.Error(), "", true)

		if p.retry.MaxAttempts > 0 && attempt >= p.retry.MaxAttempts {
			p.log.Error("giving up after %d connection attempts: %v", attempt, err)
			return nil, errors.Join(ErrConnectionFailed, err)
		}

		wait := p.retry.Backoff(attempt)
		p.log.Warn("connection attempt %d failed, retrying in %v: %v", attempt, wait, err)
		if serr := p.retry.Sleep(ctx, wait); serr != nil {
			return nil, errors.Join(ErrConnectionFailed, err, serr)
		}
	}
}

func (p *Pool) destroy(c *Conn) error {
	p.destroyed.Add(1)
	err := c.Conn.Close()
	if err != nil {
		p.log.Warn("closing connection %d: %v", c.ID, err)
	} else {
		p.log.Info("closed connection %d", c.ID)
	}
	return err
}

func (p *Pool) notifyLocked() {
	if len(p.waiters) == 0 {
		return
	}
	ch := p.waiters[0]
	p.waiters = p.waiters[1:]
	close(ch)
}

func (p *Pool) removeWaiterLocked(ch chan struct{}) bool {
	for i, w := range p.waiters {
		if w == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}
