// Package drivertest provides a scripted in-memory driver.Connector for tests
// of code that sits on top of the driver contract.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shrek82/mysqlpool/driver"
)

// ErrRefused is the default error returned by failing connect attempts.
var ErrRefused = errors.New("connection refused")

// Connector is a fake driver.Connector. Exported fields configure behaviour and
// may be changed between calls while no call is in flight.
type Connector struct {
	// FailConnects makes the next N connect attempts fail.
	FailConnects int
	// ConnectErr is returned by failing attempts; ErrRefused when nil.
	ConnectErr error
	// ExecErr, when set, decides whether a statement fails.
	ExecErr func(statement string) error
	// CommitErr is returned by every Commit when set.
	CommitErr error
	// FetchErr is returned by every Fetch when set.
	FetchErr error
	// Rows is what Fetch returns after a successful Execute.
	Rows []driver.Row
	// OnExecute, when set, is called inside Execute before it returns.
	OnExecute func(conn *Conn, statement string)

	mu       sync.Mutex
	attempts int
	conns    []*Conn
}

// Connect implements driver.Connector.
func (c *Connector) Connect(ctx context.Context, database string) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempts++
	if c.FailConnects > 0 {
		c.FailConnects--
		if c.ConnectErr != nil {
			return nil, c.ConnectErr
		}
		return nil, ErrRefused
	}

	conn := &Conn{ID: len(c.conns) + 1, Database: database, owner: c}
	c.conns = append(c.conns, conn)
	return conn, nil
}

// Attempts returns the number of Connect calls, failed ones included.
func (c *Connector) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Conns returns every connection created so far.
func (c *Connector) Conns() []*Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Conn, len(c.conns))
	copy(out, c.conns)
	return out
}

// Live returns the number of created connections not yet closed.
func (c *Connector) Live() int {
	n := 0
	for _, conn := range c.Conns() {
		if !conn.Closed() {
			n++
		}
	}
	return n
}

// Conn is a fake session.
type Conn struct {
	ID       int
	Database string

	owner         *Connector
	mu            sync.Mutex
	closed        bool
	statements    []string
	autocommitted []string
	commits       int
	pending       bool
}

func (c *Conn) Execute(ctx context.Context, statement string) error {
	return c.execute(statement, false)
}

// ExecuteAutocommit implements driver.AutocommitConn.
func (c *Conn) ExecuteAutocommit(ctx context.Context, statement string) error {
	return c.execute(statement, true)
}

func (c *Conn) execute(statement string, autocommit bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("conn %d: use of closed connection", c.ID)
	}
	c.statements = append(c.statements, statement)
	if autocommit {
		c.autocommitted = append(c.autocommitted, statement)
	}
	c.mu.Unlock()

	if hook := c.owner.OnExecute; hook != nil {
		hook(c, statement)
	}
	if c.owner.ExecErr != nil {
		if err := c.owner.ExecErr(statement); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.pending = true
	c.mu.Unlock()
	return nil
}

func (c *Conn) Commit(ctx context.Context) error {
	if c.owner.CommitErr != nil {
		return c.owner.CommitErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commits++
	return nil
}

func (c *Conn) Fetch(ctx context.Context) ([]driver.Row, error) {
	if c.owner.FetchErr != nil {
		return nil, c.owner.FetchErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending {
		return []driver.Row{}, nil
	}
	c.pending = false
	rows := make([]driver.Row, len(c.owner.Rows))
	copy(rows, c.owner.Rows)
	return rows, nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("conn %d: already closed", c.ID)
	}
	c.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Statements returns the statements executed on this connection.
func (c *Conn) Statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.statements))
	copy(out, c.statements)
	return out
}

// Commits returns the number of successful commits.
func (c *Conn) Commits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits
}

// Autocommitted returns the statements run through ExecuteAutocommit.
func (c *Conn) Autocommitted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.autocommitted))
	copy(out, c.autocommitted)
	return out
}
