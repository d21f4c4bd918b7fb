package core

import (
	"errors"

	"github.com/shrek82/mysqlpool/pool"
)

var (
	// ErrInvalidSQL is returned when a statement is empty.
	ErrInvalidSQL = errors.New("invalid sql")
	// ErrConnectionFailed is returned when a bounded retry policy gives up.
	ErrConnectionFailed = pool.ErrConnectionFailed
	// ErrPoolClosed is returned by Execute after Close.
	ErrPoolClosed = pool.ErrPoolClosed
	// ErrPoolTimeout is returned when ctx ends while waiting on a bounded pool.
	ErrPoolTimeout = pool.ErrPoolTimeout
)

// acquireError marks failures to obtain a connection. They are reported by
// the pool itself and are never swallowed by IgnoreErrors.
type acquireError struct {
	err error
}

func (e *acquireError) Error() string { return e.err.Error() }
func (e *acquireError) Unwrap() error { return e.err }
