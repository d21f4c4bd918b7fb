package pool

import "errors"

var (
	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrPoolTimeout is returned when ctx ends while waiting for a free slot in a bounded pool.
	ErrPoolTimeout = errors.New("timed out waiting for a connection")
	// ErrConnectionFailed is returned when the retry policy gives up on establishing a connection.
	ErrConnectionFailed = errors.New("connection failed")
)
