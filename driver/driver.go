package driver

import (
	"context"
	"errors"
)

// ErrNoAutocommit is returned when autocommit execution is requested from a
// session that only supports transactional execution.
var ErrNoAutocommit = errors.New("driver does not support autocommit execution")

// Row is one result row. Text columns are returned as string rather than []byte.
type Row []any

// Connector establishes sessions with the database server.
type Connector interface {
	// Connect opens a new session. An empty database means no database is
	// selected, which is what statements like CREATE DATABASE need.
	Connect(ctx context.Context, database string) (Conn, error)
}

// Conn is an established session. It is not safe for concurrent use; the pool
// guarantees a single owner at a time.
type Conn interface {
	// Execute runs a statement inside the session's current transaction,
	// starting one when needed.
	Execute(ctx context.Context, statement string) error
	// Commit commits the current transaction.
	Commit(ctx context.Context) error
	// Fetch returns every row produced by the last Execute. Statements that
	// produce no rows yield an empty slice.
	Fetch(ctx context.Context) ([]Row, error)
	// Close ends the session.
	Close() error
}

// AutocommitConn is implemented by sessions that can run a statement outside
// any transaction. Some statements refuse to run inside one, such as
// CREATE DATABASE on PostgreSQL or VACUUM on SQLite.
type AutocommitConn interface {
	Conn
	// ExecuteAutocommit ends any open transaction, then runs the statement on
	// its own. Rows are fetched with Fetch as usual; Commit has nothing to do.
	ExecuteAutocommit(ctx context.Context, statement string) error
}
