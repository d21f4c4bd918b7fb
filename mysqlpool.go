package mysqlpool

import (
	"github.com/shrek82/mysqlpool/config"
	"github.com/shrek82/mysqlpool/core"
	"github.com/shrek82/mysqlpool/driver"
	"github.com/shrek82/mysqlpool/sink"
)

// Re-export core types and functions
type DB = core.DB
type Config = config.Config
type Row = driver.Row
type Statement = core.Statement
type SchemaHook = core.SchemaHook
type SchemaFunc = core.SchemaFunc
type Sink = sink.Sink
type SinkFunc = sink.SinkFunc

var (
	New           = core.New
	Open          = core.Open
	DefaultConfig = config.Default
	LoadConfig    = config.Load

	// Execute options
	IgnoreErrors     = core.IgnoreErrors
	DatabaseRequired = core.DatabaseRequired
	Autocommit       = core.Autocommit

	// Construction options
	WithConnector  = core.WithConnector
	WithSink       = core.WithSink
	WithLogger     = core.WithLogger
	WithRetry      = core.WithRetry
	WithMiddleware = core.WithMiddleware

	NoopSchema = core.NoopSchema

	ErrInvalidSQL       = core.ErrInvalidSQL
	ErrConnectionFailed = core.ErrConnectionFailed
	ErrPoolClosed       = core.ErrPoolClosed
	ErrPoolTimeout      = core.ErrPoolTimeout
	ErrNoAutocommit     = driver.ErrNoAutocommit
)

// Error sink categories
const (
	CategoryConnectionFail = sink.CategoryConnectionFail
	CategoryException      = sink.CategoryException
)
