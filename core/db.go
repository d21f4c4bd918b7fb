package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrek82/mysqlpool/config"
	"github.com/shrek82/mysqlpool/driver"
	"github.com/shrek82/mysqlpool/logger"
	"github.com/shrek82/mysqlpool/pool"
	"github.com/shrek82/mysqlpool/sink"
)

// Option configures collaborators that have no place in a config file.
type Option func(*settings)

type settings struct {
	connector   driver.Connector
	sink        sink.Sink
	logger      logger.Logger
	retry       *pool.RetryPolicy
	middlewares []Middleware
}

// WithConnector replaces the database/sql connector built from the config.
func WithConnector(c driver.Connector) Option {
	return func(s *settings) { s.connector = c }
}

// WithSink replaces the default error sink.
func WithSink(sk sink.Sink) Option {
	return func(s *settings) { s.sink = sk }
}

// WithLogger replaces the logger built from the config.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRetry replaces the retry policy built from the config.
func WithRetry(r pool.RetryPolicy) Option {
	return func(s *settings) { s.retry = &r }
}

// WithMiddleware appends statement middlewares, outermost first.
func WithMiddleware(mws ...Middleware) Option {
	return func(s *settings) { s.middlewares = append(s.middlewares, mws...) }
}

// ExecOption adjusts a single Execute call.
type ExecOption func(*Statement)

// IgnoreErrors controls whether execution failures are swallowed after being
// reported. The default is true.
func IgnoreErrors(ignore bool) ExecOption {
	return func(st *Statement) { st.IgnoreErrors = ignore }
}

// DatabaseRequired controls whether the statement runs on a pooled connection
// bound to the configured database. The default is true. Statements such as
// CREATE DATABASE pass false and get a throwaway connection.
func DatabaseRequired(required bool) ExecOption {
	return func(st *Statement) { st.DatabaseRequired = required }
}

// Autocommit runs the statement outside any transaction, for statements that
// refuse to run inside one. The driver must implement driver.AutocommitConn.
// Connections opened with DatabaseRequired(false) autocommit already.
func Autocommit(enabled bool) ExecOption {
	return func(st *Statement) { st.Autocommit = enabled }
}

// DB owns the connection pool for one database target and executes statements
// on it. It is safe for concurrent use and is meant to live as long as the
// application.
type DB struct {
	cfg         config.Config
	pool        *pool.Pool
	sink        sink.Sink
	logger      logger.Logger
	middlewares []Middleware
	exec        ExecFunc
	closers     []io.Closer
}

// New builds a DB from cfg. No connection is opened until the first Execute.
func New(cfg config.Config, opts ...Option) (*DB, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}

	db := &DB{cfg: cfg}

	db.logger = s.logger
	if db.logger == nil {
		l := logger.NewStdLogger()
		l.SetLevel(logger.ParseLevel(cfg.Logging.Level))
		l.SetFormat(logger.LogFormat(cfg.Logging.Format))
		db.logger = l
	}

	if s.sink != nil {
		db.sink = sink.Safe(s.sink)
	} else {
		var sk sink.Sink = sink.NewDefault(cfg.LogFile)
		if cfg.Redis.Addr != "" {
			rs := sink.NewRedis(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			}, cfg.Redis.Key)
			db.closers = append(db.closers, rs)
			sk = sink.Multi(sk, rs)
		}
		db.sink = sink.Safe(sk)
	}

	connector := s.connector
	if connector == nil {
		connector = &driver.SQLConnector{
			DriverName: cfg.Driver,
			User:       cfg.User,
			Password:   cfg.Password,
			Host:       cfg.Host,
			Port:       cfg.Port,
		}
	}

	retry := pool.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     pool.ConstantBackoff(cfg.Retry.Interval),
	}
	if s.retry != nil {
		retry = *s.retry
	}

	db.pool = pool.New(connector, cfg.Database,
		pool.WithSink(db.sink),
		pool.WithLogger(db.logger),
		pool.WithRetry(retry),
		pool.WithMaxOpen(cfg.MaxOpenConns),
	)

	for _, mw := range s.middlewares {
		if err := mw.Init(db); err != nil {
			db.shutdownMiddlewares()
			return nil, fmt.Errorf("failed to init middleware %s: %w", mw.Name(), err)
		}
		db.middlewares = append(db.middlewares, mw)
	}
	db.exec = chain(db.middlewares, db.run)

	return db, nil
}

// Open loads a YAML config file and builds a DB from it.
func Open(path string, opts ...Option) (*DB, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Config returns the configuration the DB was built with.
func (db *DB) Config() config.Config {
	return db.cfg
}

// Pool exposes the underlying connection pool.
func (db *DB) Pool() *pool.Pool {
	return db.pool
}

// Stats returns pool counters.
func (db *DB) Stats() pool.Stats {
	return db.pool.Stats()
}

// Logger returns the operational logger.
func (db *DB) Logger() logger.Logger {
	return db.logger
}

// Execute runs one statement on a pooled connection and returns every row it
// produced.
//
// When commitRequired is set the transaction is committed and the connection
// is closed afterwards instead of being recycled. A connection that saw any
// execution failure is closed too.
//
// Execution failures are reported to the error sink as EXCEPTION. With
// IgnoreErrors(true), the default, Execute then returns nil rows and a nil
// error; with IgnoreErrors(false) the failure is returned. Failures to obtain
// a connection are always returned.
func (db *DB) Execute(ctx context.Context, statement string, commitRequired bool, opts ...ExecOption) ([]driver.Row, error) {
	st := &Statement{
		SQL:              statement,
		CommitRequired:   commitRequired,
		IgnoreErrors:     true,
		DatabaseRequired: true,
	}
	for _, opt := range opts {
		opt(st)
	}

	var (
		rows []driver.Row
		err  error
	)
	if strings.TrimSpace(st.SQL) == "" {
		err = ErrInvalidSQL
	} else {
		rows, err = db.exec(ctx, st)
	}
	if err == nil {
		return rows, nil
	}

	var aerr *acquireError
	if errors.As(err, &aerr) {
		return nil, aerr.err
	}

	db.sink.Report(sink.CategoryException, err.Error(), "", true)
	if st.IgnoreErrors {
		return nil, nil
	}
	return nil, err
}

// run is the innermost step of the chain: acquire, execute, commit, fetch,
// release.
func (db *DB) run(ctx context.Context, st *Statement) ([]driver.Row, error) {
	start := time.Now()

	conn, err := db.pool.Acquire(ctx, st.DatabaseRequired)
	if err != nil {
		return nil, &acquireError{err}
	}

	// Stays set if execute panics, so the connection is closed and its slot freed.
	destroy := true
	defer func() { db.pool.Release(conn, destroy) }()

	rows, err := execute(ctx, conn.Conn, st)
	if err != nil {
		rows = nil
	} else {
		destroy = st.CommitRequired
	}

	db.logger.SQL(st.SQL, time.Since(start), err)
	return rows, err
}

func execute(ctx context.Context, conn driver.Conn, st *Statement) ([]driver.Row, error) {
	if err := executeStatement(ctx, conn, st); err != nil {
		return nil, err
	}
	if st.CommitRequired {
		if err := conn.Commit(ctx); err != nil {
			return nil, err
		}
	}
	return conn.Fetch(ctx)
}

func executeStatement(ctx context.Context, conn driver.Conn, st *Statement) error {
	if !st.Autocommit {
		return conn.Execute(ctx, st.SQL)
	}
	ac, ok := conn.(driver.AutocommitConn)
	if !ok {
		return driver.ErrNoAutocommit
	}
	return ac.ExecuteAutocommit(ctx, st.SQL)
}

// Close shuts down middlewares, closes idle connections and releases sink
// resources. Connections still in use are closed when their call finishes.
func (db *DB) Close() error {
	errs := []error{db.shutdownMiddlewares(), db.pool.Close()}
	for _, c := range db.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (db *DB) shutdownMiddlewares() error {
	var errs []error
	for _, mw := range db.middlewares {
		if err := mw.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mw.Name(), err))
		}
	}
	db.middlewares = nil
	return errors.Join(errs...)
}
