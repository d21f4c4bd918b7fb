package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite3  = "sqlite3"
)

// ErrUnknownDriver is returned when SQLConnector is configured with a driver
// name it cannot build a DSN for.
var ErrUnknownDriver = errors.New("unknown driver")

// SQLConnector implements Connector on top of database/sql. Each Conn it
// returns owns exactly one physical session.
type SQLConnector struct {
	DriverName string
	User       string
	Password   string
	Host       string
	Port       int
}

// DSN builds the data source name for the given database. An empty database
// selects no database on MySQL, the maintenance database on PostgreSQL and an
// in-memory database on SQLite.
func (c *SQLConnector) DSN(database string) (string, error) {
	switch c.DriverName {
	case MySQL, "":
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(c.host(), strconv.Itoa(c.port(3306)))
		cfg.DBName = database
		return cfg.FormatDSN(), nil
	case Postgres:
		if database == "" {
			database = "postgres"
		}
		parts := []string{
			"host=" + pqQuote(c.host()),
			"port=" + strconv.Itoa(c.port(5432)),
			"user=" + pqQuote(c.User),
			"password=" + pqQuote(c.Password),
			"dbname=" + pqQuote(database),
			"sslmode=disable",
		}
		return strings.Join(parts, " "), nil
	case SQLite3:
		if database == "" {
			return ":memory:", nil
		}
		return database, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownDriver, c.DriverName)
	}
}

func (c *SQLConnector) driverName() string {
	if c.DriverName == "" {
		return MySQL
	}
	return c.DriverName
}

func (c *SQLConnector) host() string {
	if c.Host == "" {
		return "127.0.0.1"
	}
	return c.Host
}

func (c *SQLConnector) port(def int) int {
	if c.Port <= 0 {
		return def
	}
	return c.Port
}

func pqQuote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Connect opens a dedicated session. The returned error carries the driver's
// own message so it can be reported verbatim.
func (c *SQLConnector) Connect(ctx context.Context, database string) (Conn, error) {
	dsn, err := c.DSN(database)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(c.driverName(), dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}

	return &sqlConn{db: db, conn: conn, autocommit: database == ""}, nil
}

// sqlConn runs statements inside a transaction, the way a client with
// autocommit disabled would. Sessions opened without a database run every
// statement in autocommit mode instead: they exist for server-level
// statements like CREATE DATABASE.
type sqlConn struct {
	db         *sql.DB
	conn       *sql.Conn
	tx         *sql.Tx
	rows       []Row
	autocommit bool
}

func (c *sqlConn) Execute(ctx context.Context, statement string) error {
	if c.autocommit {
		return c.ExecuteAutocommit(ctx, statement)
	}
	if c.tx == nil {
		tx, err := c.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		c.tx = tx
	}

	rows, err := c.tx.QueryContext(ctx, statement)
	if err != nil {
		return err
	}
	defer rows.Close()

	return c.collect(rows)
}

func (c *sqlConn) ExecuteAutocommit(ctx context.Context, statement string) error {
	if err := c.rollback(); err != nil {
		return err
	}

	rows, err := c.conn.QueryContext(ctx, statement)
	if err != nil {
		return err
	}
	defer rows.Close()

	return c.collect(rows)
}

func (c *sqlConn) collect(rows *sql.Rows) error {
	collected, err := scanRows(rows)
	if err != nil {
		return err
	}
	c.rows = collected
	return nil
}

func (c *sqlConn) rollback() error {
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (c *sqlConn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	return tx.Commit()
}

// Fetch hands over the buffered rows and ends any transaction left open by a
// read so that a recycled session starts clean.
func (c *sqlConn) Fetch(ctx context.Context) ([]Row, error) {
	rows := c.rows
	c.rows = nil
	if rows == nil {
		rows = []Row{}
	}
	if err := c.rollback(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *sqlConn) Close() error {
	var errs []error
	if err := c.rollback(); err != nil {
		errs = append(errs, err)
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		errs = append(errs, err)
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, Row(values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
