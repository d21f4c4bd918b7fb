package driver

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestSQLConnectorDSN(t *testing.T) {
	tests := []struct {
		name     string
		conn     SQLConnector
		database string
		want     string
	}{
		{
			name:     "mysql with database",
			conn:     SQLConnector{DriverName: MySQL, User: "root", Password: "secret", Host: "db.local"},
			database: "music",
			want:     "root:secret@tcp(db.local:3306)/music",
		},
		{
			name:     "mysql defaults without database",
			conn:     SQLConnector{User: "root", Password: "secret"},
			database: "",
			want:     "root:secret@tcp(127.0.0.1:3306)/",
		},
		{
			name:     "mysql custom port",
			conn:     SQLConnector{DriverName: MySQL, User: "app", Password: "pw", Host: "10.0.0.5", Port: 3307},
			database: "shop",
			want:     "app:pw@tcp(10.0.0.5:3307)/shop",
		},
		{
			name:     "sqlite file",
			conn:     SQLConnector{DriverName: SQLite3},
			database: "/tmp/app.db",
			want:     "/tmp/app.db",
		},
		{
			name:     "sqlite without database",
			conn:     SQLConnector{DriverName: SQLite3},
			database: "",
			want:     ":memory:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.conn.DSN(tt.database)
			if err != nil {
				t.Fatalf("DSN failed: %v", err)
			}
			// go-sql-driver may append non-default parameters after the path.
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("Expected prefix %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSQLConnectorPostgresDSN(t *testing.T) {
	c := SQLConnector{DriverName: Postgres, User: "app", Password: "it's", Host: "pg"}

	dsn, err := c.DSN("")
	if err != nil {
		t.Fatalf("DSN failed: %v", err)
	}
	for _, part := range []string{"host='pg'", "port=5432", "user='app'", `password='it\'s'`, "dbname='postgres'"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("Expected %q in %q", part, dsn)
		}
	}
}

func TestSQLConnectorUnknownDriver(t *testing.T) {
	c := SQLConnector{DriverName: "oracle"}
	if _, err := c.DSN("x"); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("Expected ErrUnknownDriver, got %v", err)
	}
	if _, err := c.Connect(context.Background(), "x"); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("Expected ErrUnknownDriver from Connect, got %v", err)
	}
}

func TestSQLConnSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pool.db")
	c := &SQLConnector{DriverName: SQLite3}

	conn, err := c.Connect(ctx, path)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	if err := conn.Execute(ctx, "CREATE TABLE songs (id INTEGER PRIMARY KEY, title TEXT)"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := conn.Commit(ctx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	rows, err := conn.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected no rows from DDL, got %v", rows)
	}

	if err := conn.Execute(ctx, "INSERT INTO songs (id, title) VALUES (1, 'intro'), (2, 'outro')"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := conn.Commit(ctx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if _, err := conn.Fetch(ctx); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if err := conn.Execute(ctx, "SELECT id, title FROM songs ORDER BY id"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	rows, err = conn.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != int64(1) || rows[0][1] != "intro" {
		t.Errorf("Unexpected first row: %v", rows[0])
	}
	if rows[1][1] != "outro" {
		t.Errorf("Unexpected second row: %v", rows[1])
	}
}

func TestSQLConnUncommittedWriteIsRolledBack(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pool.db")
	c := &SQLConnector{DriverName: SQLite3}

	conn, err := c.Connect(ctx, path)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	if err := conn.Execute(ctx, "CREATE TABLE t (v INTEGER)"); err != nil {
		t.Fatal(err)
	}
	if err := conn.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	// Fetch without Commit ends the transaction.
	if err := conn.Execute(ctx, "INSERT INTO t (v) VALUES (7)"); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Fetch(ctx); err != nil {
		t.Fatal(err)
	}

	if err := conn.Execute(ctx, "SELECT COUNT(*) FROM t"); err != nil {
		t.Fatal(err)
	}
	rows, err := conn.Fetch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0][0] != int64(0) {
		t.Errorf("Expected uncommitted insert to be discarded, got %v", rows[0][0])
	}
}

func TestSQLConnExecuteError(t *testing.T) {
	ctx := context.Background()
	c := &SQLConnector{DriverName: SQLite3}

	conn, err := c.Connect(ctx, "")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	err = conn.Execute(ctx, "SELECT * FROM non_existent_table")
	if err == nil {
		t.Fatal("Expected error from invalid SQL, got nil")
	}
	if !strings.Contains(err.Error(), "no such table") {
		t.Errorf("Expected driver message, got %v", err)
	}
}

func TestSQLConnAutocommit(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pool.db")
	c := &SQLConnector{DriverName: SQLite3}

	conn, err := c.Connect(ctx, path)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	ac, ok := conn.(AutocommitConn)
	if !ok {
		t.Fatal("Expected sqlite session to support autocommit")
	}

	if err := conn.Execute(ctx, "VACUUM"); err == nil {
		t.Error("Expected VACUUM to fail inside a transaction")
	}
	if _, err := conn.Fetch(ctx); err != nil {
		t.Fatal(err)
	}

	if err := ac.ExecuteAutocommit(ctx, "CREATE TABLE t (v INTEGER)"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := ac.ExecuteAutocommit(ctx, "INSERT INTO t (v) VALUES (1)"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := conn.Fetch(ctx); err != nil {
		t.Fatal(err)
	}

	// An open transaction is discarded before the autocommit statement runs.
	if err := conn.Execute(ctx, "INSERT INTO t (v) VALUES (2)"); err != nil {
		t.Fatal(err)
	}
	if err := ac.ExecuteAutocommit(ctx, "VACUUM"); err != nil {
		t.Fatalf("VACUUM failed: %v", err)
	}
	if _, err := conn.Fetch(ctx); err != nil {
		t.Fatal(err)
	}

	if err := conn.Execute(ctx, "SELECT COUNT(*) FROM t"); err != nil {
		t.Fatal(err)
	}
	rows, err := conn.Fetch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0][0] != int64(1) {
		t.Errorf("Expected only the autocommitted insert, got %v", rows[0][0])
	}
}

func TestSQLConnWithoutDatabaseAutocommits(t *testing.T) {
	ctx := context.Background()
	c := &SQLConnector{DriverName: SQLite3}

	conn, err := c.Connect(ctx, "")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	if err := conn.Execute(ctx, "VACUUM"); err != nil {
		t.Fatalf("Expected VACUUM to run without a transaction, got %v", err)
	}
	rows, err := conn.Fetch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected no rows, got %v", rows)
	}
}

func TestSQLConnKeepsNoIdleSessions(t *testing.T) {
	ctx := context.Background()
	c := &SQLConnector{DriverName: SQLite3}

	conn, err := c.Connect(ctx, "")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	sc := conn.(*sqlConn)
	defer sc.db.Close()

	if err := sc.conn.Close(); err != nil {
		t.Fatal(err)
	}
	st := sc.db.Stats()
	if st.Idle != 0 || st.OpenConnections != 0 {
		t.Errorf("Expected the session to be closed on return, got %+v", st)
	}
	if st.MaxOpenConnections != 1 {
		t.Errorf("Expected one session per Conn, got %d", st.MaxOpenConnections)
	}
}
