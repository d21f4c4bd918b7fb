package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/shrek82/mysqlpool/config"
	"github.com/shrek82/mysqlpool/core"
	"github.com/shrek82/mysqlpool/driver"
	"github.com/shrek82/mysqlpool/driver/drivertest"
	"github.com/shrek82/mysqlpool/logger"
	"github.com/shrek82/mysqlpool/sink"
)

func TestPrintRows(t *testing.T) {
	buf := &bytes.Buffer{}
	printRows(buf, []driver.Row{{int64(1), "intro", nil}, {int64(2), "outro", 3.5}})

	want := "1\tintro\tNULL\n2\toutro\t3.5\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent("mu`sic"); got != "`mu``sic`" {
		t.Errorf("Unexpected quoting: %s", got)
	}
}

func TestQuotePostgres(t *testing.T) {
	if got := quotePgIdent(`mu"sic`); got != `"mu""sic"` {
		t.Errorf("Unexpected identifier quoting: %s", got)
	}
	if got := quoteLiteral("it's"); got != "'it''s'" {
		t.Errorf("Unexpected literal quoting: %s", got)
	}
}

func TestCreateDatabasePostgres(t *testing.T) {
	tests := []struct {
		name    string
		exists  bool
		creates bool
	}{
		{name: "missing database", exists: false, creates: true},
		{name: "existing database", exists: true, creates: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &drivertest.Connector{}
			if tt.exists {
				c.Rows = []driver.Row{{int64(1)}}
			}
			db, err := core.New(config.Config{Driver: driver.Postgres, User: "app", Database: "music"},
				core.WithConnector(c), core.WithSink(sink.Discard), core.WithLogger(logger.Discard()))
			if err != nil {
				t.Fatal(err)
			}
			defer db.Close()

			if err := db.Bootstrap(context.Background(), createDatabase("music")); err != nil {
				t.Fatalf("Bootstrap failed: %v", err)
			}

			var created []string
			for _, conn := range c.Conns() {
				if conn.Database != "" {
					t.Errorf("Expected connections without a database, got %q", conn.Database)
				}
				created = append(created, conn.Autocommitted()...)
			}
			if tt.creates && (len(created) != 1 || created[0] != `CREATE DATABASE "music"`) {
				t.Errorf("Expected CREATE DATABASE outside a transaction, got %v", created)
			}
			if !tt.creates && len(created) != 0 {
				t.Errorf("Expected no CREATE DATABASE, got %v", created)
			}
		})
	}
}

func TestRunSQLite(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pool.yaml")
	data := "driver: sqlite3\ndatabase: " + filepath.Join(dir, "music.db") + "\nlogging:\n  level: silent\n"
	if err := os.WriteFile(cfgPath, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	set := func(name, value string) {
		t.Helper()
		if err := pflag.Set(name, value); err != nil {
			t.Fatal(err)
		}
	}
	set("config", cfgPath)
	set("strict", "true")
	set("create-database", "true")

	set("execute", "CREATE TABLE songs (title TEXT)")
	set("commit", "true")
	if err := run(context.Background(), &bytes.Buffer{}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	set("execute", "INSERT INTO songs VALUES ('intro')")
	if err := run(context.Background(), &bytes.Buffer{}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	set("execute", "SELECT title FROM songs")
	set("commit", "false")
	set("repeat", "2")
	out := &bytes.Buffer{}
	if err := run(context.Background(), out); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if out.String() != "intro\nintro\n" {
		t.Errorf("Unexpected output %q", out.String())
	}

	set("execute", "SELECT * FROM missing")
	set("repeat", "1")
	if err := run(context.Background(), &bytes.Buffer{}); err == nil {
		t.Error("Expected strict mode to return the failure")
	}
}
