package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/shrek82/mysqlpool/config"
	"github.com/shrek82/mysqlpool/core"
	"github.com/shrek82/mysqlpool/driver"
	"github.com/shrek82/mysqlpool/middleware"
)

var (
	configPath = pflag.StringP("config", "c", "", "YAML config file (MYSQLPOOL_* variables override it)")
	statement  = pflag.StringP("execute", "e", "", "statement to execute")
	commit     = pflag.Bool("commit", false, "commit after the statement")
	noDatabase = pflag.Bool("no-database", false, "run without selecting the configured database (e.g. CREATE DATABASE)")
	strict     = pflag.Bool("strict", false, "exit with an error instead of ignoring execution failures")
	createDB   = pflag.Bool("create-database", false, "create the configured database if it does not exist")
	repeat     = pflag.Int("repeat", 1, "run the statement this many times (reuses pooled connections)")
	autocommit = pflag.Bool("autocommit", false, "run the statement outside a transaction (e.g. VACUUM)")
)

func main() {
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "mysqlpool:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var opts []core.Option
	if cfg.SlowLog.Threshold > 0 {
		opts = append(opts, core.WithMiddleware(middleware.NewSlowLog(cfg.SlowLog.Threshold, cfg.SlowLog.Path)))
	}

	db, err := core.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer db.Close()

	if *createDB {
		if err := db.Bootstrap(ctx, createDatabase(cfg.Database)); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}

	if *statement == "" {
		return nil
	}

	execOpts := []core.ExecOption{
		core.IgnoreErrors(!*strict),
		core.DatabaseRequired(!*noDatabase),
		core.Autocommit(*autocommit),
	}
	for i := 0; i < max(*repeat, 1); i++ {
		rows, err := db.Execute(ctx, *statement, *commit, execOpts...)
		if err != nil {
			return err
		}
		printRows(out, rows)
	}

	st := db.Stats()
	db.Logger().Info("created=%d destroyed=%d idle=%d failures=%d", st.Created, st.Destroyed, st.Idle, st.ConnectFailures)
	return nil
}

func loadConfig() (config.Config, error) {
	if *configPath != "" {
		return config.Load(*configPath)
	}
	cfg := config.Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// createDatabase creates the configured database from a connection with no
// database selected. SQLite creates its file on first connect.
func createDatabase(name string) core.SchemaHook {
	return core.SchemaFunc(func(ctx context.Context, db *core.DB) error {
		strict := []core.ExecOption{core.DatabaseRequired(false), core.IgnoreErrors(false)}

		switch db.Config().Driver {
		case driver.MySQL:
			_, err := db.Execute(ctx, "CREATE DATABASE IF NOT EXISTS "+quoteIdent(name), false, strict...)
			return err
		case driver.Postgres:
			// No IF NOT EXISTS, and it cannot run inside a transaction.
			rows, err := db.Execute(ctx, "SELECT 1 FROM pg_database WHERE datname = "+quoteLiteral(name), false, strict...)
			if err != nil || len(rows) > 0 {
				return err
			}
			_, err = db.Execute(ctx, "CREATE DATABASE "+quotePgIdent(name), false,
				append(strict, core.Autocommit(true))...)
			return err
		default:
			db.Logger().Info("%s creates databases on connect, nothing to do", db.Config().Driver)
			return nil
		}
	})
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quotePgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func printRows(w io.Writer, rows []driver.Row) {
	for _, row := range rows {
		cols := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cols[i] = "NULL"
				continue
			}
			cols[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
}
