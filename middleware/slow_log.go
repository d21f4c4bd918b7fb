package middleware

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/shrek82/mysqlpool/core"
	"github.com/shrek82/mysqlpool/driver"
)

const slowLogPrefix = "[SLOW SQL] "

// SlowLogMiddleware records Execute calls slower than Threshold, time spent
// waiting for a pooled connection included. Entries go to the file at Path,
// or to standard output when Path is empty.
type SlowLogMiddleware struct {
	Threshold time.Duration
	Path      string

	out  *log.Logger
	file *os.File
}

func NewSlowLog(threshold time.Duration, path string) *SlowLogMiddleware {
	return &SlowLogMiddleware{Threshold: threshold, Path: path}
}

// SetOutput redirects entries to w. Init then leaves Path unopened.
func (m *SlowLogMiddleware) SetOutput(w io.Writer) {
	m.out = log.New(w, slowLogPrefix, log.LstdFlags)
}

func (m *SlowLogMiddleware) Name() string {
	return "SlowLog"
}

func (m *SlowLogMiddleware) Init(db *core.DB) error {
	if m.out != nil {
		return nil
	}
	w, err := m.open()
	if err != nil {
		return err
	}
	m.out = log.New(w, slowLogPrefix, log.LstdFlags)
	if m.Path != "" {
		db.Logger().Info("slow statements over %v logged to %s", m.Threshold, m.Path)
	}
	return nil
}

func (m *SlowLogMiddleware) open() (io.Writer, error) {
	if m.Path == "" {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(m.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("slow log %s: %w", m.Path, err)
	}
	m.file = f
	return f, nil
}

func (m *SlowLogMiddleware) Shutdown() error {
	if m.file == nil {
		return nil
	}
	f := m.file
	m.file = nil
	return f.Close()
}

func (m *SlowLogMiddleware) Process(ctx context.Context, st *core.Statement, next core.ExecFunc) ([]driver.Row, error) {
	start := time.Now()
	rows, err := next(ctx, st)

	if took := time.Since(start); took > m.Threshold {
		m.out.Printf("duration=%v | sql=%s | commit=%t | autocommit=%t | rows=%d | err=%v",
			took, st.SQL, st.CommitRequired, st.Autocommit, len(rows), err)
	}
	return rows, err
}
