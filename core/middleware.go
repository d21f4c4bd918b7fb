package core

import (
	"context"

	"github.com/shrek82/mysqlpool/driver"
)

// Component is the base interface for DB add-ons.
type Component interface {
	Name() string
	Init(db *DB) error
	Shutdown() error
}

// Statement describes one Execute call.
type Statement struct {
	SQL              string
	CommitRequired   bool
	IgnoreErrors     bool
	DatabaseRequired bool
	Autocommit       bool
}

// ExecFunc is the next step in the middleware chain.
type ExecFunc func(ctx context.Context, st *Statement) ([]driver.Row, error)

// Middleware wraps the acquire-run-release cycle of every statement. The
// IgnoreErrors policy is applied to whatever the chain returns.
type Middleware interface {
	Component
	Process(ctx context.Context, st *Statement, next ExecFunc) ([]driver.Row, error)
}

func chain(mws []Middleware, final ExecFunc) ExecFunc {
	next := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], next
		next = func(ctx context.Context, st *Statement) ([]driver.Row, error) {
			return mw.Process(ctx, st, inner)
		}
	}
	return next
}
