package core

import "context"

// SchemaHook prepares the database at startup, typically with
// "CREATE ... IF NOT EXISTS" statements issued through Execute. It must be
// safe to run on every start.
//
// A hook that needs to create the database itself runs that statement with
// DatabaseRequired(false):
//
//	rows, _ := db.Execute(ctx, "SHOW DATABASES LIKE 'music'", false, DatabaseRequired(false))
//	if len(rows) == 0 {
//		_, err := db.Execute(ctx, "CREATE DATABASE music", false,
//			DatabaseRequired(false), IgnoreErrors(false))
//		...
//	}
//	_, err := db.Execute(ctx, "CREATE TABLE IF NOT EXISTS songs (...)", true, IgnoreErrors(false))
type SchemaHook interface {
	EnsureSchema(ctx context.Context, db *DB) error
}

// SchemaFunc adapts a function to SchemaHook.
type SchemaFunc func(ctx context.Context, db *DB) error

func (f SchemaFunc) EnsureSchema(ctx context.Context, db *DB) error {
	return f(ctx, db)
}

// NoopSchema leaves the database untouched.
var NoopSchema SchemaHook = SchemaFunc(func(context.Context, *DB) error { return nil })

// Bootstrap runs hook once. A nil hook is NoopSchema.
func (db *DB) Bootstrap(ctx context.Context, hook SchemaHook) error {
	if hook == nil {
		hook = NoopSchema
	}
	return hook.EnsureSchema(ctx, db)
}
