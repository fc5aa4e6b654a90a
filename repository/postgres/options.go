package postgres

import (
	"context"
	"database/sql"

	"github.com/w-h-a/triage/repository"
)

type dbKey struct{}

// WithDB makes the repository use an open handle instead of dialing
// Options.Location.
func WithDB(db *sql.DB) repository.Option {
	return func(o *repository.Options) {
		o.Context = context.WithValue(o.Context, dbKey{}, db)
	}
}

func DBFrom(ctx context.Context) (*sql.DB, bool) {
	db, ok := ctx.Value(dbKey{}).(*sql.DB)
	return db, ok && db != nil
}
