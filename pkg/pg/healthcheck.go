package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrMissingTable is returned by Healthcheck when a required table does
// not exist, usually because migrations have not run.
var ErrMissingTable = errors.New("required table is missing")

// Querier is the part of *pgxpool.Pool the health check uses.
type Querier interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Healthcheck pings the database and checks that every table in tables
// exists in the current search path.
func Healthcheck(db Querier, tables ...string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		for _, table := range tables {
			var exists bool
			if err := db.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", table).Scan(&exists); err != nil {
				return errors.Join(ErrHealthcheckFailed, err)
			}
			if !exists {
				return errors.Join(ErrHealthcheckFailed, fmt.Errorf("%w: %s", ErrMissingTable, table))
			}
		}
		return nil
	}
}
