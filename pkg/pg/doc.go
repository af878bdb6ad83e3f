// Package pg wires PostgreSQL through github.com/jackc/pgx/v5: pool creation
// with retries, goose migrations from an fs.FS, health checks and error
// classification helpers.
package pg
