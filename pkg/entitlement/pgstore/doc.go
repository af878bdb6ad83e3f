// Package pgstore persists entitlement records in PostgreSQL.
//
// A record is a row in entitlements plus one row per feature in
// entitlement_usage. The conditional increment is a single UPDATE whose
// WHERE clause carries the cap check, so row locking serialises concurrent
// consumers and a CHECK constraint backs the same invariant in the schema.
//
// The schema ships with the package; apply it with pg.Migrate:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//	store := pgstore.New(pool)
package pgstore
