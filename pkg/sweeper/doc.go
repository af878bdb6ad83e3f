// Package sweeper runs the periodic cycle reset over all stored users.
//
// Resets also happen lazily on every read, so the sweep only matters for
// users who are not active: it makes their counters, lapses and downgrade
// notices happen on schedule.
//
//	sw := sweeper.New(ledger, store, sweeper.WithConcurrency(16))
//	if err := sw.Start(ctx, sweeper.DefaultSchedule); err != nil { ... }
//	defer sw.Stop(shutdownCtx)
package sweeper
