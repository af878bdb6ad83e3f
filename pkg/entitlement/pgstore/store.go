package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/pg"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// Migrations holds the goose migrations for this store.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations to pass to pg.Migrate.
const MigrationsDir = "migrations"

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements entitlement.Store and entitlement.Lister on PostgreSQL.
type Store struct {
	db       DB
	pageSize int
}

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets how many user ids ListUserIDs reads per query.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// New creates a store over db. The schema must already be migrated.
func New(db DB, opts ...Option) *Store {
	s := &Store{db: db, pageSize: 500}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, userID string) (*entitlement.Record, error) {
	rows, err := s.db.Query(ctx, getRecordSQL, userID)
	if err != nil {
		return nil, storeErr("get record", err)
	}
	defer rows.Close()

	var rec *entitlement.Record
	for rows.Next() {
		var (
			tier, status, ref   string
			deleted             bool
			cycleStart, updated time.Time
			cycleEnd, lastReset pgtype.Timestamptz
			feature             pgtype.Text
			count, limit        pgtype.Int8
		)
		if err := rows.Scan(&tier, &cycleStart, &cycleEnd, &status, &ref, &deleted, &updated,
			&feature, &count, &limit, &lastReset); err != nil {
			return nil, storeErr("scan record", err)
		}

		if rec == nil {
			ps, err := entitlement.ParsePaymentStatus(status)
			if err != nil {
				return nil, err
			}
			rec = &entitlement.Record{
				UserID:          userID,
				Tier:            tier,
				Usage:           make(map[tiers.Feature]entitlement.UsageCounter),
				CycleStart:      cycleStart.UTC(),
				PaymentStatus:   ps,
				SubscriptionRef: ref,
				Deleted:         deleted,
				UpdatedAt:       updated.UTC(),
			}
			if cycleEnd.Valid {
				end := cycleEnd.Time.UTC()
				rec.CycleEnd = &end
			}
		}
		if feature.Valid {
			rec.Usage[tiers.Feature(feature.String)] = entitlement.UsageCounter{
				Count:     count.Int64,
				Cap:       limit.Int64,
				LastReset: lastReset.Time.UTC(),
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read record", err)
	}
	if rec == nil {
		return nil, entitlement.ErrRecordNotFound
	}
	return rec, nil
}

func (s *Store) Create(ctx context.Context, rec *entitlement.Record) error {
	return s.inTx(ctx, "create record", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertRecordSQL, recordArgs(rec)...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return entitlement.ErrRecordExists
		}
		return insertUsage(ctx, tx, rec)
	})
}

func (s *Store) Replace(ctx context.Context, rec *entitlement.Record) error {
	return s.inTx(ctx, "replace record", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, upsertRecordSQL, recordArgs(rec)...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return entitlement.ErrAccountDeleted
		}
		if _, err := tx.Exec(ctx, deleteUsageSQL, rec.UserID); err != nil {
			return err
		}
		return insertUsage(ctx, tx, rec)
	})
}

func (s *Store) Increment(ctx context.Context, userID string, feature tiers.Feature, by int64) (entitlement.IncrementResult, error) {
	var res entitlement.IncrementResult
	err := s.db.QueryRow(ctx, incrementSQL, userID, string(feature), by).Scan(&res.Count, &res.Cap)
	if err == nil {
		res.Applied = true
		return res, nil
	}
	if !pg.IsNotFoundError(err) {
		return res, storeErr("increment", err)
	}

	// Nothing updated: the record, the counter or the headroom is missing.
	var count, limit pgtype.Int8
	err = s.db.QueryRow(ctx, counterSQL, userID, string(feature)).Scan(&count, &limit)
	switch {
	case pg.IsNotFoundError(err):
		return res, entitlement.ErrRecordNotFound
	case err != nil:
		return res, storeErr("read counter", err)
	}
	res.Count, res.Cap = count.Int64, limit.Int64
	return res, nil
}

func (s *Store) Decrement(ctx context.Context, userID string, feature tiers.Feature, by int64) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, decrementSQL, userID, string(feature), by).Scan(&n)
	if err == nil {
		return n, nil
	}
	if !pg.IsNotFoundError(err) {
		return 0, storeErr("decrement", err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, recordExistsSQL, userID).Scan(&exists); err != nil {
		return 0, storeErr("check record", err)
	}
	if !exists {
		return 0, entitlement.ErrRecordNotFound
	}
	return 0, nil
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	tag, err := s.db.Exec(ctx, deleteRecordSQL, userID)
	if err != nil {
		return storeErr("delete record", err)
	}
	if tag.RowsAffected() == 0 {
		return entitlement.ErrRecordNotFound
	}
	return nil
}

// ListUserIDs pages through live records in user id order.
func (s *Store) ListUserIDs(ctx context.Context, fn func(userID string) error) error {
	after := ""
	for {
		rows, err := s.db.Query(ctx, listLiveSQL, after, s.pageSize)
		if err != nil {
			return storeErr("list users", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return storeErr("list users", err)
		}

		for _, id := range ids {
			if err := fn(id); err != nil {
				return err
			}
		}
		if len(ids) < s.pageSize {
			return nil
		}
		after = ids[len(ids)-1]
	}
}

// inTx runs fn in a transaction. Domain errors returned by fn pass through
// unchanged; driver errors are classified by storeErr.
func (s *Store) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return storeErr(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		if errors.Is(err, entitlement.ErrRecordExists) || errors.Is(err, entitlement.ErrAccountDeleted) {
			return err
		}
		return storeErr(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(op, err)
	}
	return nil
}

func recordArgs(rec *entitlement.Record) []any {
	var end pgtype.Timestamptz
	if rec.CycleEnd != nil {
		end = pgtype.Timestamptz{Time: rec.CycleEnd.UTC(), Valid: true}
	}
	return []any{
		rec.UserID,
		rec.Tier,
		rec.CycleStart.UTC(),
		end,
		string(rec.PaymentStatus),
		rec.SubscriptionRef,
		rec.Deleted,
		rec.UpdatedAt.UTC(),
	}
}

// insertUsage writes every counter of rec in one statement. Features are
// sorted so the statement arguments are deterministic.
func insertUsage(ctx context.Context, tx pgx.Tx, rec *entitlement.Record) error {
	if len(rec.Usage) == 0 {
		return nil
	}

	features := make([]string, 0, len(rec.Usage))
	for f := range rec.Usage {
		features = append(features, string(f))
	}
	slices.Sort(features)

	counts := make([]int64, len(features))
	caps := make([]int64, len(features))
	resets := make([]time.Time, len(features))
	for i, f := range features {
		c := rec.Usage[tiers.Feature(f)]
		counts[i], caps[i], resets[i] = c.Count, c.Cap, c.LastReset.UTC()
	}

	_, err := tx.Exec(ctx, insertUsageSQL, rec.UserID, features, counts, caps, resets)
	return err
}

// storeErr marks connectivity failures as ErrStoreUnavailable and adds
// context to everything else.
func storeErr(op string, err error) error {
	if pg.IsUnavailableError(err) {
		return errors.Join(entitlement.ErrStoreUnavailable, fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
