package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/logger"
)

// DefaultSchedule runs at midnight UTC on the first of every month.
const DefaultSchedule = "0 0 1 * *"

// Ledger is the ledger operation the sweep drives.
type Ledger interface {
	CheckAndReset(ctx context.Context, userID string) (*entitlement.Record, error)
}

// Observer receives sweep totals.
type Observer interface {
	SweepFinished(checked, failed int, seconds float64)
}

// Report summarises one sweep.
type Report struct {
	Checked  int
	Failed   int
	Skipped  int // tombstoned between listing and checking
	Duration time.Duration
}

// Sweeper walks every stored user through CheckAndReset so cycles roll over
// and lapsed subscriptions downgrade without waiting for user traffic.
type Sweeper struct {
	ledger      Ledger
	lister      entitlement.Lister
	concurrency int
	userTimeout time.Duration
	observer    Observer
	log         *slog.Logger
	now         func() time.Time

	cron *cron.Cron
}

type Option func(*Sweeper)

// WithConcurrency bounds parallel CheckAndReset calls. Default 8.
func WithConcurrency(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithUserTimeout bounds a single user's check. Default 10s.
func WithUserTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.userTimeout = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Sweeper) { s.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.log = l }
}

// New panics on a nil ledger or lister.
func New(ledger Ledger, lister entitlement.Lister, opts ...Option) *Sweeper {
	if ledger == nil || lister == nil {
		panic("sweeper: ledger and lister are required")
	}
	s := &Sweeper{
		ledger:      ledger,
		lister:      lister,
		concurrency: 8,
		userTimeout: 10 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDiscard(s.log).With(logger.Component("sweeper"))
	return s
}

// Run performs one sweep. Per-user failures are logged and counted; only
// a listing failure or ctx cancellation fails the sweep.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	start := s.now()
	var checked, failed, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	listErr := s.lister.ListUserIDs(gctx, func(userID string) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		g.Go(func() error {
			uctx, cancel := context.WithTimeout(gctx, s.userTimeout)
			defer cancel()

			checked.Add(1)
			_, err := s.ledger.CheckAndReset(uctx, userID)
			switch {
			case err == nil:
			case errors.Is(err, entitlement.ErrAccountDeleted):
				skipped.Add(1)
			default:
				failed.Add(1)
				s.log.LogAttrs(uctx, slog.LevelWarn, "sweep check failed",
					logger.UserID(userID), logger.Error(err))
			}
			return nil
		})
		return nil
	})
	waitErr := g.Wait()

	rep := Report{
		Checked:  int(checked.Load()),
		Failed:   int(failed.Load()),
		Skipped:  int(skipped.Load()),
		Duration: s.now().Sub(start),
	}
	if s.observer != nil {
		s.observer.SweepFinished(rep.Checked, rep.Failed, rep.Duration.Seconds())
	}

	if err := errors.Join(listErr, waitErr); err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "sweep aborted",
			slog.Int("checked", rep.Checked), logger.Error(err))
		return rep, fmt.Errorf("sweep: %w", err)
	}
	s.log.LogAttrs(ctx, slog.LevelInfo, "sweep finished",
		slog.Int("checked", rep.Checked),
		slog.Int("failed", rep.Failed),
		slog.Int("skipped", rep.Skipped),
		logger.Duration(rep.Duration),
	)
	return rep, nil
}

// Start schedules Run on a standard five field cron spec, evaluated in UTC.
// A sweep still running when the next one is due is skipped.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(schedule, func() { _, _ = s.Run(ctx) }); err != nil {
		return fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()
	s.log.LogAttrs(ctx, slog.LevelInfo, "sweep scheduled", slog.String("schedule", schedule))
	return nil
}

// Stop stops the schedule and waits for a running sweep, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
