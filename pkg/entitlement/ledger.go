package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// Ledger meters feature usage per user, resets usage at cycle boundaries and
// moves users between tiers. It holds no per-user state of its own; every
// operation works against the Store.
type Ledger struct {
	store    Store
	catalog  *tiers.Catalog
	log      *slog.Logger
	notifier Notifier
	observer Observer
	clock    func() time.Time
}

// New creates a Ledger. Panics on nil store or catalog: both are wiring
// errors that must stop startup.
func New(store Store, catalog *tiers.Catalog, opts ...Option) *Ledger {
	if store == nil {
		panic("entitlement: store is required")
	}
	if catalog == nil {
		panic("entitlement: catalog is required")
	}

	l := &Ledger{
		store:    store,
		catalog:  catalog,
		log:      logger.Discard(),
		notifier: nopNotifier{},
		observer: nopObserver{},
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With(logger.Component("entitlement"))
	return l
}

// Catalog exposes the tier catalog the ledger was built with.
func (l *Ledger) Catalog() *tiers.Catalog {
	return l.catalog
}

// now is truncated to milliseconds so records round-trip through every
// backend without precision loss.
func (l *Ledger) now() time.Time {
	return l.clock().UTC().Truncate(time.Millisecond)
}

// CheckAndReset loads the user's record, creating it on first access, and
// resets every counter when the billing cycle has rolled over. A paid record
// whose cycle end passed without renewal is moved to the default tier first.
// Calling it twice within a cycle leaves the record unchanged.
func (l *Ledger) CheckAndReset(ctx context.Context, userID string) (*Record, error) {
	rec, err := l.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	tier, repaired := l.repair(ctx, rec, now)

	if tier.Paid() && rec.CycleEnd != nil && now.After(*rec.CycleEnd) {
		return l.lapse(ctx, rec, now)
	}

	if now.After(addMonths(rec.CycleStart, tier.BillingCycleMonths)) {
		rec.Usage = freshUsage(tier, now)
		rec.CycleStart = now
		rec.UpdatedAt = now
		if err := l.store.Replace(ctx, rec); err != nil {
			return nil, fmt.Errorf("reset usage: %w", err)
		}
		l.observer.CycleReset(tier.Name)
		l.log.LogAttrs(ctx, slog.LevelInfo, "usage cycle reset",
			logger.UserID(userID), logger.Tier(tier.Name))
		return rec, nil
	}

	if repaired {
		rec.UpdatedAt = now
		if err := l.store.Replace(ctx, rec); err != nil {
			return nil, fmt.Errorf("repair record: %w", err)
		}
	}
	return rec, nil
}

// TryConsume meters one unit of feature. A denial is an expected outcome and
// is reported through Decision, not through the error; errors are reserved
// for unknown features, deleted accounts and store failures.
//
// The store call is a single conditional increment. There is no retry: a
// caller that sees an error may retry the whole operation without risk of
// double counting.
func (l *Ledger) TryConsume(ctx context.Context, userID string, feature tiers.Feature) (Decision, error) {
	if !feature.Valid() {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}

	rec, err := l.CheckAndReset(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	counter := rec.Counter(feature)
	d := Decision{
		Feature:   feature,
		Tier:      rec.Tier,
		TierLabel: l.tierLabel(rec.Tier),
		Count:     counter.Count,
		Cap:       counter.Cap,
	}

	if counter.Exhausted() {
		d.Reason = ReasonQuotaExceeded
		l.observer.ConsumeDecided(feature, rec.Tier, false)
		return d, nil
	}

	res, err := l.store.Increment(ctx, userID, feature, 1)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			// Purged between the read and the increment; a retry recreates it.
			return Decision{}, errors.Join(ErrStoreUnavailable, err)
		}
		return Decision{}, fmt.Errorf("consume %s: %w", feature, err)
	}

	d.Count, d.Cap = res.Count, res.Cap
	if !res.Applied {
		d.Reason = ReasonQuotaExceeded
		l.observer.ConsumeDecided(feature, rec.Tier, false)
		return d, nil
	}

	d.Allowed = true
	l.observer.ConsumeDecided(feature, rec.Tier, true)

	if res.Cap != tiers.Unlimited && res.Count == res.Cap {
		l.notify(ctx, Notice{
			Kind:     NoticeLimitReached,
			UserID:   userID,
			FromTier: rec.Tier,
			ToTier:   rec.Tier,
			Feature:  feature,
			At:       l.now(),
		})
	}
	return d, nil
}

// DecrementUsage refunds one unit, e.g. when a tracked application is
// removed. The count never drops below zero. Callers treat a returned error
// as non-fatal: it must not block the deletion it compensates for.
func (l *Ledger) DecrementUsage(ctx context.Context, userID string, feature tiers.Feature) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if !feature.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}

	if _, err := l.store.Decrement(ctx, userID, feature, 1); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil
		}
		l.log.LogAttrs(ctx, slog.LevelWarn, "usage refund failed",
			logger.UserID(userID), logger.Feature(string(feature)), logger.Error(err))
		return fmt.Errorf("refund %s: %w", feature, err)
	}
	return nil
}

// Notify forwards a notice to the configured notifier. Failures are logged
// and swallowed.
func (l *Ledger) Notify(ctx context.Context, n Notice) {
	if n.At.IsZero() {
		n.At = l.now()
	}
	l.notify(ctx, n)
}

// getOrCreate returns the stored record or creates the default one. A lost
// create race falls back to reading the winner's record.
func (l *Ledger) getOrCreate(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	rec, err := l.store.Get(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, ErrRecordNotFound):
		fresh := newRecord(userID, l.catalog.Default(), l.now())
		err = l.store.Create(ctx, fresh)
		switch {
		case err == nil:
			l.log.LogAttrs(ctx, slog.LevelDebug, "entitlement record created",
				logger.UserID(userID), logger.Tier(fresh.Tier))
			return fresh, nil
		case errors.Is(err, ErrRecordExists):
			if rec, err = l.store.Get(ctx, userID); err != nil {
				return nil, fmt.Errorf("load entitlement record: %w", err)
			}
		default:
			return nil, fmt.Errorf("create entitlement record: %w", err)
		}
	default:
		return nil, fmt.Errorf("load entitlement record: %w", err)
	}

	if rec.Deleted {
		return nil, ErrAccountDeleted
	}
	return rec, nil
}

// repair fixes records written against an older catalog: a tier that no
// longer exists falls back to the default tier with fresh counters, and
// features added since get a zero counter with the tier's cap. Counters of
// unknown features are dropped. It reports whether rec changed.
func (l *Ledger) repair(ctx context.Context, rec *Record, now time.Time) (tiers.Tier, bool) {
	tier, err := l.catalog.Get(rec.Tier)
	if err != nil {
		l.log.LogAttrs(ctx, slog.LevelWarn, "record references unknown tier, resetting to default",
			logger.UserID(rec.UserID), logger.Tier(rec.Tier))
		tier = l.catalog.Default()
		rec.Tier = tier.Name
		rec.Usage = freshUsage(tier, now)
		rec.CycleStart = now
		rec.CycleEnd = nil
		return tier, true
	}

	changed := false
	if rec.Usage == nil {
		rec.Usage = make(map[tiers.Feature]UsageCounter)
	}
	for _, f := range tiers.Features() {
		if _, ok := rec.Usage[f]; !ok {
			rec.Usage[f] = UsageCounter{Cap: tier.Cap(f), LastReset: now}
			changed = true
		}
	}
	for f := range rec.Usage {
		if !f.Valid() {
			delete(rec.Usage, f)
			changed = true
		}
	}
	if rec.CycleStart.After(now) {
		rec.CycleStart = now
		changed = true
	}
	return tier, changed
}

// lapse moves a paid record whose cycle ended without renewal to the
// default tier with an expired status.
func (l *Ledger) lapse(ctx context.Context, rec *Record, now time.Time) (*Record, error) {
	from := rec.Tier
	next := l.transitioned(ctx, rec, l.catalog.Default(), rec.SubscriptionRef, now)
	if err := l.store.Replace(ctx, next); err != nil {
		return nil, fmt.Errorf("expire subscription: %w", err)
	}

	l.observer.TierChanged(from, next.Tier)
	l.log.LogAttrs(ctx, slog.LevelInfo, "subscription lapsed",
		logger.UserID(rec.UserID), logger.Transition(from, next.Tier))
	l.notify(ctx, Notice{
		Kind:     NoticeDowngrade,
		UserID:   rec.UserID,
		FromTier: from,
		ToTier:   next.Tier,
		Reason:   "subscription period ended without renewal",
		At:       now,
	})
	return next, nil
}

func (l *Ledger) notify(ctx context.Context, n Notice) {
	if err := l.notifier.Notify(ctx, n); err != nil {
		l.log.LogAttrs(ctx, slog.LevelWarn, "notification failed",
			logger.UserID(n.UserID), logger.Event(string(n.Kind)), logger.Error(err))
	}
}

func (l *Ledger) tierLabel(name string) string {
	if t, err := l.catalog.Get(name); err == nil {
		return t.DisplayName()
	}
	return name
}
