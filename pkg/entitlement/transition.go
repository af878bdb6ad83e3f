package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// TransitionTier moves the user to tierName with fresh counters and a new
// cycle starting now. Paid tiers become active with a cycle end one billing
// period out; the default (free) tier becomes expired with no cycle end.
// The write is an unconditional overwrite, so callers serialise transitions
// per user. An unknown tier fails before anything is read or written.
func (l *Ledger) TransitionTier(ctx context.Context, userID, tierName, subscriptionRef string) (*Record, error) {
	tier, err := l.catalog.Get(tierName)
	if err != nil {
		return nil, err
	}

	current, err := l.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	next := l.transitioned(ctx, current, tier, subscriptionRef, now)
	if err := l.store.Replace(ctx, next); err != nil {
		return nil, fmt.Errorf("transition tier: %w", err)
	}

	l.observer.TierChanged(current.Tier, next.Tier)
	l.log.LogAttrs(ctx, slog.LevelInfo, "tier transition",
		logger.UserID(userID),
		logger.Transition(current.Tier, next.Tier),
		slog.String("payment_status", string(next.PaymentStatus)),
	)

	kind := NoticeUpgrade
	if l.catalog.Compare(next.Tier, current.Tier) < 0 || !tier.Paid() {
		kind = NoticeDowngrade
	}
	l.notify(ctx, Notice{
		Kind:     kind,
		UserID:   userID,
		FromTier: current.Tier,
		ToTier:   next.Tier,
		At:       now,
	})
	return next, nil
}

// RenewCycle records a successful renewal charge for a paid tier. The cycle
// end moves to periodEnd (as reported by the provider) or, when zero, to at
// least one billing period from now. Usage is not reset and the cycle end
// never moves backwards.
//
// A renewal for a record that is not already active on tierName is treated
// as the first payment and delegated to TransitionTier, so a charge that
// arrives before its activation event still grants the tier. The bool
// reports whether the record changed.
func (l *Ledger) RenewCycle(ctx context.Context, userID, tierName, subscriptionRef string, periodEnd time.Time) (*Record, bool, error) {
	tier, err := l.catalog.Get(tierName)
	if err != nil {
		return nil, false, err
	}
	if !tier.Paid() {
		return nil, false, fmt.Errorf("%w: %q is not a paid tier", ErrNotRenewable, tierName)
	}

	rec, err := l.getOrCreate(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if rec.Tier != tier.Name || rec.PaymentStatus != StatusActive {
		rec, err := l.TransitionTier(ctx, userID, tierName, subscriptionRef)
		if err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}

	now := l.now()
	end := periodEnd.UTC().Truncate(time.Millisecond)
	if periodEnd.IsZero() {
		end = addMonths(now, tier.BillingCycleMonths)
	}
	if rec.CycleEnd != nil && !end.After(*rec.CycleEnd) {
		return rec, false, nil
	}

	rec.CycleEnd = &end
	if subscriptionRef != "" {
		rec.SubscriptionRef = subscriptionRef
	}
	rec.UpdatedAt = now
	if err := l.store.Replace(ctx, rec); err != nil {
		return nil, false, fmt.Errorf("renew cycle: %w", err)
	}

	l.log.LogAttrs(ctx, slog.LevelInfo, "subscription renewed",
		logger.UserID(userID), logger.Tier(tier.Name), slog.Time("cycle_end", end))
	l.notify(ctx, Notice{
		Kind:     NoticePaymentSuccess,
		UserID:   userID,
		FromTier: tier.Name,
		ToTier:   tier.Name,
		At:       now,
	})
	return rec, true, nil
}

// transitioned builds the record that replaces current after moving to tier.
// The payment status only changes along valid transitions; an invalid one
// keeps the current status so an out-of-order event cannot regress it.
func (l *Ledger) transitioned(ctx context.Context, current *Record, tier tiers.Tier, ref string, now time.Time) *Record {
	target := StatusExpired
	if tier.Paid() {
		target = StatusActive
	}

	status := current.PaymentStatus
	if CanTransition(status, target) {
		status = target
	} else {
		l.log.LogAttrs(ctx, slog.LevelWarn, "payment status transition not allowed, keeping current",
			logger.UserID(current.UserID),
			slog.String("from", string(current.PaymentStatus)),
			slog.String("to", string(target)),
		)
	}

	next := &Record{
		UserID:          current.UserID,
		Tier:            tier.Name,
		Usage:           freshUsage(tier, now),
		CycleStart:      now,
		PaymentStatus:   status,
		SubscriptionRef: ref,
		UpdatedAt:       now,
	}
	if tier.Paid() {
		end := addMonths(now, tier.BillingCycleMonths)
		next.CycleEnd = &end
	}
	return next
}
