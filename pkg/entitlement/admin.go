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

// FeatureUsage is one line of a usage summary.
type FeatureUsage struct {
	Feature     tiers.Feature `json:"feature"`
	DisplayName string        `json:"displayName"`
	Used        int64         `json:"used"`
	Cap         int64         `json:"cap"`
	Remaining   int64         `json:"remaining"`
	Unlimited   bool          `json:"unlimited"`
}

// Summary describes a user's tier and usage for display.
type Summary struct {
	UserID        string         `json:"userId"`
	Tier          string         `json:"tier"`
	TierLabel     string         `json:"tierLabel"`
	Price         string         `json:"price"`
	PaymentStatus PaymentStatus  `json:"paymentStatus"`
	CycleStart    time.Time      `json:"cycleStart"`
	CycleEnd      *time.Time     `json:"cycleEnd,omitempty"`
	NextReset     time.Time      `json:"nextReset"`
	Features      []FeatureUsage `json:"features"`
}

// Summary returns the current tier status and per-feature usage. It goes
// through CheckAndReset, so an expired cycle is reported as reset.
func (l *Ledger) Summary(ctx context.Context, userID string) (*Summary, error) {
	rec, err := l.CheckAndReset(ctx, userID)
	if err != nil {
		return nil, err
	}

	tier, err := l.catalog.Get(rec.Tier)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		UserID:        rec.UserID,
		Tier:          tier.Name,
		TierLabel:     tier.DisplayName(),
		Price:         tier.DisplayPrice(),
		PaymentStatus: rec.PaymentStatus,
		CycleStart:    rec.CycleStart,
		CycleEnd:      rec.CycleEnd,
		NextReset:     addMonths(rec.CycleStart, tier.BillingCycleMonths),
		Features:      make([]FeatureUsage, 0, len(rec.Usage)),
	}
	for _, f := range tiers.Features() {
		c := rec.Counter(f)
		s.Features = append(s.Features, FeatureUsage{
			Feature:     f,
			DisplayName: f.DisplayName(),
			Used:        c.Count,
			Cap:         c.Cap,
			Remaining:   c.Remaining(),
			Unlimited:   c.Unlimited(),
		})
	}
	return s, nil
}

// ResetUsage zeroes every counter with caps from the current tier without
// touching the cycle bounds. Used by support staff.
func (l *Ledger) ResetUsage(ctx context.Context, userID string) (*Record, error) {
	rec, err := l.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	tier, _ := l.repair(ctx, rec, now)
	rec.Usage = freshUsage(tier, now)
	rec.UpdatedAt = now
	if err := l.store.Replace(ctx, rec); err != nil {
		return nil, fmt.Errorf("reset usage: %w", err)
	}

	l.observer.CycleReset(tier.Name)
	l.log.LogAttrs(ctx, slog.LevelInfo, "usage reset manually",
		logger.UserID(userID), logger.Tier(tier.Name))
	return rec, nil
}

// DeleteAccount replaces the record with a tombstone. Later checks fail with
// ErrAccountDeleted instead of recreating the record, and stores refuse to
// overwrite the tombstone with a live record.
func (l *Ledger) DeleteAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}

	tier := l.catalog.DefaultName()
	if rec, err := l.store.Get(ctx, userID); err == nil {
		if rec.Deleted {
			return nil
		}
		tier = rec.Tier
	} else if !errors.Is(err, ErrRecordNotFound) {
		return fmt.Errorf("delete account: %w", err)
	}

	if err := l.store.Replace(ctx, tombstone(userID, tier, l.now())); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	l.log.LogAttrs(ctx, slog.LevelInfo, "account tombstoned", logger.UserID(userID))
	return nil
}

// Purge removes the record entirely, tombstone included. The next access
// starts over with a fresh default record.
func (l *Ledger) Purge(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if err := l.store.Delete(ctx, userID); err != nil && !errors.Is(err, ErrRecordNotFound) {
		return fmt.Errorf("purge record: %w", err)
	}
	return nil
}
