package entitlement

import (
	"maps"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// UsageCounter tracks consumption of one feature in the current cycle.
// Cap is copied from the tier when the counter is reset and is never read
// live from the catalog afterwards.
type UsageCounter struct {
	Count     int64     `json:"count"`
	Cap       int64     `json:"cap"`
	LastReset time.Time `json:"lastReset"`
}

// Unlimited reports whether the counter has no quota.
func (c UsageCounter) Unlimited() bool {
	return c.Cap == tiers.Unlimited
}

// Exhausted reports whether another unit would exceed the cap.
func (c UsageCounter) Exhausted() bool {
	return !c.Unlimited() && c.Count >= c.Cap
}

// Remaining returns the units left in the cycle, or tiers.Unlimited.
func (c UsageCounter) Remaining() int64 {
	if c.Unlimited() {
		return tiers.Unlimited
	}
	return max(c.Cap-c.Count, 0)
}

// Record is the per-user entitlement state. It is owned by the Ledger;
// stores only persist it.
type Record struct {
	UserID          string                         `json:"userId"`
	Tier            string                         `json:"currentTier"`
	Usage           map[tiers.Feature]UsageCounter `json:"usage"`
	CycleStart      time.Time                      `json:"cycleStart"`
	CycleEnd        *time.Time                     `json:"cycleEnd,omitempty"`
	PaymentStatus   PaymentStatus                  `json:"paymentStatus"`
	SubscriptionRef string                         `json:"providerSubscriptionRef,omitempty"`
	Deleted         bool                           `json:"deleted,omitempty"`
	UpdatedAt       time.Time                      `json:"updatedAt"`
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Usage = maps.Clone(r.Usage)
	if r.CycleEnd != nil {
		end := *r.CycleEnd
		c.CycleEnd = &end
	}
	return &c
}

// Counter returns the counter for f; the zero counter (cap 0) if absent.
func (r *Record) Counter(f tiers.Feature) UsageCounter {
	return r.Usage[f]
}

// freshUsage builds a zeroed counter for every feature with caps from t.
func freshUsage(t tiers.Tier, now time.Time) map[tiers.Feature]UsageCounter {
	usage := make(map[tiers.Feature]UsageCounter, len(tiers.Features()))
	for _, f := range tiers.Features() {
		usage[f] = UsageCounter{Count: 0, Cap: t.Cap(f), LastReset: now}
	}
	return usage
}

// newRecord is the record created on first access.
func newRecord(userID string, t tiers.Tier, now time.Time) *Record {
	return &Record{
		UserID:        userID,
		Tier:          t.Name,
		Usage:         freshUsage(t, now),
		CycleStart:    now,
		PaymentStatus: StatusPending,
		UpdatedAt:     now,
	}
}

// tombstone replaces a deleted account's record. Zero caps make any late
// conditional increment fail even if a caller skips the Deleted check.
func tombstone(userID, tier string, now time.Time) *Record {
	usage := make(map[tiers.Feature]UsageCounter, len(tiers.Features()))
	for _, f := range tiers.Features() {
		usage[f] = UsageCounter{LastReset: now}
	}
	return &Record{
		UserID:        userID,
		Tier:          tier,
		Usage:         usage,
		CycleStart:    now,
		PaymentStatus: StatusExpired,
		Deleted:       true,
		UpdatedAt:     now,
	}
}

func addMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, months, 0)
}
