package entitlement

import (
	"context"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// NoticeKind identifies a user facing notification.
type NoticeKind string

const (
	NoticeUpgrade        NoticeKind = "subscription_upgrade"
	NoticeDowngrade      NoticeKind = "subscription_downgrade"
	NoticePaymentSuccess NoticeKind = "payment_success"
	NoticePaymentFailed  NoticeKind = "payment_failed"
	NoticeLimitReached   NoticeKind = "limit_reached"
)

// Notice is emitted on tier transitions, renewals, payment failures and
// when a capped feature is used up.
type Notice struct {
	Kind     NoticeKind
	UserID   string
	FromTier string
	ToTier   string
	Feature  tiers.Feature
	Reason   string
	At       time.Time
}

// Notifier delivers notices. Delivery is best effort: the ledger logs a
// returned error and moves on.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice) error

func (f NotifierFunc) Notify(ctx context.Context, n Notice) error {
	return f(ctx, n)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notice) error { return nil }

// Observer receives ledger events for metrics.
type Observer interface {
	ConsumeDecided(feature tiers.Feature, tier string, allowed bool)
	CycleReset(tier string)
	TierChanged(from, to string)
}

type nopObserver struct{}

func (nopObserver) ConsumeDecided(tiers.Feature, string, bool) {}
func (nopObserver) CycleReset(string)                          {}
func (nopObserver) TierChanged(string, string)                 {}
