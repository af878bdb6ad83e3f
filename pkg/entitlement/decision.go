package entitlement

import (
	"fmt"

	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// DenyReason explains a denied consumption.
type DenyReason string

const ReasonQuotaExceeded DenyReason = "quota_exceeded"

// Decision is the result of TryConsume.
type Decision struct {
	Allowed   bool          `json:"allowed"`
	Feature   tiers.Feature `json:"feature"`
	Tier      string        `json:"tier"`
	TierLabel string        `json:"-"`
	Count     int64         `json:"count"`
	Cap       int64         `json:"cap"`
	Reason    DenyReason    `json:"reason,omitempty"`
}

// Remaining returns units left after this decision, or tiers.Unlimited.
func (d Decision) Remaining() int64 {
	return UsageCounter{Count: d.Count, Cap: d.Cap}.Remaining()
}

// Err converts a denial into a *QuotaError; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &QuotaError{Feature: d.Feature, Tier: d.Tier, TierLabel: d.TierLabel, Cap: d.Cap}
}

// QuotaError carries the user facing message for an exhausted feature.
// It matches ErrQuotaExceeded with errors.Is.
type QuotaError struct {
	Feature   tiers.Feature
	Tier      string
	TierLabel string
	Cap       int64
}

func (e *QuotaError) Error() string {
	label := e.TierLabel
	if label == "" {
		label = e.Tier
	}
	return fmt.Sprintf(
		"You have reached your %s plan limit of %d %s for this billing cycle. Upgrade to continue.",
		label, e.Cap, e.Feature.DisplayName(),
	)
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}
