package entitlement

import (
	"context"

	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// IncrementResult is the outcome of a conditional increment.
type IncrementResult struct {
	Applied bool  // false when the increment would have exceeded the cap
	Count   int64 // count after the operation (unchanged when not applied)
	Cap     int64 // cap stored on the counter
}

// Store persists one Record per user. Implementations must make Increment
// and Decrement single atomic operations against the backing store.
//
// Error contract:
//   - Get, Increment, Decrement and Delete return ErrRecordNotFound for unknown users.
//   - Create returns ErrRecordExists when a record is already present (first writer wins).
//   - Replace upserts, but returns ErrAccountDeleted instead of overwriting a
//     tombstone with a live record.
//   - Transient backend failures are joined with ErrStoreUnavailable.
type Store interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Create(ctx context.Context, rec *Record) error

	// Increment adds by to the feature counter only if the counter is
	// unlimited or count+by <= cap. A missing counter behaves as cap 0.
	Increment(ctx context.Context, userID string, feature tiers.Feature, by int64) (IncrementResult, error)

	// Decrement subtracts by from the counter, flooring at zero, and
	// returns the new count. A missing counter is left alone and reports 0.
	Decrement(ctx context.Context, userID string, feature tiers.Feature, by int64) (int64, error)

	Replace(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, userID string) error
}

// Lister is implemented by stores that can enumerate live (non-deleted)
// records. The cycle reset sweep needs it.
type Lister interface {
	ListUserIDs(ctx context.Context, fn func(userID string) error) error
}
