package entitlement

import "fmt"

// PaymentStatus is the billing state of a record.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusActive  PaymentStatus = "active"
	StatusExpired PaymentStatus = "expired"
)

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusExpired:
		return true
	}
	return false
}

func (s PaymentStatus) String() string {
	return string(s)
}

// ParsePaymentStatus converts a persisted value back into a status.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	ps := PaymentStatus(s)
	if !ps.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return ps, nil
}

// transitions lists allowed status changes. Staying in the same state is
// always allowed; nothing ever moves back to pending.
var transitions = map[PaymentStatus][]PaymentStatus{
	StatusPending: {StatusActive},
	StatusActive:  {StatusExpired},
	StatusExpired: {StatusActive},
}

// CanTransition reports whether a record may move from one status to another.
func CanTransition(from, to PaymentStatus) bool {
	if from == to {
		return from.Valid()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
