package payment

import "errors"

var (
	ErrInvalidSignature     = errors.New("invalid payment signature")
	ErrInvalidPayload       = errors.New("invalid payment payload")
	ErrEventInFlight        = errors.New("payment event is being processed")
	ErrDuplicateEvent       = errors.New("payment event already processed")
	ErrNoSubscription       = errors.New("user has no paid subscription")
	ErrAlreadyOnTier        = errors.New("user is already on the requested tier")
	ErrPaidTierRequired     = errors.New("payment requires a paid tier")
	ErrPaymentNotCompleted  = errors.New("payment is not completed")
	ErrProviderFailure      = errors.New("payment provider request failed")
	ErrMissingCredentials   = errors.New("payment provider credentials are not configured")
	ErrLockTimeout          = errors.New("timed out waiting for user lock")
	ErrPaymentsNotAvailable = errors.New("payments are not configured")
)
