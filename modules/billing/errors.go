package billing

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/quotakit/handler"
	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/payment"
)

var (
	errQuotaExceeded   = handler.HTTPError{Code: http.StatusPaymentRequired, Key: "quota_exceeded"}
	errUnknownFeature  = handler.HTTPError{Code: http.StatusNotFound, Key: "unknown_feature", Message: "Unknown feature"}
	errUnknownTier     = handler.HTTPError{Code: http.StatusBadRequest, Key: "unknown_tier", Message: "Unknown tier"}
	errAccountDeleted  = handler.HTTPError{Code: http.StatusGone, Key: "account_deleted", Message: "This account has been deleted"}
	errStoreDown       = handler.HTTPError{Code: http.StatusServiceUnavailable, Key: "store_unavailable", Message: "Service temporarily unavailable, please retry"}
	errBadSignature    = handler.HTTPError{Code: http.StatusForbidden, Key: "invalid_signature", Message: "Invalid signature"}
	errBadPayload      = handler.HTTPError{Code: http.StatusBadRequest, Key: "invalid_payload", Message: "Invalid payment payload"}
	errInFlight        = handler.HTTPError{Code: http.StatusConflict, Key: "event_in_flight", Message: "Event is being processed"}
	errBusy            = handler.HTTPError{Code: http.StatusConflict, Key: "busy", Message: "Another update for this account is in progress"}
	errNoSubscription  = handler.HTTPError{Code: http.StatusConflict, Key: "no_subscription", Message: "No paid subscription to cancel"}
	errAlreadyOnTier   = handler.HTTPError{Code: http.StatusConflict, Key: "already_on_tier", Message: "You are already on this plan"}
	errPaidTierNeeded  = handler.HTTPError{Code: http.StatusBadRequest, Key: "paid_tier_required", Message: "Choose a paid plan"}
	errNotPaid         = handler.HTTPError{Code: http.StatusPaymentRequired, Key: "payment_not_completed", Message: "Payment is not completed"}
	errProvider        = handler.HTTPError{Code: http.StatusBadGateway, Key: "provider_error", Message: "Payment provider error, please retry"}
	errPaymentsOff     = handler.HTTPError{Code: http.StatusServiceUnavailable, Key: "payments_unavailable", Message: "Payments are not available"}
	errMissingIdentity = handler.HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized", Message: "Sign in required"}
)

// MapError translates ledger and payment errors to HTTP errors.
func MapError(err error) (handler.HTTPError, bool) {
	var quota *entitlement.QuotaError
	if errors.As(err, &quota) {
		return errQuotaExceeded.WithMessage(quota.Error()), true
	}

	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.http, true
		}
	}
	return handler.HTTPError{}, false
}

// Checked in order; store failures come first because adapters join them
// with other causes.
var errorTable = []struct {
	err  error
	http handler.HTTPError
}{
	{entitlement.ErrStoreUnavailable, errStoreDown},
	{entitlement.ErrQuotaExceeded, errQuotaExceeded.WithMessage("Plan limit reached")},
	{entitlement.ErrUnknownFeature, errUnknownFeature},
	{entitlement.ErrUnknownTier, errUnknownTier},
	{entitlement.ErrAccountDeleted, errAccountDeleted},
	{entitlement.ErrMissingUserID, errMissingIdentity},
	{payment.ErrInvalidSignature, errBadSignature},
	{payment.ErrInvalidPayload, errBadPayload},
	{payment.ErrEventInFlight, errInFlight},
	{payment.ErrLockTimeout, errBusy},
	{payment.ErrNoSubscription, errNoSubscription},
	{payment.ErrAlreadyOnTier, errAlreadyOnTier},
	{payment.ErrPaidTierRequired, errPaidTierNeeded},
	{payment.ErrPaymentNotCompleted, errNotPaid},
	{payment.ErrProviderFailure, errProvider},
	{payment.ErrPaymentsNotAvailable, errPaymentsOff},
	{payment.ErrMissingCredentials, errPaymentsOff},
}

// NewErrorHandler is the JSON error handler for every billing route.
func NewErrorHandler(log *slog.Logger) handler.ErrorHandler[handler.Context] {
	return handler.NewErrorHandler(log, MapError)
}
