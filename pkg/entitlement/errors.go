package entitlement

import (
	"errors"

	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

var (
	// Aliases so callers can match either package's sentinel.
	ErrUnknownTier    = tiers.ErrUnknownTier
	ErrUnknownFeature = tiers.ErrUnknownFeature

	ErrQuotaExceeded    = errors.New("feature quota exceeded")
	ErrRecordNotFound   = errors.New("entitlement record not found")
	ErrRecordExists     = errors.New("entitlement record already exists")
	ErrStoreUnavailable = errors.New("entitlement store unavailable")
	ErrAccountDeleted   = errors.New("account has been deleted")
	ErrMissingUserID    = errors.New("user id is required")
	ErrInvalidStatus    = errors.New("invalid payment status")
	ErrNotRenewable     = errors.New("tier cannot be renewed")
)
