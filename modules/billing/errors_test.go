package billing_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/quotakit/modules/billing"
	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/payment"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		key    string
	}{
		{"quota", &entitlement.QuotaError{Feature: tiers.JobAnalysis, Tier: "free", Cap: 5}, http.StatusPaymentRequired, "quota_exceeded"},
		{"unknown feature", fmt.Errorf("%w: x", tiers.ErrUnknownFeature), http.StatusNotFound, "unknown_feature"},
		{"unknown tier", tiers.ErrUnknownTier, http.StatusBadRequest, "unknown_tier"},
		{"deleted", entitlement.ErrAccountDeleted, http.StatusGone, "account_deleted"},
		{"store down joined", errors.Join(entitlement.ErrStoreUnavailable, payment.ErrLockTimeout), http.StatusServiceUnavailable, "store_unavailable"},
		{"signature", payment.ErrInvalidSignature, http.StatusForbidden, "invalid_signature"},
		{"payload", payment.ErrInvalidPayload, http.StatusBadRequest, "invalid_payload"},
		{"in flight", payment.ErrEventInFlight, http.StatusConflict, "event_in_flight"},
		{"provider", errors.Join(payment.ErrProviderFailure, errors.New("502")), http.StatusBadGateway, "provider_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, ok := billing.MapError(tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.status, h.Code)
			assert.Equal(t, tt.key, h.Key)
		})
	}

	t.Run("quota message is user facing", func(t *testing.T) {
		t.Parallel()
		h, _ := billing.MapError(&entitlement.QuotaError{Feature: tiers.JobAnalysis, Tier: "free", TierLabel: "Free", Cap: 5})
		assert.Equal(t, "You have reached your Free plan limit of 5 job analysis requests for this billing cycle. Upgrade to continue.", h.Message)
	})

	t.Run("unknown errors fall through", func(t *testing.T) {
		t.Parallel()
		_, ok := billing.MapError(errors.New("boom"))
		assert.False(t, ok)
	})
}
