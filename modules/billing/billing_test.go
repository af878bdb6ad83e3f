package billing_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/modules/billing"
	"github.com/dmitrymomot/quotakit/pkg/auth"
	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/payment"
	"github.com/dmitrymomot/quotakit/pkg/ratelimit"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

const (
	keySecret     = "key_secret"
	webhookSecret = "whsec_test"
)

type fakeRazorpay struct {
	mu        sync.Mutex
	cancelled []string
}

func (f *fakeRazorpay) CreatePaymentLink(data map[string]any) (map[string]any, error) {
	return map[string]any{"id": "plink_1", "short_url": "https://rzp.io/i/abc", "reference_id": data["reference_id"]}, nil
}

func (f *fakeRazorpay) CancelSubscription(id string, _ map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return map[string]any{"id": id}, nil
}

type env struct {
	server *httptest.Server
	ledger *entitlement.Ledger
}

func newEnv(t *testing.T) *env {
	t.Helper()

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ledger := entitlement.New(entitlement.NewMemoryStore(), tiers.Default(), entitlement.WithClock(clock))

	cfg := payment.Config{
		KeyID:         "rzp_test",
		KeySecret:     keySecret,
		WebhookSecret: webhookSecret,
		BaseURL:       "https://app.example.com",
		ProductName:   "PraxJobs",
		EventInFlight: time.Minute,
		EventRetain:   time.Hour,
	}
	provider, err := payment.NewRazorpay(cfg, payment.WithRazorpayAPI(&fakeRazorpay{}))
	require.NoError(t, err)
	payments := payment.NewService(ledger, provider, cfg, payment.WithClock(clock))

	errHandler := billing.NewErrorHandler(nil)
	router := billing.Router(billing.RouterOptions{
		Authenticate: auth.Middleware(auth.InsecureDevVerifier{}, nil),
		Entitlements: billing.NewEntitlementService(ledger, nil),
		Payments:     billing.NewPaymentService(payments, ledger, errHandler),
		Webhooks:     billing.NewWebhookService(payments, errHandler),
		Admin:        billing.NewAdminService(ledger, []string{"admin"}, nil),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &env{server: srv, ledger: ledger}
}

type apiError struct {
	Error struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

func (e *env) do(t *testing.T, method, path, uid, body string, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set("Authorization", "Bearer dev:"+uid)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

type summaryBody struct {
	Data entitlement.Summary `json:"data"`
}

func TestEntitlementRoutes(t *testing.T) {
	t.Parallel()

	t.Run("requires a bearer token", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		resp, raw := e.do(t, http.MethodGet, "/entitlements", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "missing_token", decode[apiError](t, raw).Error.Code)
	})

	t.Run("summary of a new user", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		resp, raw := e.do(t, http.MethodGet, "/entitlements", "u1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

		sum := decode[summaryBody](t, raw).Data
		assert.Equal(t, "u1", sum.UserID)
		assert.Equal(t, "free", sum.Tier)
		assert.Len(t, sum.Features, len(tiers.Features()))
		for _, f := range sum.Features {
			assert.Equal(t, int64(5), f.Cap)
			assert.Equal(t, int64(5), f.Remaining)
		}
	})

	t.Run("consume until exhausted", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		for i := 1; i <= 5; i++ {
			resp, raw := e.do(t, http.MethodPost, "/features/jobAnalysis/consume", "u1", "")
			require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
			body := decode[struct{ Data billing.ConsumeResponse }](t, raw)
			assert.True(t, body.Data.Allowed)
			assert.Equal(t, int64(i), body.Data.Count)
			assert.Equal(t, int64(5-i), body.Data.Remaining)
		}

		resp, raw := e.do(t, http.MethodPost, "/features/jobAnalysis/consume", "u1", "")
		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
		apiErr := decode[apiError](t, raw)
		assert.Equal(t, "quota_exceeded", apiErr.Error.Code)
		assert.Contains(t, apiErr.Error.Message, "plan limit of 5 job analysis requests")

		resp, _ = e.do(t, http.MethodPost, "/features/resumeGeneration/consume", "u1", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, "other features keep their own quota")
	})

	t.Run("unknown feature", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		resp, raw := e.do(t, http.MethodPost, "/features/teleport/consume", "u1", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "unknown_feature", decode[apiError](t, raw).Error.Code)
	})

	t.Run("release gives a unit back", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		e.do(t, http.MethodPost, "/features/interviewPrep/consume", "u1", "")
		e.do(t, http.MethodPost, "/features/interviewPrep/consume", "u1", "")

		resp, _ := e.do(t, http.MethodPost, "/features/interviewPrep/release", "u1", "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		rec, err := e.ledger.CheckAndReset(t.Context(), "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Counter(tiers.InterviewPrep).Count)
	})

	t.Run("deleted account is gone", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		resp, _ := e.do(t, http.MethodDelete, "/account", "u1", "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, raw := e.do(t, http.MethodGet, "/entitlements", "u1", "")
		assert.Equal(t, http.StatusGone, resp.StatusCode)
		assert.Equal(t, "account_deleted", decode[apiError](t, raw).Error.Code)

		resp, _ = e.do(t, http.MethodPost, "/features/jobAnalysis/consume", "u1", "")
		assert.Equal(t, http.StatusGone, resp.StatusCode)
	})
}

// confirmBody creates a pro payment link for uid and returns the signed
// callback body for it.
func confirmBody(t *testing.T, e *env, uid, status string) string {
	t.Helper()
	resp, raw := e.do(t, http.MethodPost, "/payment-links", uid, `{"tier":"pro"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	link := decode[struct{ Data payment.PaymentLink }](t, raw).Data

	cb := payment.LinkCallback{
		PaymentID:   "pay_123",
		LinkID:      "plink_1",
		ReferenceID: link.ReferenceID,
		Status:      status,
		Tier:        "pro",
	}
	cb.Signature = payment.Sign(keySecret, cb.LinkID, cb.ReferenceID, cb.Status, cb.PaymentID)
	raw, err := json.Marshal(cb)
	require.NoError(t, err)
	return string(raw)
}

func TestPaymentRoutes(t *testing.T) {
	t.Parallel()

	t.Run("create link", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		resp, raw := e.do(t, http.MethodPost, "/payment-links", "u1", `{"tier":"pro"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
		link := decode[struct{ Data payment.PaymentLink }](t, raw).Data
		assert.Equal(t, "https://rzp.io/i/abc", link.ShortURL)
		assert.True(t, strings.HasPrefix(link.ReferenceID, "pro_sub_"), link.ReferenceID)
	})

	t.Run("create link validation", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		tests := []struct {
			body   string
			status int
			code   string
		}{
			{`{}`, http.StatusUnprocessableEntity, "validation_error"},
			{`{"tier":"free"}`, http.StatusBadRequest, "paid_tier_required"},
			{`{"tier":"gold"}`, http.StatusBadRequest, "unknown_tier"},
			{`{"tier":"pro","coupon":"x"}`, http.StatusBadRequest, "bad_request"},
		}
		for _, tt := range tests {
			resp, raw := e.do(t, http.MethodPost, "/payment-links", "u1", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, tt.body)
			assert.Equal(t, tt.code, decode[apiError](t, raw).Error.Code, tt.body)
		}
	})

	t.Run("confirm upgrades and cancel downgrades", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)

		resp, raw := e.do(t, http.MethodPost, "/payment-links/confirm", "u1", confirmBody(t, e, "u1", "paid"))
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		assert.Equal(t, "pro", decode[summaryBody](t, raw).Data.Tier)

		resp, raw = e.do(t, http.MethodPost, "/payment-links", "u1", `{"tier":"pro"}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "already_on_tier", decode[apiError](t, raw).Error.Code)

		resp, raw = e.do(t, http.MethodPost, "/subscription/cancel", "u1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		assert.Equal(t, "free", decode[summaryBody](t, raw).Data.Tier)

		resp, raw = e.do(t, http.MethodPost, "/subscription/cancel", "u1", "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "no_subscription", decode[apiError](t, raw).Error.Code)
	})

	t.Run("confirm rejects", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)

		forged := strings.Replace(confirmBody(t, e, "u1", "paid"), `"razorpay_signature":"`, `"razorpay_signature":"00`, 1)
		resp, raw := e.do(t, http.MethodPost, "/payment-links/confirm", "u1", forged)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "invalid_signature", decode[apiError](t, raw).Error.Code)

		resp, raw = e.do(t, http.MethodPost, "/payment-links/confirm", "u1", confirmBody(t, e, "u1", "created"))
		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
		assert.Equal(t, "payment_not_completed", decode[apiError](t, raw).Error.Code)

		resp, raw = e.do(t, http.MethodPost, "/payment-links/confirm", "u1", `{"razorpay_payment_id":"pay_1"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		details := decode[apiError](t, raw).Error.Details
		assert.Contains(t, details, "razorpay_payment_link_id")
		assert.Contains(t, details, "razorpay_signature")
	})

	t.Run("confirm rejects another user's link", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)

		body := confirmBody(t, e, "u1", "paid")
		resp, raw := e.do(t, http.MethodPost, "/payment-links/confirm", "u2", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_payload", decode[apiError](t, raw).Error.Code)

		resp, raw = e.do(t, http.MethodGet, "/entitlements", "u2", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		assert.Equal(t, "free", decode[summaryBody](t, raw).Data.Tier)
	})
}

func signedWebhook(t *testing.T, event, uid, tier string) (string, string) {
	t.Helper()
	notes := map[string]string{"tier": tier}
	if uid != "" {
		notes["userId"] = uid
	}
	raw, err := json.Marshal(map[string]any{
		"entity": "event",
		"event":  event,
		"payload": map[string]any{
			"subscription": map[string]any{
				"entity": map[string]any{"id": "sub_1", "status": "active", "notes": notes},
			},
		},
	})
	require.NoError(t, err)
	return string(raw), payment.SignBody(webhookSecret, raw)
}

func TestWebhookRoute(t *testing.T) {
	t.Parallel()

	t.Run("applies once and acknowledges replays", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		body, sig := signedWebhook(t, "subscription.activated", "u1", "pro")

		resp, raw := e.do(t, http.MethodPost, "/webhooks/razorpay", "", body,
			billing.SignatureHeader, sig, billing.EventIDHeader, "evt_1")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		res := decode[struct{ Data payment.Result }](t, raw).Data
		assert.Equal(t, payment.OutcomeProcessed, res.Outcome)
		assert.Equal(t, "evt_1", res.EventID)

		resp, raw = e.do(t, http.MethodPost, "/webhooks/razorpay", "", body,
			billing.SignatureHeader, sig, billing.EventIDHeader, "evt_1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, payment.OutcomeDuplicate, decode[struct{ Data payment.Result }](t, raw).Data.Outcome)

		rec, err := e.ledger.CheckAndReset(t.Context(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "pro", rec.Tier)
		assert.Equal(t, "sub_1", rec.SubscriptionRef)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		body, _ := signedWebhook(t, "subscription.activated", "u1", "pro")
		resp, raw := e.do(t, http.MethodPost, "/webhooks/razorpay", "", body, billing.SignatureHeader, "deadbeef")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "invalid_signature", decode[apiError](t, raw).Error.Code)

		resp, _ = e.do(t, http.MethodPost, "/webhooks/razorpay", "", body)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("missing user id", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		body, sig := signedWebhook(t, "subscription.activated", "", "pro")
		resp, raw := e.do(t, http.MethodPost, "/webhooks/razorpay", "", body, billing.SignatureHeader, sig)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_payload", decode[apiError](t, raw).Error.Code)
	})

	t.Run("ignored events are acknowledged", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		body, sig := signedWebhook(t, "order.paid", "u1", "pro")
		resp, raw := e.do(t, http.MethodPost, "/webhooks/razorpay", "", body, billing.SignatureHeader, sig)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, payment.OutcomeIgnored, decode[struct{ Data payment.Result }](t, raw).Data.Outcome)
	})
}

func TestRouter_ThrottlesPaymentRoutes(t *testing.T) {
	t.Parallel()

	ledger := entitlement.New(entitlement.NewMemoryStore(), tiers.Default())
	limiter, err := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), 1, time.Minute)
	require.NoError(t, err)

	errHandler := billing.NewErrorHandler(nil)
	srv := httptest.NewServer(billing.Router(billing.RouterOptions{
		Authenticate: auth.Middleware(auth.InsecureDevVerifier{}, nil),
		Throttle:     ratelimit.Middleware(limiter, ratelimit.ByUser),
		Entitlements: billing.NewEntitlementService(ledger, nil),
		Payments:     billing.NewPaymentService(payment.Unavailable{}, ledger, errHandler),
	}))
	t.Cleanup(srv.Close)
	e := &env{server: srv, ledger: ledger}

	resp, raw := e.do(t, http.MethodPost, "/payment-links", "u1", `{"tier":"pro"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "payments_unavailable", decode[apiError](t, raw).Error.Code)

	resp, raw = e.do(t, http.MethodPost, "/payment-links", "u1", `{"tier":"pro"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", decode[apiError](t, raw).Error.Code)

	resp, _ = e.do(t, http.MethodPost, "/payment-links", "u2", `{"tier":"pro"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "limits are per user")

	resp, _ = e.do(t, http.MethodGet, "/entitlements", "u1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "entitlement routes are not throttled")
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()

	t.Run("reset usage", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		for range 2 {
			resp, _ := e.do(t, http.MethodPost, "/features/jobAnalysis/consume", "u1", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}

		resp, raw := e.do(t, http.MethodPost, "/admin/users/u1/usage/reset", "admin", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		sum := decode[summaryBody](t, raw).Data
		assert.Equal(t, "u1", sum.UserID)
		for _, f := range sum.Features {
			assert.Zero(t, f.Used, f.Feature)
		}
	})

	t.Run("purge lets a deleted user start over", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		resp, _ := e.do(t, http.MethodDelete, "/account", "u1", "")
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, raw := e.do(t, http.MethodDelete, "/admin/users/u1", "admin", "")
		require.Equal(t, http.StatusNoContent, resp.StatusCode, string(raw))

		resp, raw = e.do(t, http.MethodGet, "/entitlements", "u1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
		assert.Equal(t, "free", decode[summaryBody](t, raw).Data.Tier)
	})

	t.Run("rejects non admins", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)

		resp, raw := e.do(t, http.MethodPost, "/admin/users/u2/usage/reset", "u1", "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "forbidden", decode[apiError](t, raw).Error.Code)

		resp, _ = e.do(t, http.MethodDelete, "/admin/users/u2", "u1", "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, raw = e.do(t, http.MethodDelete, "/admin/users/u2", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "missing_token", decode[apiError](t, raw).Error.Code)
	})
}
