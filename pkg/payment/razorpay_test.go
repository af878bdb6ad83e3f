package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/payment"
)

func newProvider(t *testing.T) (*payment.Razorpay, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	p, err := payment.NewRazorpay(testConfig(), payment.WithRazorpayAPI(api))
	require.NoError(t, err)
	return p, api
}

func TestNewRazorpay(t *testing.T) {
	t.Parallel()

	_, err := payment.NewRazorpay(payment.Config{KeyID: "id"})
	assert.ErrorIs(t, err, payment.ErrMissingCredentials)

	p, err := payment.NewRazorpay(testConfig())
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestRazorpay_ParseWebhook(t *testing.T) {
	t.Parallel()

	t.Run("subscription charged", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t)
		end := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
		body, sig := webhook("subscription.charged", "u1", "pro", "sub_1", end.Unix())

		ev, err := p.ParseWebhook(body, sig)
		require.NoError(t, err)
		assert.Equal(t, payment.EventCharged, ev.Type)
		assert.Equal(t, "subscription.charged", ev.RawType)
		assert.Equal(t, "u1", ev.UserID)
		assert.Equal(t, "pro", ev.Tier)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
		assert.Equal(t, "sub_1", ev.Ref())
		assert.Equal(t, "pay_1", ev.PaymentID)
		assert.True(t, end.Equal(ev.PeriodEnd))
	})

	t.Run("unknown event is ignored", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t)
		body, sig := webhook("invoice.paid", "u1", "pro", "sub_1", 0)

		ev, err := p.ParseWebhook(body, sig)
		require.NoError(t, err)
		assert.Equal(t, payment.EventIgnored, ev.Type)
	})

	t.Run("halted maps to cancelled", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t)
		body, sig := webhook("subscription.halted", "u1", "pro", "sub_1", 0)

		ev, err := p.ParseWebhook(body, sig)
		require.NoError(t, err)
		assert.Equal(t, payment.EventCancelled, ev.Type)
		assert.True(t, ev.PeriodEnd.IsZero())
	})

	t.Run("notes fall back to the payment link", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t)
		body := []byte(`{"event":"payment_link.paid","payload":{` +
			`"payment":{"entity":{"id":"pay_9","notes":[]}},` +
			`"payment_link":{"entity":{"id":"plink_9","reference_id":"pro_sub_x","status":"paid","notes":{"userId":"u9","tier":"pro"}}}}}`)

		ev, err := p.ParseWebhook(body, payment.SignBody(testWebhookSecret, body))
		require.NoError(t, err)
		assert.Equal(t, payment.EventLinkPaid, ev.Type)
		assert.Equal(t, "u9", ev.UserID)
		assert.Equal(t, "pro", ev.Tier)
		assert.Equal(t, "plink_9", ev.Ref())
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t)
		body, _ := webhook("subscription.charged", "u1", "pro", "sub_1", 0)

		_, err := p.ParseWebhook(body, payment.SignBody("other", body))
		assert.ErrorIs(t, err, payment.ErrInvalidSignature)

		_, err = p.ParseWebhook(body, "")
		assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	})

	t.Run("tampered body", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t)
		body, sig := webhook("subscription.charged", "u1", "pro", "sub_1", 0)
		body[len(body)-2] = ' '

		_, err := p.ParseWebhook(body, sig)
		assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t)
		body := []byte(`{"event":`)

		_, err := p.ParseWebhook(body, payment.SignBody(testWebhookSecret, body))
		assert.ErrorIs(t, err, payment.ErrInvalidPayload)
	})

	t.Run("missing event name", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t)
		body := []byte(`{"payload":{}}`)

		_, err := p.ParseWebhook(body, payment.SignBody(testWebhookSecret, body))
		assert.ErrorIs(t, err, payment.ErrInvalidPayload)
	})
}

func TestRazorpay_VerifyPaymentLink(t *testing.T) {
	t.Parallel()

	p, _ := newProvider(t)
	cb := payment.LinkCallback{
		PaymentID:   "pay_1",
		LinkID:      "plink_1",
		ReferenceID: "pro_sub_abc_123456",
		Status:      "paid",
	}
	cb.Signature = payment.Sign(testKeySecret, cb.LinkID, cb.ReferenceID, cb.Status, cb.PaymentID)
	assert.NoError(t, p.VerifyPaymentLink(cb))

	paymentFirst := cb
	paymentFirst.Signature = payment.Sign(testKeySecret, cb.PaymentID, cb.LinkID, cb.ReferenceID, cb.Status)
	assert.ErrorIs(t, p.VerifyPaymentLink(paymentFirst), payment.ErrInvalidSignature)

	cb.Status = "cancelled"
	assert.ErrorIs(t, p.VerifyPaymentLink(cb), payment.ErrInvalidSignature)
}

func TestRazorpay_CreatePaymentLink(t *testing.T) {
	t.Parallel()

	p, api := newProvider(t)
	expire := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	link, err := p.CreatePaymentLink(context.Background(), payment.LinkRequest{
		UserID:      "u1",
		Tier:        "pro",
		Amount:      59900,
		Currency:    "INR",
		Description: "PraxJobs Pro Subscription",
		ReferenceID: "ref_1",
		CallbackURL: "https://app.example.com/pricing",
		ExpireBy:    expire,
	})
	require.NoError(t, err)
	assert.Equal(t, "plink_123", link.ID)
	assert.Equal(t, "https://rzp.io/i/abc", link.ShortURL)
	assert.Equal(t, "ref_1", link.ReferenceID)

	require.Len(t, api.links, 1)
	sent := api.links[0]
	assert.Equal(t, int64(59900), sent["amount"])
	assert.Equal(t, "INR", sent["currency"])
	assert.Equal(t, expire.Unix(), sent["expire_by"])
	assert.Equal(t, map[string]any{"userId": "u1", "tier": "pro"}, sent["notes"])
	assert.Equal(t, "get", sent["callback_method"])
}

func TestRazorpay_ProviderErrors(t *testing.T) {
	t.Parallel()

	p, api := newProvider(t)
	api.linkErr = errors.New("boom")
	api.cancelErr = errors.New("boom")

	_, err := p.CreatePaymentLink(context.Background(), payment.LinkRequest{ExpireBy: time.Now()})
	assert.ErrorIs(t, err, payment.ErrProviderFailure)

	err = p.CancelSubscription(context.Background(), "sub_1")
	assert.ErrorIs(t, err, payment.ErrProviderFailure)
}

func TestEventIDFromBody(t *testing.T) {
	t.Parallel()

	a := payment.EventIDFromBody([]byte("one"))
	assert.Equal(t, a, payment.EventIDFromBody([]byte("one")))
	assert.NotEqual(t, a, payment.EventIDFromBody([]byte("two")))
	assert.Contains(t, a, "sha256:")
}
