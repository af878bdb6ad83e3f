package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/payment"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "whsec_test"
)

func testConfig() payment.Config {
	return payment.Config{
		KeyID:         "rzp_test_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		BaseURL:       "https://app.example.com/",
		ProductName:   "PraxJobs",
		LinkExpiry:    24 * time.Hour,
		EventInFlight: time.Minute,
		EventRetain:   time.Hour,
		LockTTL:       time.Second,
	}
}

// fakeAPI records SDK calls.
type fakeAPI struct {
	mu        sync.Mutex
	links     []map[string]any
	cancelled []string
	linkErr   error
	cancelErr error
}

func (f *fakeAPI) CreatePaymentLink(data map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	f.links = append(f.links, data)
	return map[string]any{"id": "plink_123", "short_url": "https://rzp.io/i/abc"}, nil
}

func (f *fakeAPI) CancelSubscription(id string, _ map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return map[string]any{"id": id, "status": "cancelled"}, nil
}

func (f *fakeAPI) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type recorder struct {
	mu       sync.Mutex
	notices  []entitlement.Notice
	outcomes []string
}

func (r *recorder) Notify(_ context.Context, n entitlement.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

func (r *recorder) WebhookHandled(_, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recorder) Kinds() []entitlement.NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entitlement.NoticeKind, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.Kind)
	}
	return out
}

func (r *recorder) Outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

type fixture struct {
	api     *fakeAPI
	store   *entitlement.MemoryStore
	ledger  *entitlement.Ledger
	rec     *recorder
	service *payment.Service
}

func newFixture(opts ...payment.Option) *fixture {
	f := &fixture{
		api:   &fakeAPI{},
		store: entitlement.NewMemoryStore(),
		rec:   &recorder{},
	}
	c := newClock()
	f.ledger = entitlement.New(f.store, tiers.Default(),
		entitlement.WithClock(c.Now),
		entitlement.WithNotifier(f.rec),
	)
	provider, err := payment.NewRazorpay(testConfig(), payment.WithRazorpayAPI(f.api))
	if err != nil {
		panic(err)
	}
	opts = append([]payment.Option{payment.WithObserver(f.rec), payment.WithClock(c.Now)}, opts...)
	f.service = payment.NewService(f.ledger, provider, testConfig(), opts...)
	return f
}

// webhook builds a signed Razorpay webhook body.
func webhook(event, userID, tier, subscriptionID string, currentEnd int64) ([]byte, string) {
	noteMap := map[string]string{}
	if userID != "" {
		noteMap["userId"] = userID
	}
	if tier != "" {
		noteMap["tier"] = tier
	}
	body := map[string]any{
		"entity": "event",
		"event":  event,
		"payload": map[string]any{
			"subscription": map[string]any{
				"entity": map[string]any{
					"id":          subscriptionID,
					"status":      "active",
					"current_end": currentEnd,
					"notes":       noteMap,
				},
			},
			"payment": map[string]any{
				"entity": map[string]any{
					"id":                "pay_1",
					"error_description": "card declined",
					"notes":             []any{},
				},
			},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return raw, payment.SignBody(testWebhookSecret, raw)
}

// failingEventLog fails every call.
type failingEventLog struct{}

var errEventStore = errors.New("event store down")

func (failingEventLog) Begin(context.Context, string) error    { return errEventStore }
func (failingEventLog) Complete(context.Context, string) error { return errEventStore }
func (failingEventLog) Release(context.Context, string) error  { return errEventStore }
