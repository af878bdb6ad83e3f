package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
)

// RazorpayAPI is the part of the Razorpay SDK the provider calls.
type RazorpayAPI interface {
	CreatePaymentLink(data map[string]any) (map[string]any, error)
	CancelSubscription(subscriptionID string, data map[string]any) (map[string]any, error)
}

type sdkClient struct {
	client *razorpay.Client
}

func (s sdkClient) CreatePaymentLink(data map[string]any) (map[string]any, error) {
	return s.client.PaymentLink.Create(data, nil)
}

func (s sdkClient) CancelSubscription(subscriptionID string, data map[string]any) (map[string]any, error) {
	return s.client.Subscription.Cancel(subscriptionID, data, nil)
}

// Razorpay implements Provider.
type Razorpay struct {
	api           RazorpayAPI
	keySecret     string
	webhookSecret string
}

// RazorpayOption configures the provider.
type RazorpayOption func(*Razorpay)

// WithRazorpayAPI replaces the SDK client, e.g. with a fake in tests.
func WithRazorpayAPI(api RazorpayAPI) RazorpayOption {
	return func(r *Razorpay) {
		if api != nil {
			r.api = api
		}
	}
}

// NewRazorpay builds the provider from cfg.
func NewRazorpay(cfg Config, opts ...RazorpayOption) (*Razorpay, error) {
	if !cfg.Enabled() {
		return nil, ErrMissingCredentials
	}
	r := &Razorpay{
		api:           sdkClient{client: razorpay.NewClient(cfg.KeyID, cfg.KeySecret)},
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Razorpay) CreatePaymentLink(_ context.Context, req LinkRequest) (*PaymentLink, error) {
	data := map[string]any{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"accept_partial":  false,
		"description":     req.Description,
		"reference_id":    req.ReferenceID,
		"expire_by":       req.ExpireBy.Unix(),
		"reminder_enable": false,
		"notify":          map[string]any{"sms": false, "email": false},
		"notes": map[string]any{
			"userId": req.UserID,
			"tier":   req.Tier,
		},
		"callback_url":    req.CallbackURL,
		"callback_method": "get",
	}

	resp, err := r.api.CreatePaymentLink(data)
	if err != nil {
		return nil, errors.Join(ErrProviderFailure, fmt.Errorf("create payment link: %w", err))
	}

	id, _ := resp["id"].(string)
	url, _ := resp["short_url"].(string)
	if url == "" {
		return nil, fmt.Errorf("%w: payment link response has no short_url", ErrProviderFailure)
	}
	return &PaymentLink{ID: id, ShortURL: url, ReferenceID: req.ReferenceID}, nil
}

func (r *Razorpay) CancelSubscription(_ context.Context, subscriptionID string) error {
	if _, err := r.api.CancelSubscription(subscriptionID, map[string]any{"cancel_at_cycle_end": 0}); err != nil {
		return errors.Join(ErrProviderFailure, fmt.Errorf("cancel subscription %s: %w", subscriptionID, err))
	}
	return nil
}

// VerifyPaymentLink checks
// HMAC(keySecret, link_id|reference_id|status|payment_id), the order
// Razorpay signs payment-link redirects with.
func (r *Razorpay) VerifyPaymentLink(cb LinkCallback) error {
	expected := Sign(r.keySecret, cb.LinkID, cb.ReferenceID, cb.Status, cb.PaymentID)
	if !verify(r.keySecret, cb.Signature, expected) {
		return ErrInvalidSignature
	}
	return nil
}

func (r *Razorpay) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if !verify(r.webhookSecret, signature, SignBody(r.webhookSecret, payload)) {
		return nil, ErrInvalidSignature
	}

	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrInvalidPayload)
	}
	return env.toEvent(), nil
}

var razorpayEvents = map[string]EventType{
	"subscription.activated": EventActivated,
	"subscription.charged":   EventCharged,
	"subscription.cancelled": EventCancelled,
	"subscription.halted":    EventCancelled,
	"subscription.completed": EventCancelled,
	"payment.failed":         EventPaymentFailed,
	"payment_link.paid":      EventLinkPaid,
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription *struct {
			Entity subscriptionEntity `json:"entity"`
		} `json:"subscription"`
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		PaymentLink *struct {
			Entity paymentLinkEntity `json:"entity"`
		} `json:"payment_link"`
	} `json:"payload"`
}

type subscriptionEntity struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	CurrentEnd int64  `json:"current_end"`
	Notes      notes  `json:"notes"`
}

type paymentEntity struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description"`
	Notes            notes  `json:"notes"`
}

type paymentLinkEntity struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Notes       notes  `json:"notes"`
}

// notes is the free form key/value map Razorpay attaches to entities. An
// entity without notes carries an empty JSON array instead of an object.
type notes map[string]string

func (n *notes) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(b), []byte("[")) {
		*n = notes{}
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(notes, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		} else if v != nil {
			out[k] = fmt.Sprint(v)
		}
	}
	*n = out
	return nil
}

func (env webhookEnvelope) toEvent() *Event {
	ev := &Event{RawType: env.Event, Type: EventIgnored}
	if t, ok := razorpayEvents[env.Event]; ok {
		ev.Type = t
	}

	// Notes are looked up on the subscription first, then on the payment
	// and the payment link.
	var sources []notes
	if s := env.Payload.Subscription; s != nil {
		ev.SubscriptionID = s.Entity.ID
		if s.Entity.CurrentEnd > 0 {
			ev.PeriodEnd = time.Unix(s.Entity.CurrentEnd, 0).UTC()
		}
		sources = append(sources, s.Entity.Notes)
	}
	if p := env.Payload.Payment; p != nil {
		ev.PaymentID = p.Entity.ID
		ev.Reason = p.Entity.ErrorDescription
		sources = append(sources, p.Entity.Notes)
	}
	if l := env.Payload.PaymentLink; l != nil {
		ev.LinkID = l.Entity.ID
		sources = append(sources, l.Entity.Notes)
	}
	for _, n := range sources {
		if ev.UserID == "" {
			ev.UserID = n["userId"]
		}
		if ev.Tier == "" {
			ev.Tier = n["tier"]
		}
	}
	return ev
}
