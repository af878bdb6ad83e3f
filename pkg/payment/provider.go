package payment

import (
	"context"
	"time"
)

// Provider is a payment gateway.
type Provider interface {
	// CreatePaymentLink creates a one-off hosted payment page.
	CreatePaymentLink(ctx context.Context, req LinkRequest) (*PaymentLink, error)
	// CancelSubscription cancels a recurring subscription immediately.
	CancelSubscription(ctx context.Context, subscriptionID string) error
	// ParseWebhook verifies the signature over the raw body and decodes it.
	// It fails closed: any verification problem is ErrInvalidSignature.
	ParseWebhook(payload []byte, signature string) (*Event, error)
	// VerifyPaymentLink checks the signature the gateway appends to the
	// payment link callback URL.
	VerifyPaymentLink(cb LinkCallback) error
}

// LinkRequest describes a payment link to create.
type LinkRequest struct {
	UserID      string
	Tier        string
	Amount      int64 // minor units
	Currency    string
	Description string
	ReferenceID string
	CallbackURL string
	ExpireBy    time.Time
}

// PaymentLink is a created link.
type PaymentLink struct {
	ID          string `json:"id"`
	ShortURL    string `json:"paymentLink"`
	ReferenceID string `json:"referenceId"`
}

// LinkCallback holds the query parameters of a payment link redirect.
type LinkCallback struct {
	PaymentID   string `json:"razorpay_payment_id"`
	LinkID      string `json:"razorpay_payment_link_id"`
	ReferenceID string `json:"razorpay_payment_link_reference_id"`
	Status      string `json:"razorpay_payment_link_status"`
	Signature   string `json:"razorpay_signature"`
	Tier        string `json:"tier"`
}
