package payment

import (
	"context"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
)

// Unavailable stands in for Service when no provider credentials are set.
// Every call fails with ErrPaymentsNotAvailable so the routes stay mounted
// and answer with a clear error instead of 404.
type Unavailable struct{}

func (Unavailable) CreatePaymentLink(context.Context, string, string) (*PaymentLink, error) {
	return nil, ErrPaymentsNotAvailable
}

func (Unavailable) ConfirmPaymentLink(context.Context, string, LinkCallback) (*entitlement.Record, error) {
	return nil, ErrPaymentsNotAvailable
}

func (Unavailable) CancelSubscription(context.Context, string) (*entitlement.Record, error) {
	return nil, ErrPaymentsNotAvailable
}

func (Unavailable) HandleWebhook(context.Context, []byte, string, string) (Result, error) {
	return Result{Outcome: OutcomeRejected}, ErrPaymentsNotAvailable
}
