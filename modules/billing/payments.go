package billing

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/quotakit/handler"
	"github.com/dmitrymomot/quotakit/pkg/auth"
	"github.com/dmitrymomot/quotakit/pkg/binder"
	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/payment"
)

// Payments is the part of *payment.Service used by user facing routes.
type Payments interface {
	CreatePaymentLink(ctx context.Context, userID, tier string) (*payment.PaymentLink, error)
	ConfirmPaymentLink(ctx context.Context, userID string, cb payment.LinkCallback) (*entitlement.Record, error)
	CancelSubscription(ctx context.Context, userID string) (*entitlement.Record, error)
}

// PaymentService starts and confirms upgrades and cancels subscriptions.
// Responses after a tier change carry the fresh usage summary.
type PaymentService struct {
	payments     Payments
	ledger       Ledger
	errorHandler handler.ErrorHandler[handler.Context]
}

func NewPaymentService(payments Payments, ledger Ledger, errorHandler handler.ErrorHandler[handler.Context]) *PaymentService {
	if errorHandler == nil {
		errorHandler = NewErrorHandler(nil)
	}
	return &PaymentService{payments: payments, ledger: ledger, errorHandler: errorHandler}
}

func (s *PaymentService) Routes(r chi.Router) {
	r.Post("/payment-links", handler.Wrap(s.createLink,
		handler.WithBinders[handler.Context, CreateLinkRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, CreateLinkRequest](s.errorHandler),
		handler.WithDecorators[handler.Context, CreateLinkRequest](requireUser[CreateLinkRequest]),
	))
	r.Post("/payment-links/confirm", handler.Wrap(s.confirmLink,
		handler.WithBinders[handler.Context, payment.LinkCallback](binder.JSON()),
		handler.WithErrorHandler[handler.Context, payment.LinkCallback](s.errorHandler),
		handler.WithDecorators[handler.Context, payment.LinkCallback](requireUser[payment.LinkCallback]),
	))
	r.Post("/subscription/cancel", handler.Wrap(s.cancel,
		handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
		handler.WithDecorators[handler.Context, struct{}](requireUser[struct{}]),
	))
}

type CreateLinkRequest struct {
	Tier string `json:"tier"`
}

func (r CreateLinkRequest) Validate() error {
	verr := handler.NewValidationError()
	if r.Tier == "" {
		verr.Add("tier", "is required")
	}
	return verr.Err()
}

func (s *PaymentService) createLink(ctx handler.Context, req CreateLinkRequest) handler.Response {
	if err := req.Validate(); err != nil {
		return handler.Fail(err)
	}
	link, err := s.payments.CreatePaymentLink(ctx, auth.UserID(ctx), req.Tier)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(link, handler.WithJSONStatus(http.StatusCreated))
}

func validateCallback(cb payment.LinkCallback) error {
	verr := handler.NewValidationError()
	if cb.PaymentID == "" {
		verr.Add("razorpay_payment_id", "is required")
	}
	if cb.LinkID == "" {
		verr.Add("razorpay_payment_link_id", "is required")
	}
	if cb.Signature == "" {
		verr.Add("razorpay_signature", "is required")
	}
	return verr.Err()
}

func (s *PaymentService) confirmLink(ctx handler.Context, cb payment.LinkCallback) handler.Response {
	if err := validateCallback(cb); err != nil {
		return handler.Fail(err)
	}
	uid := auth.UserID(ctx)
	if _, err := s.payments.ConfirmPaymentLink(ctx, uid, cb); err != nil {
		return handler.Fail(err)
	}
	return s.summary(ctx, uid)
}

func (s *PaymentService) cancel(ctx handler.Context, _ struct{}) handler.Response {
	uid := auth.UserID(ctx)
	if _, err := s.payments.CancelSubscription(ctx, uid); err != nil {
		return handler.Fail(err)
	}
	return s.summary(ctx, uid)
}

func (s *PaymentService) summary(ctx handler.Context, uid string) handler.Response {
	sum, err := s.ledger.Summary(ctx, uid)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(sum)
}
