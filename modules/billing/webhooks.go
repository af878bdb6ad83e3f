package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/quotakit/handler"
	"github.com/dmitrymomot/quotakit/pkg/payment"
)

const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"

	maxWebhookBody = 1 << 20
)

// WebhookHandler is the part of *payment.Service that applies gateway
// webhooks.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, payload []byte, signature, eventID string) (payment.Result, error)
}

// WebhookService receives Razorpay webhooks. The route is public; trust
// comes from the body signature.
type WebhookService struct {
	webhooks     WebhookHandler
	errorHandler handler.ErrorHandler[handler.Context]
}

func NewWebhookService(webhooks WebhookHandler, errorHandler handler.ErrorHandler[handler.Context]) *WebhookService {
	if errorHandler == nil {
		errorHandler = NewErrorHandler(nil)
	}
	return &WebhookService{webhooks: webhooks, errorHandler: errorHandler}
}

func (s *WebhookService) Routes(r chi.Router) {
	r.Post("/webhooks/razorpay", handler.Wrap(s.razorpay,
		handler.WithBinder[handler.Context, WebhookRequest](bindWebhook),
		handler.WithErrorHandler[handler.Context, WebhookRequest](s.errorHandler),
	))
}

// WebhookRequest is a raw webhook delivery. The signature covers the exact
// bytes, so the body is never decoded before verification.
type WebhookRequest struct {
	Payload   []byte
	Signature string
	EventID   string
}

var errWebhookTooLarge = fmt.Errorf("%w: body too large", payment.ErrInvalidPayload)

func bindWebhook(r *http.Request, v any) error {
	req, ok := v.(*WebhookRequest)
	if !ok {
		return errors.New("webhook binder: unexpected target type")
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", payment.ErrInvalidPayload, err)
	}
	if len(body) > maxWebhookBody {
		return errWebhookTooLarge
	}
	req.Payload = body
	req.Signature = r.Header.Get(SignatureHeader)
	req.EventID = r.Header.Get(EventIDHeader)
	return nil
}

func (s *WebhookService) razorpay(ctx handler.Context, req WebhookRequest) handler.Response {
	res, err := s.webhooks.HandleWebhook(ctx, req.Payload, req.Signature, req.EventID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(res)
}
