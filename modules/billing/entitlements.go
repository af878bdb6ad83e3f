package billing

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/quotakit/handler"
	"github.com/dmitrymomot/quotakit/pkg/auth"
	"github.com/dmitrymomot/quotakit/pkg/binder"
	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// Ledger is the part of *entitlement.Ledger used over HTTP.
type Ledger interface {
	Summary(ctx context.Context, userID string) (*entitlement.Summary, error)
	TryConsume(ctx context.Context, userID string, feature tiers.Feature) (entitlement.Decision, error)
	DecrementUsage(ctx context.Context, userID string, feature tiers.Feature) error
	DeleteAccount(ctx context.Context, userID string) error
}

// EntitlementService serves usage reads, feature consumption and account
// deletion for the signed in user.
type EntitlementService struct {
	ledger       Ledger
	log          *slog.Logger
	errorHandler handler.ErrorHandler[handler.Context]
}

func NewEntitlementService(ledger Ledger, log *slog.Logger) *EntitlementService {
	log = logger.OrDiscard(log)
	return &EntitlementService{
		ledger:       ledger,
		log:          log.With(logger.Component("billing")),
		errorHandler: NewErrorHandler(log),
	}
}

func (s *EntitlementService) Routes(r chi.Router) {
	r.Get("/entitlements", handler.Wrap(s.summary,
		handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
		handler.WithDecorators[handler.Context, struct{}](requireUser[struct{}]),
	))
	r.Post("/features/{feature}/consume", handler.Wrap(s.consume,
		handler.WithBinders[handler.Context, FeatureRequest](binder.Path(chi.URLParam)),
		handler.WithErrorHandler[handler.Context, FeatureRequest](s.errorHandler),
		handler.WithDecorators[handler.Context, FeatureRequest](requireUser[FeatureRequest]),
	))
	r.Post("/features/{feature}/release", handler.Wrap(s.release,
		handler.WithBinders[handler.Context, FeatureRequest](binder.Path(chi.URLParam)),
		handler.WithErrorHandler[handler.Context, FeatureRequest](s.errorHandler),
		handler.WithDecorators[handler.Context, FeatureRequest](requireUser[FeatureRequest]),
	))
	r.Delete("/account", handler.Wrap(s.deleteAccount,
		handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
		handler.WithDecorators[handler.Context, struct{}](requireUser[struct{}]),
	))
}

func (s *EntitlementService) summary(ctx handler.Context, _ struct{}) handler.Response {
	sum, err := s.ledger.Summary(ctx, auth.UserID(ctx))
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(sum, handler.WithJSONHeader("Cache-Control", "no-store"))
}

type FeatureRequest struct {
	Feature string `path:"feature"`
}

// ConsumeResponse is the body of a successful consume.
type ConsumeResponse struct {
	entitlement.Decision
	Remaining int64 `json:"remaining"`
	Unlimited bool  `json:"unlimited"`
}

func (s *EntitlementService) consume(ctx handler.Context, req FeatureRequest) handler.Response {
	feature, err := tiers.ParseFeature(req.Feature)
	if err != nil {
		return handler.Fail(err)
	}

	d, err := s.ledger.TryConsume(ctx, auth.UserID(ctx), feature)
	if err != nil {
		return handler.Fail(err)
	}
	if !d.Allowed {
		return handler.Fail(d.Err())
	}
	return handler.JSON(ConsumeResponse{
		Decision:  d,
		Remaining: d.Remaining(),
		Unlimited: d.Cap == tiers.Unlimited,
	})
}

func (s *EntitlementService) release(ctx handler.Context, req FeatureRequest) handler.Response {
	feature, err := tiers.ParseFeature(req.Feature)
	if err != nil {
		return handler.Fail(err)
	}
	if err := s.ledger.DecrementUsage(ctx, auth.UserID(ctx), feature); err != nil {
		return handler.Fail(err)
	}
	return handler.Empty()
}

func (s *EntitlementService) deleteAccount(ctx handler.Context, _ struct{}) handler.Response {
	uid := auth.UserID(ctx)
	if err := s.ledger.DeleteAccount(ctx, uid); err != nil {
		return handler.Fail(err)
	}
	s.log.LogAttrs(ctx, slog.LevelInfo, "account deleted", logger.UserID(uid))
	return handler.Empty()
}

// requireUser rejects requests that reached a handler without an
// authenticated user id.
func requireUser[R any](next handler.HandlerFunc[handler.Context, R]) handler.HandlerFunc[handler.Context, R] {
	return func(ctx handler.Context, req R) handler.Response {
		if auth.UserID(ctx) == "" {
			return handler.Fail(entitlement.ErrMissingUserID)
		}
		return next(ctx, req)
	}
}
