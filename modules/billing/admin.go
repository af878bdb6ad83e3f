package billing

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/quotakit/handler"
	"github.com/dmitrymomot/quotakit/pkg/auth"
	"github.com/dmitrymomot/quotakit/pkg/binder"
	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/logger"
)

// AdminLedger is the part of *entitlement.Ledger support staff drive.
type AdminLedger interface {
	Summary(ctx context.Context, userID string) (*entitlement.Summary, error)
	ResetUsage(ctx context.Context, userID string) (*entitlement.Record, error)
	Purge(ctx context.Context, userID string) error
}

// AdminService serves support operations on other users' records. Only
// callers whose user id is in the admin list get through.
type AdminService struct {
	ledger       AdminLedger
	admins       map[string]struct{}
	log          *slog.Logger
	errorHandler handler.ErrorHandler[handler.Context]
}

func NewAdminService(ledger AdminLedger, adminIDs []string, log *slog.Logger) *AdminService {
	log = logger.OrDiscard(log)
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = struct{}{}
		}
	}
	return &AdminService{
		ledger:       ledger,
		admins:       admins,
		log:          log.With(logger.Component("billing.admin")),
		errorHandler: NewErrorHandler(log),
	}
}

func (s *AdminService) Routes(r chi.Router) {
	r.Post("/admin/users/{userID}/usage/reset", handler.Wrap(s.resetUsage,
		handler.WithBinders[handler.Context, AdminUserRequest](binder.Path(chi.URLParam)),
		handler.WithErrorHandler[handler.Context, AdminUserRequest](s.errorHandler),
		handler.WithDecorators[handler.Context, AdminUserRequest](s.requireAdmin),
	))
	r.Delete("/admin/users/{userID}", handler.Wrap(s.purge,
		handler.WithBinders[handler.Context, AdminUserRequest](binder.Path(chi.URLParam)),
		handler.WithErrorHandler[handler.Context, AdminUserRequest](s.errorHandler),
		handler.WithDecorators[handler.Context, AdminUserRequest](s.requireAdmin),
	))
}

type AdminUserRequest struct {
	UserID string `path:"userID"`
}

func (s *AdminService) resetUsage(ctx handler.Context, req AdminUserRequest) handler.Response {
	if _, err := s.ledger.ResetUsage(ctx, req.UserID); err != nil {
		return handler.Fail(err)
	}
	s.log.LogAttrs(ctx, slog.LevelInfo, "usage reset by admin",
		logger.UserID(req.UserID), slog.String("admin_id", auth.UserID(ctx)))

	sum, err := s.ledger.Summary(ctx, req.UserID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(sum, handler.WithJSONHeader("Cache-Control", "no-store"))
}

// purge drops the record and any tombstone, so the user starts over on the
// default tier.
func (s *AdminService) purge(ctx handler.Context, req AdminUserRequest) handler.Response {
	if err := s.ledger.Purge(ctx, req.UserID); err != nil {
		return handler.Fail(err)
	}
	s.log.LogAttrs(ctx, slog.LevelWarn, "record purged by admin",
		logger.UserID(req.UserID), slog.String("admin_id", auth.UserID(ctx)))
	return handler.Empty()
}

func (s *AdminService) requireAdmin(next handler.HandlerFunc[handler.Context, AdminUserRequest]) handler.HandlerFunc[handler.Context, AdminUserRequest] {
	return func(ctx handler.Context, req AdminUserRequest) handler.Response {
		uid := auth.UserID(ctx)
		if uid == "" {
			return handler.Fail(entitlement.ErrMissingUserID)
		}
		if _, ok := s.admins[uid]; !ok {
			return handler.Fail(handler.ErrForbidden.WithMessage("Admin access required"))
		}
		return next(ctx, req)
	}
}
