package auth

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

type contextKey struct{ name string }

var userIDKey = &contextKey{name: "user_id"}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user id, or "" outside the middleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// LogExtractor adds user_id to log records, for logger.WithContextExtractors.
func LogExtractor(ctx context.Context) (slog.Attr, bool) {
	id := UserID(ctx)
	if id == "" {
		return slog.Attr{}, false
	}
	return logger.UserID(id), true
}
