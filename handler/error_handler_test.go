package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/quotakit/handler"
	"github.com/dmitrymomot/quotakit/pkg/binder"
)

var errQuota = errors.New("quota exceeded")

func quotaMapper(err error) (handler.HTTPError, bool) {
	if errors.Is(err, errQuota) {
		return handler.ErrPaymentRequired.WithMessage("Upgrade to continue."), true
	}
	return handler.HTTPError{}, false
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"mapped domain error", fmt.Errorf("consume: %w", errQuota), http.StatusPaymentRequired, "payment_required", "Upgrade to continue."},
		{"http error", handler.ErrGone, http.StatusGone, "gone", "Gone"},
		{"wrapped http error", fmt.Errorf("x: %w", handler.ErrConflict), http.StatusConflict, "conflict", "Conflict"},
		{"malformed json", fmt.Errorf("%w: eof", binder.ErrFailedToParseJSON), http.StatusBadRequest, "bad_request", "Malformed request"},
		{"wrong media type", binder.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "unsupported_media_type", "Request body must be application/json"},
		{"body too large", binder.ErrRequestTooLarge, http.StatusRequestEntityTooLarge, "request_entity_too_large", "Request Entity Too Large"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "gateway_timeout", "Gateway Timeout"},
		{"unknown error hides cause", errors.New("pq: password=hunter2"), http.StatusInternalServerError, "internal_error", "An error occurred processing your request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			info := handler.ClassifyError(tt.err, nil, quotaMapper)
			assert.Equal(t, tt.status, info.StatusCode)
			assert.Equal(t, tt.code, info.Detail.Code)
			assert.Equal(t, tt.message, info.Detail.Message)
		})
	}

	t.Run("validation error", func(t *testing.T) {
		t.Parallel()
		verr := handler.NewValidationError()
		verr.Add("tier", "is required")
		info := handler.ClassifyError(fmt.Errorf("bind: %w", verr))
		assert.Equal(t, http.StatusUnprocessableEntity, info.StatusCode)
		assert.Equal(t, "validation_error", info.Detail.Code)
		assert.Equal(t, []string{"is required"}, info.Detail.Details["tier"])
	})
}

func TestNewErrorHandler(t *testing.T) {
	t.Parallel()

	errorHandler := handler.NewErrorHandler(nil, quotaMapper)
	serve := func(err error) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		fn := handler.Wrap(func(handler.Context, struct{}) handler.Response { return handler.Fail(err) },
			handler.WithErrorHandler[handler.Context, struct{}](errorHandler))
		fn(w, httptest.NewRequest(http.MethodPost, "/features/jobAnalysis/consume", nil))
		return w
	}

	t.Run("writes a JSON error body", func(t *testing.T) {
		t.Parallel()
		w := serve(errQuota)
		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"error":{"code":"payment_required","message":"Upgrade to continue."}}`, w.Body.String())
	})

	t.Run("unauthorized sets challenge header", func(t *testing.T) {
		t.Parallel()
		w := serve(handler.ErrUnauthorized)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	})

	t.Run("cancelled request writes nothing", func(t *testing.T) {
		t.Parallel()
		w := serve(context.Canceled)
		assert.Empty(t, w.Body.String())
	})
}
