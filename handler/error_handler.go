package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/quotakit/pkg/binder"
	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/requestid"
)

// ErrorMapper translates a domain error into an HTTPError. It reports
// false for errors it does not know.
type ErrorMapper func(err error) (HTTPError, bool)

// ErrorInfo is the classified form of an error.
type ErrorInfo struct {
	StatusCode int
	Detail     *ErrorDetail
	LogLevel   slog.Level
}

const internalMessage = "An error occurred processing your request"

// ClassifyError runs the mappers in order, then falls back to HTTPError,
// ValidationError, binder and context errors in the chain. Anything else
// is a 500 whose message hides the cause.
func ClassifyError(err error, mappers ...ErrorMapper) ErrorInfo {
	info := ErrorInfo{StatusCode: http.StatusInternalServerError}

	httpErr, ok := mapError(err, mappers)
	switch {
	case ok:
		info.StatusCode = httpErr.Code
		info.Detail = &ErrorDetail{Code: httpErr.Key, Message: httpErr.text()}
	default:
		var valErr ValidationError
		if errors.As(err, &valErr) {
			status := http.StatusUnprocessableEntity
			info.Detail = errorToDetail(valErr, &status)
			info.StatusCode = status
			break
		}
		info.Detail = &ErrorDetail{Code: ErrInternalServerError.Key, Message: internalMessage}
	}

	if info.StatusCode >= http.StatusInternalServerError {
		info.LogLevel = slog.LevelError
	} else {
		info.LogLevel = slog.LevelWarn
	}
	return info
}

func mapError(err error, mappers []ErrorMapper) (HTTPError, bool) {
	for _, m := range mappers {
		if m == nil {
			continue
		}
		if h, ok := m(err); ok {
			return h, true
		}
	}

	var httpErr HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr, true
	case errors.Is(err, binder.ErrRequestTooLarge):
		return ErrRequestTooLarge, true
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return ErrUnsupportedMediaType.WithMessage("Request body must be application/json"), true
	case errors.Is(err, binder.ErrFailedToParseJSON), errors.Is(err, binder.ErrFailedToParsePath):
		return ErrBadRequest.WithMessage("Malformed request"), true
	case errors.Is(err, context.DeadlineExceeded):
		return ErrGatewayTimeout, true
	}
	return HTTPError{}, false
}

// NewErrorHandler returns an ErrorHandler that logs the failure and writes
// a JSON error body. Mappers are tried before the built in classification.
func NewErrorHandler(log *slog.Logger, mappers ...ErrorMapper) ErrorHandler[Context] {
	log = logger.OrDiscard(log).With(logger.Component("http"))

	return func(ctx Context, err error) {
		r := ctx.Request()
		info := ClassifyError(err, mappers...)

		if errors.Is(err, context.Canceled) {
			// client went away; nothing useful to write
			log.LogAttrs(ctx, slog.LevelDebug, "request cancelled",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			return
		}

		log.LogAttrs(ctx, info.LogLevel, "request error",
			logger.RequestID(requestid.FromContext(ctx)),
			logger.Error(err),
			slog.Int("status_code", info.StatusCode),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		var opts []JSONOption
		opts = append(opts, WithJSONStatus(info.StatusCode))
		if info.StatusCode == http.StatusUnauthorized {
			opts = append(opts, WithJSONHeader("WWW-Authenticate", "Bearer"))
		}
		if renderErr := JSONError(info.Detail, opts...).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.LogAttrs(ctx, slog.LevelError, "failed to render error response",
				logger.Error(renderErr),
				logger.Event("render_error"),
			)
		}
	}
}
