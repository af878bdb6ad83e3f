// Package handler is a small typed toolkit for JSON HTTP endpoints.
//
// A HandlerFunc receives a Context and a request value already populated
// by binders (see pkg/binder), and returns a Response. Wrap turns it into
// an http.HandlerFunc:
//
//	type LinkRequest struct {
//		Tier string `json:"tier"`
//	}
//
//	createLink := func(ctx handler.Context, req LinkRequest) handler.Response {
//		link, err := payments.CreatePaymentLink(ctx, auth.UserID(ctx), req.Tier)
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(link, handler.WithJSONStatus(http.StatusCreated))
//	}
//
//	r.Post("/payment-links", handler.Wrap(createLink,
//		handler.WithBinders[handler.Context, LinkRequest](binder.JSON()),
//		handler.WithErrorHandler[handler.Context, LinkRequest](errHandler),
//	))
//
// # Responses
//
// JSON writes the envelope {"data": ..., "meta": ...}; JSONError and the
// error handler write {"error": {"code", "message", "details"}}. Empty
// writes a bare status.
//
// # Errors
//
// HTTPError pairs a status with a stable key. Domain packages stay free of
// HTTP concerns: the HTTP layer registers ErrorMapper functions with
// NewErrorHandler to translate their sentinel errors. ValidationError
// renders as 422 with per-field details. Unknown errors become a 500 whose
// message does not leak internals.
//
// # Decorators
//
// Decorators wrap a HandlerFunc for cross cutting checks:
//
//	func requireUser[R any](next handler.HandlerFunc[handler.Context, R]) handler.HandlerFunc[handler.Context, R] {
//		return func(ctx handler.Context, req R) handler.Response {
//			if auth.UserID(ctx) == "" {
//				return handler.JSONError(handler.ErrUnauthorized)
//			}
//			return next(ctx, req)
//		}
//	}
package handler
