// Package binder decodes HTTP request data into typed request structs for
// handler.Wrap.
//
// Two binders are provided: JSON for request bodies and Path for router
// parameters. Binders run in order and each only touches its own data
// source, so they compose:
//
//	type ConfirmRequest struct {
//		Feature   string `path:"feature"`
//		PaymentID string `json:"razorpay_payment_id"`
//	}
//
//	handler.Wrap(h, handler.WithBinders[handler.Context, ConfirmRequest](
//		binder.Path(chi.URLParam),
//		binder.JSON(),
//	))
//
// A binder that has nothing to do for a request returns
// ErrBinderNotApplicable, which Wrap skips. Every other error is passed to
// the error handler and matches one of the sentinel errors in this package.
package binder
