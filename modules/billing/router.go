package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routable registers its routes on a router.
type Routable interface {
	Routes(r chi.Router)
}

// RouterOptions selects what the billing router serves. Nil services are
// not mounted.
type RouterOptions struct {
	// Authenticate guards every user route; it must put the user id into
	// the request context (see auth.Middleware).
	Authenticate func(http.Handler) http.Handler
	// Throttle, when set, wraps the payment routes after authentication.
	Throttle func(http.Handler) http.Handler

	Entitlements Routable
	Payments     Routable
	Webhooks     Routable
	// Admin is mounted behind Authenticate; it checks admin rights itself.
	Admin Routable
}

// Router builds the billing API:
//
//	r.Mount("/api", billing.Router(billing.RouterOptions{
//		Authenticate: auth.Middleware(verifier, log),
//		Entitlements: billing.NewEntitlementService(ledger, log),
//		Payments:     billing.NewPaymentService(payments, ledger, errHandler),
//		Webhooks:     billing.NewWebhookService(payments, errHandler),
//		Admin:        billing.NewAdminService(ledger, adminIDs, log),
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	if opts.Webhooks != nil {
		opts.Webhooks.Routes(r)
	}

	r.Group(func(r chi.Router) {
		if opts.Authenticate != nil {
			r.Use(opts.Authenticate)
		}
		if opts.Entitlements != nil {
			opts.Entitlements.Routes(r)
		}
		if opts.Payments != nil {
			r.Group(func(r chi.Router) {
				if opts.Throttle != nil {
					r.Use(opts.Throttle)
				}
				opts.Payments.Routes(r)
			})
		}
		if opts.Admin != nil {
			opts.Admin.Routes(r)
		}
	})

	return r
}
