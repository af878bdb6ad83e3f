package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/quotakit/modules/billing"
	"github.com/dmitrymomot/quotakit/pkg/auth"
	"github.com/dmitrymomot/quotakit/pkg/email"
	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/firebase"
	"github.com/dmitrymomot/quotakit/pkg/metrics"
	"github.com/dmitrymomot/quotakit/pkg/notify"
	"github.com/dmitrymomot/quotakit/pkg/payment"
	"github.com/dmitrymomot/quotakit/pkg/ratelimit"
	"github.com/dmitrymomot/quotakit/pkg/sweeper"
)

var errNoVerifier = errors.New("no token verifier: configure Firebase or set AUTH_INSECURE_DEV=true")

// authentication picks the token verifier and, with Firebase, the address
// book used for notification emails.
func authentication(ctx context.Context, d *deps) (auth.Verifier, notify.RecipientResolver, error) {
	if d.firebase != nil {
		client, err := firebase.Auth(ctx, d.firebase)
		if err != nil {
			return nil, nil, err
		}
		return auth.NewFirebaseVerifier(client), notify.NewFirebaseResolver(client), nil
	}
	if d.cfg.AuthInsecureDev {
		d.log.Warn("accepting unsigned dev:<uid> tokens")
		return auth.InsecureDevVerifier{}, nil, nil
	}
	return nil, nil, errNoVerifier
}

func newDispatcher(d *deps, resolver notify.RecipientResolver) (*notify.Dispatcher, error) {
	deliverers := []notify.Deliverer{notify.NewLogDeliverer(d.log)}

	if resolver != nil {
		var sender email.EmailSender
		if d.cfg.Email.PostmarkEnabled() {
			s, err := email.NewPostmarkClient(d.cfg.Email)
			if err != nil {
				return nil, err
			}
			sender = s
		} else {
			sender = email.NewDevSender(d.cfg.Email.DevOutputDir)
		}
		deliverers = append(deliverers, notify.NewEmailDeliverer(sender, resolver))
	}

	renderer := notify.NewRenderer(d.catalog, d.cfg.Payment.ProductName, d.cfg.Payment.BaseURL)
	return notify.NewDispatcher(renderer, notify.NewMultiDeliverer(d.log, deliverers...),
		notify.WithWorkers(d.cfg.NotifyWorkers),
		notify.WithQueueSize(d.cfg.NotifyQueue),
		notify.WithLogger(d.log),
	), nil
}

type paymentFlows interface {
	billing.Payments
	billing.WebhookHandler
}

func newPayments(d *deps, ledger *entitlement.Ledger, be *backend) (paymentFlows, error) {
	cfg := d.cfg.Payment
	if !cfg.Enabled() {
		d.log.Warn("razorpay is not configured; payment routes answer 503")
		return payment.Unavailable{}, nil
	}

	provider, err := payment.NewRazorpay(cfg)
	if err != nil {
		return nil, err
	}

	opts := []payment.Option{
		payment.WithLogger(d.log),
		payment.WithObserver(metrics.NewWebhookCollector(d.registry)),
	}
	if be.redis != nil {
		prefix := be.redisC.KeyPrefix
		opts = append(opts,
			payment.WithEventLog(payment.NewRedisEventLog(be.redis, prefix, cfg.EventInFlight, cfg.EventRetain)),
			payment.WithLocker(payment.NewRedisLocker(be.redis, prefix, cfg.LockTTL, cfg.LockTTL)),
		)
	}
	return payment.NewService(ledger, provider, cfg, opts...), nil
}

func newSweeper(d *deps, ledger *entitlement.Ledger, lister entitlement.Lister) *sweeper.Sweeper {
	return sweeper.New(ledger, lister,
		sweeper.WithConcurrency(d.cfg.SweepConcurrency),
		sweeper.WithUserTimeout(d.cfg.SweepUserTimeout),
		sweeper.WithObserver(metrics.NewSweepCollector(d.registry)),
		sweeper.WithLogger(d.log.With(slog.String("job", "cycle_sweep"))),
	)
}

// paymentThrottle limits payment calls per user, shared through Redis when
// the store runs on it.
func paymentThrottle(d *deps, be *backend) (func(http.Handler) http.Handler, error) {
	var store ratelimit.Store = ratelimit.NewMemoryStore()
	if be.redis != nil {
		store = ratelimit.NewRedisStore(be.redis, be.redisC.KeyPrefix)
	}
	limiter, err := ratelimit.NewFixedWindow(store, d.cfg.PaymentRateLimit, d.cfg.PaymentRateWindow)
	if err != nil {
		return nil, err
	}
	return ratelimit.Middleware(limiter, ratelimit.ByUser, ratelimit.WithLogger(d.log)), nil
}
