// Command server runs the quotakit HTTP API: entitlement checks, payment
// links, Razorpay webhooks and the monthly usage reset sweep.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	fb "firebase.google.com/go/v4"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"

	"github.com/dmitrymomot/quotakit/modules/billing"
	"github.com/dmitrymomot/quotakit/pkg/auth"
	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/firebase"
	"github.com/dmitrymomot/quotakit/pkg/httpserver"
	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/metrics"
	"github.com/dmitrymomot/quotakit/pkg/requestid"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("load config", logger.Error(err))
		os.Exit(1)
	}

	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, "quotakit"),
		logger.WithContextExtractors(requestid.LoggerExtractor(), auth.LogExtractor),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(cfg.LogLevel))
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server stopped", logger.Error(err))
		os.Exit(1)
	}
}

// deps carries what the wiring steps share.
type deps struct {
	cfg      appConfig
	log      *slog.Logger
	catalog  *tiers.Catalog
	firebase *fb.App
	registry *prometheus.Registry

	fs *firestore.Client
}

// firestoreClient returns one shared Firestore client.
func (d *deps) firestoreClient(ctx context.Context) (*firestore.Client, error) {
	if d.fs != nil {
		return d.fs, nil
	}
	c, err := firebase.Firestore(ctx, d.firebase)
	if err != nil {
		return nil, err
	}
	d.fs = c
	return c, nil
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	d := &deps{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	d.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	catalog, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}
	d.catalog = catalog

	app, err := firebase.NewApp(ctx, cfg.Firebase)
	switch {
	case errors.Is(err, firebase.ErrNotConfigured):
		log.Warn("firebase is not configured")
	case err != nil:
		return err
	default:
		d.firebase = app
	}

	verifier, resolver, err := authentication(ctx, d)
	if err != nil {
		return err
	}

	be, err := openBackend(ctx, d)
	if err != nil {
		return err
	}

	dispatcher, err := newDispatcher(d, resolver)
	if err != nil {
		_ = be.closer(ctx)
		return err
	}

	ledger := entitlement.New(be.store, catalog,
		entitlement.WithLogger(log),
		entitlement.WithNotifier(dispatcher),
		entitlement.WithObserver(metrics.NewLedgerCollector(d.registry)),
	)

	payments, err := newPayments(d, ledger, be)
	if err != nil {
		_ = be.closer(ctx)
		return err
	}

	throttle, err := paymentThrottle(d, be)
	if err != nil {
		_ = be.closer(ctx)
		return err
	}

	sweep := newSweeper(d, ledger, be.store)
	if err := sweep.Start(ctx, cfg.SweepSchedule); err != nil {
		_ = be.closer(ctx)
		return err
	}

	errHandler := billing.NewErrorHandler(log)
	api := billing.Router(billing.RouterOptions{
		Authenticate: auth.Middleware(verifier, log),
		Throttle:     throttle,
		Entitlements: billing.NewEntitlementService(ledger, log),
		Payments:     billing.NewPaymentService(payments, ledger, errHandler),
		Webhooks:     billing.NewWebhookService(payments, errHandler),
		Admin:        billing.NewAdminService(ledger, cfg.AdminUserIDs, log),
	})

	r := chi.NewRouter()
	r.Use(requestid.NewMiddleware())
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestid.Header},
		ExposedHeaders:   []string{requestid.Header},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}).Handler)
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, cfg.ReadinessTimeout, be.checks...))
	r.Handle("/metrics", metrics.Handler(d.registry))
	r.Mount(cfg.APIPrefix, api)

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithShutdownHook("sweeper", sweep.Stop),
		httpserver.WithShutdownHook("notifications", dispatcher.Close),
		httpserver.WithShutdownHook("store", be.closer),
		httpserver.WithShutdownHook("firestore", func(context.Context) error {
			if d.fs == nil {
				return nil
			}
			return d.fs.Close()
		}),
	)
	return srv.Run(ctx, r)
}

func loadCatalog(path string) (*tiers.Catalog, error) {
	if path == "" {
		return tiers.Default(), nil
	}
	return tiers.LoadFile(path)
}
