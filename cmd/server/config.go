package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/config"
	"github.com/dmitrymomot/quotakit/pkg/email"
	"github.com/dmitrymomot/quotakit/pkg/firebase"
	"github.com/dmitrymomot/quotakit/pkg/httpserver"
	"github.com/dmitrymomot/quotakit/pkg/payment"
	"github.com/dmitrymomot/quotakit/pkg/sweeper"
)

// Store drivers.
const (
	driverMemory    = "memory"
	driverRedis     = "redis"
	driverPostgres  = "postgres"
	driverMongo     = "mongo"
	driverFirestore = "firestore"
)

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	CatalogFile string `env:"TIER_CATALOG_FILE"`
	APIPrefix   string `env:"API_PREFIX" envDefault:"/api"`

	SweepSchedule    string        `env:"SWEEP_SCHEDULE" envDefault:"0 0 1 * *"`
	SweepConcurrency int           `env:"SWEEP_CONCURRENCY" envDefault:"8"`
	SweepUserTimeout time.Duration `env:"SWEEP_USER_TIMEOUT" envDefault:"5s"`

	PaymentRateLimit  int           `env:"PAYMENT_RATE_LIMIT" envDefault:"10"`
	PaymentRateWindow time.Duration `env:"PAYMENT_RATE_WINDOW" envDefault:"1m"`

	NotifyWorkers int `env:"NOTIFY_WORKERS" envDefault:"2"`
	NotifyQueue   int `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`

	CORSOrigins     []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:4321"`
	AuthInsecureDev bool     `env:"AUTH_INSECURE_DEV" envDefault:"false"`
	AdminUserIDs    []string `env:"ADMIN_USER_IDS" envSeparator:","`

	ReadinessTimeout time.Duration `env:"READINESS_TIMEOUT" envDefault:"2s"`

	HTTP     httpserver.Config
	Payment  payment.Config
	Firebase firebase.Config
	Email    email.Config
}

func loadConfig(opts ...config.Option) (appConfig, error) {
	var cfg appConfig
	if err := config.Load(&cfg, opts...); err != nil {
		return cfg, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case driverMemory, driverRedis, driverPostgres, driverMongo, driverFirestore:
	default:
		return cfg, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = sweeper.DefaultSchedule
	}
	return cfg, nil
}
