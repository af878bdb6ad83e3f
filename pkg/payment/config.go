package payment

import "time"

// Config holds gateway credentials and link settings.
type Config struct {
	KeyID         string        `env:"RAZORPAY_KEY_ID"`
	KeySecret     string        `env:"RAZORPAY_KEY_SECRET"`
	WebhookSecret string        `env:"RAZORPAY_WEBHOOK_SECRET"`
	BaseURL       string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:4321"`
	ProductName   string        `env:"PAYMENT_PRODUCT_NAME" envDefault:"PraxJobs"`
	LinkExpiry    time.Duration `env:"PAYMENT_LINK_EXPIRY" envDefault:"24h"`
	EventInFlight time.Duration `env:"WEBHOOK_INFLIGHT_TTL" envDefault:"10m"`
	EventRetain   time.Duration `env:"WEBHOOK_RETENTION" envDefault:"168h"`
	LockTTL       time.Duration `env:"PAYMENT_LOCK_TTL" envDefault:"30s"`
}

// Enabled reports whether API credentials are present.
func (c Config) Enabled() bool {
	return c.KeyID != "" && c.KeySecret != ""
}
