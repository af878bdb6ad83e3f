package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// Option tunes a single Load call.
type Option func(*loadOptions)

type loadOptions struct {
	prefix      string
	environment map[string]string
	files       []string
}

// WithPrefix requires every variable of the struct to carry the prefix,
// e.g. WithPrefix("BILLING_") reads BILLING_RAZORPAY_KEY_ID.
func WithPrefix(prefix string) Option {
	return func(o *loadOptions) { o.prefix = prefix }
}

// WithEnvironment parses from the given map instead of the process env.
func WithEnvironment(vars map[string]string) Option {
	return func(o *loadOptions) { o.environment = vars }
}

// WithEnvFiles loads additional dotenv files before parsing. Variables that
// are already set are not overridden.
func WithEnvFiles(paths ...string) Option {
	return func(o *loadOptions) { o.files = append(o.files, paths...) }
}

// Load parses environment variables into v according to its env tags.
// The default .env file is loaded once per process if it exists.
//
// Example:
//
//	type RedisConfig struct {
//		URL string `env:"REDIS_URL,required"`
//	}
//
//	var cfg RedisConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// .env is optional
		_ = godotenv.Load()
	})

	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	for _, path := range o.files {
		if err := godotenv.Load(path); err != nil {
			return errors.Join(ErrEnvFile, fmt.Errorf("%s: %w", path, err))
		}
	}

	if err := env.ParseWithOptions(v, env.Options{
		Prefix:      o.prefix,
		Environment: o.environment,
	}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad is Load that panics on failure. Use it for settings the process
// cannot start without.
func MustLoad[T any](opts ...Option) T {
	var v T
	if err := Load(&v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return v
}
