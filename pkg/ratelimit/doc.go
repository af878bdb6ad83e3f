// Package ratelimit throttles HTTP endpoints with a fixed-window counter.
//
// A FixedWindow allows Limit requests per key in each Window. Counters live
// in a Store: MemoryStore for a single instance, RedisStore when several
// instances share the limit.
//
//	limiter, err := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), 10, time.Minute)
//	if err != nil {
//		return err
//	}
//	r.With(ratelimit.Middleware(limiter, ratelimit.ByUser)).Post("/payment-links", h)
//
// The middleware fails open: a store error lets the request through.
package ratelimit
