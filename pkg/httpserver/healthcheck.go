package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

// Check is one readiness dependency, e.g. the entitlement store.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler always answers 200 {"status":"alive"}.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, healthBody{Status: "alive"})
	}
}

// ReadinessHandler runs every check concurrently, each bounded by timeout.
// It answers 200 when all pass and 503 otherwise, listing each result.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	log = logger.OrDiscard(log).With(logger.Component("healthcheck"))
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		var (
			mu      sync.Mutex
			results = make(map[string]string, len(checks))
			healthy = true
		)
		var g errgroup.Group
		for _, c := range checks {
			g.Go(func() error {
				err := c.Fn(ctx)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					healthy = false
					results[c.Name] = "fail"
					log.LogAttrs(ctx, slog.LevelError, "readiness check failed",
						slog.String("check", c.Name), logger.Error(err))
					return nil
				}
				results[c.Name] = "ok"
				return nil
			})
		}
		_ = g.Wait()

		if !healthy {
			writeHealth(w, http.StatusServiceUnavailable, healthBody{Status: "not_ready", Checks: results})
			return
		}
		writeHealth(w, http.StatusOK, healthBody{Status: "ready", Checks: results})
	}
}

func writeHealth(w http.ResponseWriter, status int, body healthBody) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
