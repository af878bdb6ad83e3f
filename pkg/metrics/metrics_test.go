package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/metrics"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

func TestLedgerCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewLedgerCollector(reg)
	ledger := entitlement.New(entitlement.NewMemoryStore(), tiers.Default(), entitlement.WithObserver(c))
	ctx := context.Background()

	for range 6 {
		_, err := ledger.TryConsume(ctx, "u1", tiers.JobAnalysis)
		require.NoError(t, err)
	}
	_, err := ledger.TransitionTier(ctx, "u1", "pro", "sub_1")
	require.NoError(t, err)

	expected := `
# HELP quotakit_consume_total Feature consume decisions by feature and result.
# TYPE quotakit_consume_total counter
quotakit_consume_total{feature="jobAnalysis",result="allowed"} 5
quotakit_consume_total{feature="jobAnalysis",result="denied"} 1
# HELP quotakit_tier_transitions_total Tier transitions by source and target tier.
# TYPE quotakit_tier_transitions_total counter
quotakit_tier_transitions_total{from="free",to="pro"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"quotakit_consume_total", "quotakit_tier_transitions_total"))
}

func TestLedgerCollector_Resets(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewLedgerCollector(reg)
	c.CycleReset("free")
	c.CycleReset("free")
	c.CycleReset("")

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "quotakit_cycle_resets_total"))
}

func TestWebhookCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewWebhookCollector(reg)
	c.WebhookHandled("activated", "processed")
	c.WebhookHandled("activated", "duplicate")
	c.WebhookHandled("activated", "processed")
	c.WebhookHandled(strings.Repeat("x", 200), "rejected")

	expected := `
# HELP quotakit_webhook_events_total Payment webhooks by event type and outcome.
# TYPE quotakit_webhook_events_total counter
quotakit_webhook_events_total{outcome="duplicate",type="activated"} 1
quotakit_webhook_events_total{outcome="processed",type="activated"} 2
quotakit_webhook_events_total{outcome="rejected",type="` + strings.Repeat("x", 64) + `"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "quotakit_webhook_events_total"))
}

func TestSweepCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewSweepCollector(reg)
	c.SweepFinished(10, 2, 0.5)

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "quotakit_sweep_users_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "quotakit_sweep_runs_total"))
}

func TestHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics.NewWebhookCollector(reg).WebhookHandled("charged", "processed")

	w := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `quotakit_webhook_events_total{outcome="processed",type="charged"} 1`)
}
