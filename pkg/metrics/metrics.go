package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

const namespace = "quotakit"

const maxLabelLen = 64

// label keeps label values bounded. Event types come from the payment
// provider, so they are not trusted to be short.
func label(s string) string {
	if s == "" {
		return "unknown"
	}
	s = strings.ReplaceAll(s, " ", "_")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}

// LedgerCollector implements entitlement.Observer.
type LedgerCollector struct {
	consume     *prometheus.CounterVec
	resets      *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// NewLedgerCollector registers the ledger counters with reg.
func NewLedgerCollector(reg prometheus.Registerer) *LedgerCollector {
	c := &LedgerCollector{
		consume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consume_total",
			Help:      "Feature consume decisions by feature and result.",
		}, []string{"feature", "result"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_resets_total",
			Help:      "Usage cycle resets by tier.",
		}, []string{"tier"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_transitions_total",
			Help:      "Tier transitions by source and target tier.",
		}, []string{"from", "to"}),
	}
	reg.MustRegister(c.consume, c.resets, c.transitions)
	return c
}

func (c *LedgerCollector) ConsumeDecided(feature tiers.Feature, _ string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	c.consume.WithLabelValues(label(string(feature)), result).Inc()
}

func (c *LedgerCollector) CycleReset(tier string) {
	c.resets.WithLabelValues(label(tier)).Inc()
}

func (c *LedgerCollector) TierChanged(from, to string) {
	c.transitions.WithLabelValues(label(from), label(to)).Inc()
}

// WebhookCollector implements payment.Observer.
type WebhookCollector struct {
	events *prometheus.CounterVec
}

func NewWebhookCollector(reg prometheus.Registerer) *WebhookCollector {
	c := &WebhookCollector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Payment webhooks by event type and outcome.",
		}, []string{"type", "outcome"}),
	}
	reg.MustRegister(c.events)
	return c
}

func (c *WebhookCollector) WebhookHandled(eventType, outcome string) {
	c.events.WithLabelValues(label(eventType), label(outcome)).Inc()
}

// SweepCollector implements sweeper.Observer.
type SweepCollector struct {
	runs     prometheus.Counter
	users    *prometheus.CounterVec
	duration prometheus.Histogram
}

func NewSweepCollector(reg prometheus.Registerer) *SweepCollector {
	c := &SweepCollector{
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Completed cycle reset sweeps.",
		}),
		users: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "users_total",
			Help:      "Users visited by the sweep by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Wall time of a sweep.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
	}
	reg.MustRegister(c.runs, c.users, c.duration)
	return c
}

func (c *SweepCollector) SweepFinished(checked, failed int, seconds float64) {
	c.runs.Inc()
	c.users.WithLabelValues("ok").Add(float64(checked - failed))
	c.users.WithLabelValues("failed").Add(float64(failed))
	c.duration.Observe(seconds)
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
