// Package metrics exposes the Prometheus instrumentation used across the
// service. A nil *Collector is valid and records nothing, so callers never
// need to guard their instrumentation sites.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the service's metric instruments.
type Collector struct {
	registry *prometheus.Registry

	turnDuration     *prometheus.HistogramVec
	turnsTotal       *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	memoryFailures   prometheus.Counter
	ttsFailures      prometheus.Counter
	ttsCache         *prometheus.CounterVec
	stateTransitions *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewCollector registers all instruments on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatmode_turn_duration_seconds",
			Help:    "Wall time of one agent turn, prompt assembly to append.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"agent_id"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatmode_turns_total",
			Help: "Agent turns taken, by outcome.",
		}, []string{"agent_id", "outcome"}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatmode_provider_failures_total",
			Help: "Upstream chat completion failures, by provider.",
		}, []string{"provider"}),
		memoryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatmode_memory_failures_total",
			Help: "Memory retrieval or write-back failures.",
		}),
		ttsFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatmode_tts_failures_total",
			Help: "Background speech synthesis failures.",
		}),
		ttsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatmode_tts_cache_total",
			Help: "Speech artifact cache lookups, by result.",
		}, []string{"result"}),
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatmode_agent_state_transitions_total",
			Help: "Agent state machine transitions.",
		}, []string{"from", "to"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatmode_http_requests_total",
			Help: "HTTP requests handled, by route and status class.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatmode_http_request_duration_seconds",
			Help:    "HTTP request handling time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.turnDuration, c.turnsTotal, c.providerFailures,
		c.memoryFailures, c.ttsFailures, c.ttsCache,
		c.stateTransitions, c.httpRequests, c.httpDuration,
	)
	return c
}

// Handler returns the /metrics endpoint handler.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveTurn records one completed or failed agent turn.
func (c *Collector) ObserveTurn(agentID string, seconds float64, failed bool) {
	if c == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	c.turnDuration.WithLabelValues(agentID).Observe(seconds)
	c.turnsTotal.WithLabelValues(agentID, outcome).Inc()
}

// IncProviderFailure counts one upstream completion failure.
func (c *Collector) IncProviderFailure(provider string) {
	if c == nil {
		return
	}
	c.providerFailures.WithLabelValues(provider).Inc()
}

// IncMemoryFailure counts one memory subsystem failure.
func (c *Collector) IncMemoryFailure() {
	if c == nil {
		return
	}
	c.memoryFailures.Inc()
}

// IncTTSFailure counts one background synthesis failure.
func (c *Collector) IncTTSFailure() {
	if c == nil {
		return
	}
	c.ttsFailures.Inc()
}

// IncTTSCache counts one artifact cache lookup. result is "hit" or "miss".
func (c *Collector) IncTTSCache(result string) {
	if c == nil {
		return
	}
	c.ttsCache.WithLabelValues(result).Inc()
}

// IncStateTransition counts one agent state machine transition.
func (c *Collector) IncStateTransition(from, to string) {
	if c == nil {
		return
	}
	c.stateTransitions.WithLabelValues(from, to).Inc()
}

// ObserveHTTP records one handled HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, seconds float64) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
