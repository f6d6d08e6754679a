// Package metrics provides Prometheus metrics for the chatbot
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "businessops"

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing, so
// components can take one unconditionally.
type Metrics struct {
	// Routing and chain metrics
	RoutesTotal         *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	ChainFailuresTotal  *prometheus.CounterVec
	LLMCallsTotal       *prometheus.CounterVec
	QueriesInFlight     prometheus.Gauge
	MatcherProfilesSize prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them on reg. A nil reg uses
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{}

	m.RoutesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_total",
			Help:      "Total number of routed queries by pipeline",
		},
		[]string{"route"},
	)

	m.StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_stage_duration_seconds",
			Help:      "Duration of structured chain stages in seconds",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	m.ChainFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_failures_total",
			Help:      "Total number of structured chain failures by stage",
		},
		[]string{"stage"},
	)

	m.LLMCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Total number of language model calls by outcome",
		},
		[]string{"model", "outcome"},
	)

	m.QueriesInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queries_in_flight",
			Help:      "Number of queries currently being processed",
		},
	)

	m.MatcherProfilesSize = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matcher_profiles",
			Help:      "Number of candidate profiles in the vector index",
		},
	)

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return m
}

// ObserveRoute counts a routing decision.
func (m *Metrics) ObserveRoute(route string) {
	if m == nil {
		return
	}
	m.RoutesTotal.WithLabelValues(route).Inc()
}

// ObserveStage records a chain stage. It satisfies sqlchain.StageObserver.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		m.ChainFailuresTotal.WithLabelValues(stage).Inc()
	}
}

// ObserveLLMCall counts a model call. It satisfies llm.CallObserver.
func (m *Metrics) ObserveLLMCall(model, outcome string) {
	if m == nil {
		return
	}
	m.LLMCallsTotal.WithLabelValues(model, outcome).Inc()
}

// QueryStarted marks a query in flight and returns the function ending it.
func (m *Metrics) QueryStarted() func() {
	if m == nil {
		return func() {}
	}
	m.QueriesInFlight.Inc()
	return m.QueriesInFlight.Dec
}

// SetIndexedProfiles records the size of the profile index.
func (m *Metrics) SetIndexedProfiles(n int) {
	if m == nil {
		return
	}
	m.MatcherProfilesSize.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request with its status.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
