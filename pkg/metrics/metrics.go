// Package metrics defines the Prometheus collectors used by the context
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Selection outcomes used as the "outcome" label of SelectionsTotal.
const (
	OutcomeSelected = "selected"
	OutcomeNoTerms  = "no_terms"
	OutcomeNoData   = "no_data"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitedTotal     prometheus.Counter

	SelectionsTotal    *prometheus.CounterVec
	SelectionLatency   prometheus.Histogram
	SelectedRecords    prometheus.Histogram
	CandidateRecords   prometheus.Histogram
	RawMatchesCount    prometheus.Histogram
	RawScanFailures    prometheus.Counter
	CorpusRecords      prometheus.Gauge
	CorpusVersion      prometheus.Gauge
	CorpusReloadsTotal *prometheus.CounterVec

	AnalyticsDropped    prometheus.Counter
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg falls
// back to the process-wide default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the per-client rate limiter.",
			},
		),
		SelectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "context_selections_total",
				Help: "Context selections by outcome (selected, no_terms, no_data).",
			},
			[]string{"outcome"},
		),
		SelectionLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "context_selection_latency_seconds",
				Help:    "End-to-end latency of one context selection.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		SelectedRecords: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "context_selected_records",
				Help:    "Records included in the rendered context.",
				Buckets: []float64{0, 10, 25, 50, 75, 100, 150, 200},
			},
		),
		CandidateRecords: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "context_candidate_records",
				Help:    "Records with a positive relevance score per query.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		RawMatchesCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "context_raw_matches",
				Help:    "Identifiers found by the raw store scan per query.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		RawScanFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "context_raw_scan_failures_total",
				Help: "Raw store scans that degraded to an empty match set.",
			},
		),
		CorpusRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_records",
				Help: "Records in the currently published corpus snapshot.",
			},
		),
		CorpusVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_version",
				Help: "Version of the currently published corpus snapshot.",
			},
		),
		CorpusReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_reloads_total",
				Help: "Corpus reloads by status (ok, error) and retried source loads (retry).",
			},
			[]string{"status"},
		),
		AnalyticsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Selection events dropped because the collector buffer was full.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RateLimitedTotal,
		m.SelectionsTotal,
		m.SelectionLatency,
		m.SelectedRecords,
		m.CandidateRecords,
		m.RawMatchesCount,
		m.RawScanFailures,
		m.CorpusRecords,
		m.CorpusVersion,
		m.CorpusReloadsTotal,
		m.AnalyticsDropped,
		m.CircuitBreakerState,
	)

	return m
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
