// Package metrics defines the Prometheus collectors used across groupstats
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	GroupMeRequestsTotal *prometheus.CounterVec
	MessagesFetchedTotal prometheus.Counter
	MessagesCached       *prometheus.GaugeVec
	CircuitBreakerState  *prometheus.GaugeVec

	ReconstructRunsTotal    *prometheus.CounterVec
	ReconstructCandidates   prometheus.Histogram
	ReconstructPeakFrontier prometheus.Histogram
	ReconstructDuration     prometheus.Histogram
	CandidateCacheHits      prometheus.Counter
	CandidateCacheMisses    prometheus.Counter
	CandidatesPublished     prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewWithRegistry creates all collectors and registers them with reg. When
// reg is also a Gatherer, Handler serves it.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
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
		GroupMeRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groupme_requests_total",
				Help: "GroupMe API requests by endpoint and status code.",
			},
			[]string{"endpoint", "status"},
		),
		MessagesFetchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "groupme_messages_fetched_total",
				Help: "Messages downloaded from the GroupMe API.",
			},
		),
		MessagesCached: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "messages_cached",
				Help: "Messages held in the on-disk cache per group.",
			},
			[]string{"group_id"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		ReconstructRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconstruct_runs_total",
				Help: "Phrase reconstruction runs by outcome (complete, truncated, cancelled).",
			},
			[]string{"outcome"},
		),
		ReconstructCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reconstruct_candidates",
				Help:    "Candidates emitted per reconstruction run.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		ReconstructPeakFrontier: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reconstruct_peak_frontier",
				Help:    "Largest frontier observed per reconstruction run.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 12),
			},
		),
		ReconstructDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reconstruct_duration_seconds",
				Help:    "Reconstruction run latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
		),
		CandidateCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "candidate_cache_hits_total",
				Help: "Reconstruction results served from Redis.",
			},
		),
		CandidateCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "candidate_cache_misses_total",
				Help: "Reconstruction results that had to be computed.",
			},
		),
		CandidatesPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "candidates_published_total",
				Help: "Candidate events written to Kafka.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.GroupMeRequestsTotal,
		m.MessagesFetchedTotal,
		m.MessagesCached,
		m.CircuitBreakerState,
		m.ReconstructRunsTotal,
		m.ReconstructCandidates,
		m.ReconstructPeakFrontier,
		m.ReconstructDuration,
		m.CandidateCacheHits,
		m.CandidateCacheMisses,
		m.CandidatesPublished,
	)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// NewProcess creates collectors on a fresh registry that also carries the
// Go runtime and process collectors.
func NewProcess() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// Handler serves the registry m was created with, or the default one.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
