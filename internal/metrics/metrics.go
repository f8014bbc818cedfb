// Package metrics holds the Prometheus collectors exported by the oracle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes of a single source attempt.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeInvalid     = "invalid"
	OutcomeUnsupported = "unsupported"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	sourceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricefeed",
			Subsystem: "source",
			Name:      "fetches_total",
			Help:      "Price fetch attempts per source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	sourceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pricefeed",
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of price fetch attempts per source.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"source"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricefeed",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Price cache lookups by result.",
		},
		[]string{"result"},
	)

	fetchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pricefeed",
			Subsystem: "oracle",
			Name:      "exhausted_total",
			Help:      "Fetches where every configured source failed.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricefeed",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		sourceFetches,
		sourceDuration,
		cacheLookups,
		fetchFailures,
		httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveSourceFetch records one attempt against a source.
func ObserveSourceFetch(source, outcome string, d time.Duration) {
	sourceFetches.WithLabelValues(source, outcome).Inc()
	sourceDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveCacheLookup records a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}

// ObserveExhausted records a fetch where no source produced a price.
func ObserveExhausted() {
	fetchFailures.Inc()
}

// ObserveHTTPRequest records a served API request.
func ObserveHTTPRequest(route string, status int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// SourceFetches returns the counter for source/outcome, for tests and diagnostics.
func SourceFetches(source, outcome string) prometheus.Counter {
	return sourceFetches.WithLabelValues(source, outcome)
}

// HTTPRequests returns the request counter for route and status.
func HTTPRequests(route string, status int) prometheus.Counter {
	return httpRequests.WithLabelValues(route, strconv.Itoa(status))
}

// CacheLookups returns the counter for hit ("hit") or miss ("miss").
func CacheLookups(result string) prometheus.Counter {
	return cacheLookups.WithLabelValues(result)
}
