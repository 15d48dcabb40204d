// Package metrics provides Prometheus metrics for the MEGAcmd runtime.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tool invocation metrics
	invocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "megacmd_invocations_total",
			Help: "Total number of external tool invocations",
		},
		[]string{"command", "result"},
	)

	invocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "megacmd_invocation_duration_seconds",
			Help:    "External tool invocation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"command"},
	)

	// Directory cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "megacmd_cache_lookups_total",
			Help: "Directory cache lookups by result (hit, miss, stale, forced)",
		},
		[]string{"result"},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "megacmd_cache_entries",
			Help: "Number of cached directory listings",
		},
	)

	skippedLinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "megacmd_parser_skipped_lines_total",
			Help: "Unparsable output lines skipped by the parser",
		},
		[]string{"format"},
	)

	// Dispatcher metrics
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "megacmd_operations_total",
			Help: "Dispatched operations by kind and result",
		},
		[]string{"kind", "result"},
	)

	lockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "megacmd_lock_wait_seconds",
			Help:    "Time operations spend waiting for path locks",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Transfer monitor metrics
	transfersByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "megacmd_transfers",
			Help: "Tracked transfers by state",
		},
		[]string{"state"},
	)

	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "megacmd_transfer_polls_total",
			Help: "Transfer poll cycles by result (ok, error, skipped)",
		},
		[]string{"result"},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "megacmd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordInvocation records one external tool invocation.
func RecordInvocation(command, result string, duration time.Duration) {
	invocationsTotal.WithLabelValues(command, result).Inc()
	invocationDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordCacheLookup records a directory cache lookup.
func RecordCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// SetCacheEntries sets the number of cached listings.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// RecordSkippedLines records lines skipped by the parser.
func RecordSkippedLines(format string, n int) {
	if n > 0 {
		skippedLinesTotal.WithLabelValues(format).Add(float64(n))
	}
}

// RecordOperation records a dispatched operation.
func RecordOperation(kind, result string) {
	operationsTotal.WithLabelValues(kind, result).Inc()
}

// RecordLockWait records how long an operation waited for its locks.
func RecordLockWait(d time.Duration) {
	lockWaitDuration.Observe(d.Seconds())
}

// SetTransferCounts replaces the per-state transfer gauges.
func SetTransferCounts(counts map[string]int) {
	transfersByState.Reset()
	for state, n := range counts {
		transfersByState.WithLabelValues(state).Set(float64(n))
	}
}

// RecordPoll records a transfer poll cycle.
func RecordPoll(result string) {
	pollsTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
