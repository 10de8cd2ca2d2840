package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request latency (seconds).
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// LLM gateway call latency (milliseconds).
	AICallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_call_latency_ms",
			Help:    "LLM gateway call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"operation", "status"},
	)

	// Database query latency (seconds).
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	// Slow queries over the tracer threshold.
	SlowQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Number of queries slower than the configured threshold",
		},
		[]string{"sql"},
	)

	// Deliverable lifecycle transitions by outcome.
	DeliverableTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliverable_transitions_total",
			Help: "Deliverable lifecycle transitions",
		},
		[]string{"transition", "outcome"},
	)

	// Summary cache hits and misses.
	SummaryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summary_cache_total",
			Help: "Project summary cache lookups",
		},
		[]string{"result"},
	)
)

// RecordAICallLatency records one LLM gateway round trip.
func RecordAICallLatency(operation, status string, d time.Duration) {
	AICallLatency.WithLabelValues(operation, status).Observe(float64(d.Milliseconds()))
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Observe(d.Seconds())
}

// IncrementSlowQuery counts a slow query occurrence.
func IncrementSlowQuery(sql string, _ time.Duration) {
	SlowQueryTotal.WithLabelValues(sql).Inc()
}

// RecordTransition counts a deliverable state transition.
func RecordTransition(transition, outcome string) {
	DeliverableTransitions.WithLabelValues(transition, outcome).Inc()
}

// RecordSummaryCache counts a summary cache lookup result (hit, miss).
func RecordSummaryCache(result string) {
	SummaryCacheTotal.WithLabelValues(result).Inc()
}
