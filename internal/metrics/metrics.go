// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Recommendation pipeline latency and outcomes
// - Vocabulary snapshot builds
// - Database query performance (DuckDB)
// - API endpoint latency and throughput
// - Circuit breaker state

var (
	// Recommendation Metrics
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total recommendation requests by serving method",
		},
		[]string{"method"}, // "hybrid", "fallback"
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	PrimaryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_primary_failures_total",
			Help: "Primary pipeline failures that triggered the fallback",
		},
		[]string{"reason"}, // "timeout", "worker", "breaker_open"
	)

	RecommendationCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cache_hits_total",
			Help: "Total recommendation response cache hits",
		},
	)

	RecommendationCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cache_misses_total",
			Help: "Total recommendation response cache misses",
		},
	)

	// Vocabulary / Model Metrics
	VocabularyVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vocabulary_snapshot_version",
			Help: "Version of the currently published vocabulary snapshot",
		},
	)

	VocabularyDimensions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vocabulary_dimensions",
			Help: "Dimension count of the published vocabulary",
		},
	)

	VocabularyBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vocabulary_build_duration_seconds",
			Help:    "Duration of vocabulary snapshot rebuilds in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ModelRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_refreshes_total",
			Help: "Total model refresh attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "skipped"
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"name", "outcome"}, // "success", "failure", "rejected"
	)
)

// ObserveDBQuery records a database query duration and any error.
func ObserveDBQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// ObserveHTTPRequest records a completed HTTP request.
func ObserveHTTPRequest(method, path string, status int, start time.Time) {
	HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}
