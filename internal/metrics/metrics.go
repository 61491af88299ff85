// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache Store
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headlines_cache_hits_total",
			Help: "Total number of cache hits by logical key",
		},
		[]string{"key"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headlines_cache_misses_total",
			Help: "Total number of cache misses by logical key",
		},
		[]string{"key"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headlines_cache_evictions_total",
			Help: "Total number of evicted cache entries",
		},
		[]string{"reason"}, // "expired", "deleted", "cleared"
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headlines_cache_entries",
			Help: "Current number of cache entries",
		},
	)

	// Provider adapters
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headlines_provider_requests_total",
			Help: "Provider fetches by outcome",
		},
		[]string{"provider", "outcome"}, // "success", "cached", "error", "unconfigured", "rejected"
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "headlines_provider_request_duration_seconds",
			Help:    "Duration of upstream provider requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "headlines_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// Aggregator
	Aggregations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headlines_aggregations_total",
			Help: "Aggregate calls by outcome",
		},
		[]string{"outcome"}, // "complete", "partial", "failed", "cancelled"
	)

	DuplicateArticles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "headlines_duplicate_articles_total",
			Help: "Articles dropped because an earlier provider returned the same URL",
		},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headlines_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "headlines_api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordAPIRequest records one served HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
