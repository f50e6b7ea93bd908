// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequests counts recommendation provider calls by outcome
	// ("ok", "empty", "error", "rate_limited").
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyager_provider_requests_total",
			Help: "Total recommendation provider requests by outcome",
		},
		[]string{"provider", "outcome"},
	)

	// RateLimitWaitSeconds observes time spent waiting for a sliding-window slot.
	RateLimitWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voyager_ratelimit_wait_seconds",
			Help:    "Time callers spent waiting for a provider rate-limit slot",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60},
		},
		[]string{"provider"},
	)

	// RateLimitRejections counts acquisitions refused by the daily cap.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyager_ratelimit_daily_cap_rejections_total",
			Help: "Total provider calls refused because the daily cap was reached",
		},
		[]string{"provider"},
	)

	// CatalogCacheLookups counts catalog detail lookups by result ("hit", "miss", "absent").
	CatalogCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyager_catalog_cache_lookups_total",
			Help: "Catalog detail cache lookups by result",
		},
		[]string{"kind", "result"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "voyager_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// RecommendationOutcomes counts finished pipeline runs
	// ("recommended", "no_profile", "exhausted", "not_found", "error").
	RecommendationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyager_recommendation_outcomes_total",
			Help: "Recommendation pipeline results by outcome",
		},
		[]string{"kind", "outcome"},
	)

	// RecommendationAttempts observes how many whole-pipeline attempts a request used.
	RecommendationAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voyager_recommendation_attempts",
			Help:    "Pipeline attempts (retry depth + 1) per recommendation request",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
		[]string{"kind"},
	)
)
