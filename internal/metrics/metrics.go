// Package metrics registers the Prometheus metrics used by the coordinator,
// the cache hierarchy and the HTTP server. Metrics are registered on import
// so the /metrics handler sees them before the first request.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Generation-level counters and histograms.
var (
	// GenerationsTotal counts terminal outcomes labelled by task and outcome
	// ("success", "retryable", "non_retryable", "configuration").
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveycoder_generations_total",
			Help: "Total generation requests by task and outcome.",
		},
		[]string{"task", "outcome"},
	)

	// GenerationCost accumulates estimated spend in USD per model.
	GenerationCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveycoder_estimated_cost_usd_total",
			Help: "Estimated USD spent on billed steps, by model.",
		},
		[]string{"model"},
	)

	// DegradedSteps counts optional steps that failed without failing the
	// request, by step ("language", "translate", "context", "secondary").
	DegradedSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveycoder_degraded_steps_total",
			Help: "Optional pipeline steps that failed and were skipped.",
		},
		[]string{"step"},
	)

	// FallbackAttempts counts fallback-model attempts, by outcome.
	FallbackAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveycoder_fallback_attempts_total",
			Help: "Fallback-model attempts after a retryable primary failure.",
		},
		[]string{"outcome"},
	)
)

// Provider-level metrics.
var (
	// ProviderDuration observes provider call latency in seconds.
	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surveycoder_provider_duration_seconds",
			Help:    "Provider call duration in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	// ProviderErrors counts provider failures by error kind ("auth",
	// "rate_limit", "transient", "quota", "malformed", "circuit_open").
	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveycoder_provider_errors_total",
			Help: "Total provider errors by kind.",
		},
		[]string{"provider", "kind"},
	)

	// TokensInput counts input units sent to providers.
	TokensInput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveycoder_tokens_input_total",
			Help: "Total input units sent to providers.",
		},
		[]string{"provider", "model"},
	)

	// TokensOutput counts output units received from providers.
	TokensOutput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveycoder_tokens_output_total",
			Help: "Total output units received from providers.",
		},
		[]string{"provider", "model"},
	)

	// CircuitBreakerState tracks per-model breaker state:
	// 0 = closed, 1 = open, 2 = half_open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "surveycoder_circuit_breaker_state",
			Help: "Circuit breaker state per model (0=closed 1=open 2=half_open).",
		},
		[]string{"model"},
	)
)

// Cache metrics.
var (
	// CacheLookups counts lookups by namespace and serving tier ("whitelist",
	// "memory", "durable", "miss").
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveycoder_cache_lookups_total",
			Help: "Cache lookups by namespace and serving tier.",
		},
		[]string{"namespace", "tier"},
	)

	// CacheDurableErrors counts swallowed durable-tier failures by operation
	// ("get", "set", "decode", "encode", "sweep").
	CacheDurableErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveycoder_cache_durable_errors_total",
			Help: "Durable cache tier failures absorbed by the hierarchy.",
		},
		[]string{"op"},
	)

	// CacheSwept counts entries removed by maintenance, by tier.
	CacheSwept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveycoder_cache_swept_total",
			Help: "Expired cache entries removed by maintenance sweeps.",
		},
		[]string{"tier"},
	)
)

// RateLimitRejections counts HTTP requests rejected by the per-IP limiter.
var RateLimitRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "surveycoder_rate_limit_rejections_total",
		Help: "Total requests rejected by rate limiting.",
	},
	[]string{"key_type"},
)
