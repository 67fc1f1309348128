// Package metrics provides Prometheus instrumentation for guardrail components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for guardrail components.
type Registry struct {
	// Rate Limiting Metrics
	RateLimitRequests  *prometheus.CounterVec
	RateLimitAllowed   *prometheus.CounterVec
	RateLimitDenied    *prometheus.CounterVec
	RateLimitErrors    *prometheus.CounterVec
	RateLimitRemaining *prometheus.GaugeVec

	// Cache Metrics
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	CacheSize      *prometheus.GaugeVec

	// Authorization Metrics
	AuthzStoreLookups *prometheus.CounterVec
	AuthzStoreErrors  *prometheus.CounterVec
	AuthzInvalidations *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by guardrail components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Rate Limiting Metrics
		RateLimitRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guardrail",
				Subsystem: "ratelimit",
				Name:      "requests_total",
				Help:      "Total number of rate limit checks",
			},
			[]string{"provider", "limiter_name"},
		),

		RateLimitAllowed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guardrail",
				Subsystem: "ratelimit",
				Name:      "allowed_total",
				Help:      "Total number of allowed requests",
			},
			[]string{"provider", "limiter_name"},
		),

		RateLimitDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guardrail",
				Subsystem: "ratelimit",
				Name:      "denied_total",
				Help:      "Total number of denied requests",
			},
			[]string{"provider", "limiter_name"},
		),

		RateLimitErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guardrail",
				Subsystem: "ratelimit",
				Name:      "errors_total",
				Help:      "Total number of rate limit checks that failed with a backend error",
			},
			[]string{"provider", "limiter_name"},
		),

		RateLimitRemaining: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "guardrail",
				Subsystem: "ratelimit",
				Name:      "remaining",
				Help:      "Remaining requests observed by the most recent check",
			},
			[]string{"provider", "limiter_name"},
		),

		// Cache Metrics
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guardrail",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache_name"},
		),

		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guardrail",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cache misses, including expired entries",
			},
			[]string{"cache_name"},
		),

		CacheEvictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guardrail",
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Total number of entries evicted by capacity pressure",
			},
			[]string{"cache_name"},
		),

		CacheSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "guardrail",
				Subsystem: "cache",
				Name:      "entries",
				Help:      "Current number of cached entries",
			},
			[]string{"cache_name"},
		),

		// Authorization Metrics
		AuthzStoreLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guardrail",
				Subsystem: "authz",
				Name:      "store_lookups_total",
				Help:      "Total number of authoritative store lookups on cache miss",
			},
			[]string{"lookup"},
		),

		AuthzStoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guardrail",
				Subsystem: "authz",
				Name:      "store_errors_total",
				Help:      "Total number of authoritative store lookup failures",
			},
			[]string{"lookup"},
		),

		AuthzInvalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guardrail",
				Subsystem: "authz",
				Name:      "invalidations_total",
				Help:      "Total number of cache invalidations triggered by the write path",
			},
			[]string{"lookup"},
		),
	}
}
