package ratelimit

import (
	"context"
	"time"

	"github.com/guardrail-dev/guardrail/pkg/metrics"
)

// MetricsLimiter wraps a RateLimiter with Prometheus metrics collection.
type MetricsLimiter struct {
	limiter  *RateLimiter
	name     string
	registry *metrics.Registry
	enabled  bool
}

// NewWithMetrics creates a rate limiter facade with metrics enabled under
// the given name.
func NewWithMetrics(cfg Config, name string, metricsConfig metrics.Config) *MetricsLimiter {
	limiter := New(cfg)

	registry := metrics.DefaultRegistry
	if metricsConfig.Registry != nil {
		registry = metrics.NewRegistry(metricsConfig.Registry)
	}

	return &MetricsLimiter{
		limiter:  limiter,
		name:     name,
		registry: registry,
		enabled:  metricsConfig.Enabled,
	}
}

// Provider reports which backend the current configuration selects.
func (ml *MetricsLimiter) Provider() Provider {
	return ml.limiter.Provider()
}

// Check records one request for id using the configured defaults.
func (ml *MetricsLimiter) Check(ctx context.Context, id string) (Decision, error) {
	return ml.CheckWith(ctx, id, ml.limiter.cfg.Window, ml.limiter.cfg.MaxRequests)
}

// CheckWith records one request for id with an explicit window and cap.
func (ml *MetricsLimiter) CheckWith(ctx context.Context, id string, window time.Duration, max int) (Decision, error) {
	provider := ml.limiter.Provider().String()

	if ml.enabled {
		ml.registry.RateLimitRequests.WithLabelValues(provider, ml.name).Inc()
	}

	dec, err := ml.limiter.CheckWith(ctx, id, window, max)

	if ml.enabled {
		switch {
		case err != nil:
			ml.registry.RateLimitErrors.WithLabelValues(provider, ml.name).Inc()
		case dec.Allowed:
			ml.registry.RateLimitAllowed.WithLabelValues(provider, ml.name).Inc()
			ml.registry.RateLimitRemaining.WithLabelValues(provider, ml.name).Set(float64(dec.Remaining))
		default:
			ml.registry.RateLimitDenied.WithLabelValues(provider, ml.name).Inc()
			ml.registry.RateLimitRemaining.WithLabelValues(provider, ml.name).Set(float64(dec.Remaining))
		}
	}

	return dec, err
}

// Close delegates to the wrapped facade.
func (ml *MetricsLimiter) Close() error {
	return ml.limiter.Close()
}

// EnableMetrics enables metrics collection.
func (ml *MetricsLimiter) EnableMetrics(config metrics.Config) error {
	ml.enabled = config.Enabled
	if config.Registry != nil {
		ml.registry = metrics.NewRegistry(config.Registry)
	}
	return nil
}

// DisableMetrics disables metrics collection.
func (ml *MetricsLimiter) DisableMetrics() {
	ml.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (ml *MetricsLimiter) MetricsEnabled() bool {
	return ml.enabled
}
