package ratelimit

import (
	"context"
	"time"
)

// RateLimiter is the single entry point for rate-limit checks. It hides
// backend selection and lazy connection setup: the provider is resolved from
// configuration on every check (selection is cheap and configuration does
// not change at runtime), and the returned Decision has the same shape
// regardless of which backend served it.
type RateLimiter struct {
	cfg Config

	memory  *memoryLimiter
	redis   *redisLimiter
	upstash *upstashLimiter
}

// New creates a rate limiter facade. All three backends are constructed up
// front but remote connections are only established on first use.
func New(cfg Config) *RateLimiter {
	cfg = applyConfigDefaults(cfg)

	return &RateLimiter{
		cfg:     cfg,
		memory:  newMemoryLimiter(cfg.Clock),
		redis:   newRedisLimiter(cfg.RedisURL, cfg.Clock),
		upstash: newUpstashLimiter(cfg),
	}
}

// Provider reports which backend the current configuration selects.
func (rl *RateLimiter) Provider() Provider {
	return DetectProvider(rl.cfg)
}

// Check records one request for id using the configured default window and
// cap.
func (rl *RateLimiter) Check(ctx context.Context, id string) (Decision, error) {
	return rl.CheckWith(ctx, id, rl.cfg.Window, rl.cfg.MaxRequests)
}

// CheckWith records one request for id with an explicit window and cap. The
// sliding-window backend keeps its configured pair and ignores the
// overrides. A remote backend failure is returned to the caller, never
// silently redirected to another backend.
func (rl *RateLimiter) CheckWith(ctx context.Context, id string, window time.Duration, max int) (Decision, error) {
	switch DetectProvider(rl.cfg) {
	case ProviderRedis:
		return rl.redis.Check(ctx, id, window, max)
	case ProviderUpstash:
		return rl.upstash.Check(ctx, id, window, max)
	default:
		return rl.memory.Check(ctx, id, window, max)
	}
}

// Close tears down the Redis connection if one was opened and drains any
// background usage recording. It is a no-op for the in-process backend.
func (rl *RateLimiter) Close() error {
	if err := rl.upstash.Close(); err != nil {
		return err
	}
	return rl.redis.Close()
}
