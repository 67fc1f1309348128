package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	gerrors "github.com/guardrail-dev/guardrail/pkg/common/errors"
)

// Lua script for the atomic fixed-window counter: increment, arm the expiry
// on a fresh key, and read the remaining TTL in one round trip.
const luaIncrementAndExpire = `
-- KEYS[1]: counter key
-- ARGV[1]: window length (milliseconds)

local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`

// redisLimiter implements fixed-window counting with the window state held
// server-side. The Lua script executes atomically, so counting stays
// consistent across application instances.
type redisLimiter struct {
	url   string
	clock Clock

	// The client is created lazily on first use and reused for the process
	// lifetime. sync.Once guards against duplicate creation under
	// concurrent first callers.
	once    sync.Once
	client  *redis.Client
	initErr error

	script *redis.Script
}

func newRedisLimiter(url string, clock Clock) *redisLimiter {
	return &redisLimiter{
		url:    url,
		clock:  clock,
		script: redis.NewScript(luaIncrementAndExpire),
	}
}

// connect creates the shared client on first use. A single retry and no
// request buffering: a broken connection fails fast instead of queueing
// commands indefinitely.
func (r *redisLimiter) connect() (*redis.Client, error) {
	r.once.Do(func() {
		opts, err := redis.ParseURL(r.url)
		if err != nil {
			r.initErr = &BackendError{Provider: ProviderRedis, Operation: "connect", Err: err}
			return
		}
		opts.MaxRetries = 1
		r.client = redis.NewClient(opts)
	})

	if r.initErr != nil {
		return nil, r.initErr
	}
	return r.client, nil
}

// Check runs the increment-and-expire script for key "rl:"+id. A failed call
// propagates to the caller; throttling is never silently disabled by falling
// back to another backend.
func (r *redisLimiter) Check(ctx context.Context, id string, window time.Duration, max int) (Decision, error) {
	client, err := r.connect()
	if err != nil {
		return Decision{}, err
	}

	result, err := r.script.Run(ctx, client, []string{"rl:" + id}, window.Milliseconds()).Result()
	if err != nil {
		return Decision{}, &BackendError{
			Provider:  ProviderRedis,
			Operation: "check",
			Err:       fmt.Errorf("%w: %w", gerrors.ErrBackendUnavailable, err),
		}
	}

	count, ttlMillis, err := parseCountAndTTL(result)
	if err != nil {
		return Decision{}, &BackendError{Provider: ProviderRedis, Operation: "check", Err: err}
	}

	return decisionFromCount(count, ttlMillis, r.clock.Now(), window, max), nil
}

// Close tears down the lazily created connection, if one was opened.
func (r *redisLimiter) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

var _ Limiter = (*redisLimiter)(nil)

// parseCountAndTTL unpacks the script reply {count, pttl}.
func parseCountAndTTL(result interface{}) (int64, int64, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected script reply %T", result)
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected count type %T", values[0])
	}
	ttl, ok := values[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected ttl type %T", values[1])
	}
	return count, ttl, nil
}

// decisionFromCount maps a post-increment count and key TTL onto a Decision.
// A store that reports no expiry (PTTL < 0) defaults the reset to now+window.
func decisionFromCount(count, ttlMillis int64, now time.Time, window time.Duration, max int) Decision {
	resetAt := now.Add(window)
	if ttlMillis >= 0 {
		resetAt = now.Add(time.Duration(ttlMillis) * time.Millisecond)
	}

	remaining := max - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= int64(max),
		Limit:     max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
