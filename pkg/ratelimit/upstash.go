package ratelimit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	gerrors "github.com/guardrail-dev/guardrail/pkg/common/errors"
)

// Lua script for the sliding-window check. It runs server-side against the
// HTTP key-value store, which keeps the window bookkeeping remote: the reply
// already carries the verdict, the remaining budget, and the absolute reset
// time, so the client maps it onto a Decision with no further arithmetic.
const luaSlidingWindowCheck = `
-- KEYS[1]: current window counter
-- KEYS[2]: previous window counter
-- ARGV[1]: max requests
-- ARGV[2]: window length (milliseconds)
-- ARGV[3]: current time (milliseconds)

local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local curr = tonumber(redis.call('GET', KEYS[1]) or '0')
local prev = tonumber(redis.call('GET', KEYS[2]) or '0')

local elapsed = now % window
local weighted = math.floor(prev * (window - elapsed) / window) + curr
local reset = now - elapsed + window

if weighted >= max then
    return {0, 0, reset}
end

redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], window * 2)

local remaining = max - weighted - 1
if remaining < 0 then
    remaining = 0
end
return {1, remaining, reset}
`

const upstashRequestTimeout = 5 * time.Second

// upstashLimiter delegates sliding-window limiting to an HTTP key-value
// store speaking the Upstash REST protocol: one JSON command array per POST,
// bearer-token auth, a {"result": ...} or {"error": ...} reply.
//
// The window/cap pair is fixed at configuration time; per-call overrides are
// ignored by this backend.
type upstashLimiter struct {
	url    string
	token  string
	window time.Duration
	max    int
	clock  Clock
	logger *slog.Logger

	// The HTTP client is set up lazily on first use and shared for the
	// process lifetime.
	once   sync.Once
	client *http.Client

	// analytics tracks the fire-and-forget usage recording goroutines so
	// Close can drain them in tests.
	analytics sync.WaitGroup
}

func newUpstashLimiter(cfg Config) *upstashLimiter {
	return &upstashLimiter{
		url:    cfg.UpstashURL,
		token:  cfg.UpstashToken,
		window: cfg.Window,
		max:    cfg.MaxRequests,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}
}

func (u *upstashLimiter) httpClient() *http.Client {
	u.once.Do(func() {
		u.client = &http.Client{Timeout: upstashRequestTimeout}
	})
	return u.client
}

// Check evaluates id against the configured sliding window. The window and
// max arguments are accepted to satisfy Limiter but the backend keeps the
// pair it was configured with.
func (u *upstashLimiter) Check(ctx context.Context, id string, _ time.Duration, _ int) (Decision, error) {
	now := u.clock.Now()
	windowMillis := u.window.Milliseconds()
	index := now.UnixMilli() / windowMillis

	currKey := fmt.Sprintf("rl:slide:%s:%d", id, index)
	prevKey := fmt.Sprintf("rl:slide:%s:%d", id, index-1)

	reply, err := u.execute(ctx, []interface{}{
		"EVAL", luaSlidingWindowCheck, "2", currKey, prevKey,
		strconv.Itoa(u.max),
		strconv.FormatInt(windowMillis, 10),
		strconv.FormatInt(now.UnixMilli(), 10),
	})
	if err != nil {
		return Decision{}, err
	}

	var values []int64
	if err := json.Unmarshal(reply, &values); err != nil || len(values) != 3 {
		return Decision{}, &BackendError{
			Provider:  ProviderUpstash,
			Operation: "check",
			Err:       fmt.Errorf("unexpected reply %s", reply),
		}
	}

	dec := Decision{
		Allowed:   values[0] == 1,
		Limit:     u.max,
		Remaining: int(values[1]),
		ResetAt:   time.UnixMilli(values[2]),
	}

	u.recordUsage(id, dec.Allowed)

	return dec, nil
}

// Close waits for in-flight usage recordings. The HTTP client itself holds
// no connection state worth tearing down.
func (u *upstashLimiter) Close() error {
	u.analytics.Wait()
	return nil
}

var _ Limiter = (*upstashLimiter)(nil)

// recordUsage writes a per-identifier usage counter from a background
// goroutine. A failure here is logged and discarded; it must never fail or
// delay the primary rate-limit decision.
func (u *upstashLimiter) recordUsage(id string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}

	u.analytics.Add(1)
	go func() {
		defer u.analytics.Done()

		ctx, cancel := context.WithTimeout(context.Background(), upstashRequestTimeout)
		defer cancel()

		if _, err := u.execute(ctx, []interface{}{"INCR", "rl:usage:" + outcome}); err != nil {
			u.logger.Warn("rate limit usage recording failed",
				"id", id, "outcome", outcome, "error", err)
		}
	}()
}

// execute posts a single command array and returns the raw result payload.
func (u *upstashLimiter) execute(ctx context.Context, command []interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(command)
	if err != nil {
		return nil, &BackendError{Provider: ProviderUpstash, Operation: "encode", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(body))
	if err != nil {
		return nil, &BackendError{Provider: ProviderUpstash, Operation: "request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+u.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.httpClient().Do(req)
	if err != nil {
		return nil, &BackendError{
			Provider:  ProviderUpstash,
			Operation: "request",
			Err:       fmt.Errorf("%w: %w", gerrors.ErrBackendUnavailable, err),
		}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{Provider: ProviderUpstash, Operation: "read", Err: err}
	}

	var parsed struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &BackendError{
			Provider:  ProviderUpstash,
			Operation: "decode",
			Err:       fmt.Errorf("status %d: %w", resp.StatusCode, err),
		}
	}
	if parsed.Error != "" {
		return nil, &BackendError{
			Provider:  ProviderUpstash,
			Operation: "command",
			Err:       fmt.Errorf("%s", parsed.Error),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{
			Provider:  ProviderUpstash,
			Operation: "command",
			Err:       fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return parsed.Result, nil
}
