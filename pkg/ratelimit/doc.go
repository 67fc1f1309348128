// Package ratelimit provides request throttling with pluggable backends.
//
// Three backends implement the same check contract:
//
//   - memory: an in-process fixed-window counter, the zero-dependency
//     fallback. State is local to the process, so horizontally scaled
//     deployments under-enforce limits.
//   - redis: an atomic fixed-window counter executing a single Lua script per
//     check. The only backend with cross-instance-consistent counting.
//   - upstash: a sliding-window limiter delegating window bookkeeping to an
//     HTTP key-value store.
//
// The backends intentionally implement different window algorithms. The
// fixed-window backends allow bursts at window boundaries; the sliding-window
// backend does not. Callers observe the boundary behavior of whichever
// backend configuration selects.
//
// RateLimiter is the facade callers use. It resolves the backend from
// configuration on every check and hides lazy connection setup:
//
//	limiter := ratelimit.New(ratelimit.ConfigFromEnv())
//	defer limiter.Close()
//
//	dec, err := limiter.Check(ctx, clientIP+":"+path)
//	if err != nil {
//		// backend unreachable: the error is surfaced, never silently
//		// redirected to another backend
//	}
//	if !dec.Allowed {
//		// respond 429
//	}
package ratelimit
