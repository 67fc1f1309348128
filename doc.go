/*
Package guardrail provides request throttling and authorization caching for Go
services.

Rate Limiting (pkg/ratelimit):
  - In-process fixed-window counter (zero-dependency fallback)
  - Redis-backed atomic fixed-window counter for multi-instance deployments
  - Sliding-window limiter delegating to an HTTP key-value store
  - A facade that selects the backend from configuration and presents one
    contract to callers

Caching (pkg/cache/lru):
  - Generic bounded LRU cache with per-entry TTL and prefix invalidation

Authorization (pkg/authz):
  - Read-through role and permission caches shielding the authoritative store,
    with synchronous invalidation on the write path

Example usage:

	import (
		"github.com/guardrail-dev/guardrail/pkg/authz"
		"github.com/guardrail-dev/guardrail/pkg/ratelimit"
	)

	limiter := ratelimit.New(ratelimit.ConfigFromEnv())
	defer limiter.Close()

	dec, err := limiter.Check(ctx, clientIP+":"+r.URL.Path)
	if err == nil && !dec.Allowed {
		// respond 429, Retry-After dec.ResetAt
	}
*/
package guardrail
