package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a single rate-limit check. It is produced fresh
// per call and has the same shape regardless of which backend served it.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the request cap the decision was evaluated against.
	Limit int

	// Remaining is the number of requests left in the window, never negative.
	Remaining int

	// ResetAt is the absolute time at which the window resets.
	ResetAt time.Time
}

// Limiter is implemented by every backend. Callers normally use the
// RateLimiter facade instead of a backend directly.
type Limiter interface {
	// Check records one request for id and reports whether it is allowed
	// within the given window and cap.
	Check(ctx context.Context, id string, window time.Duration, max int) (Decision, error)

	// Close releases backend resources. It is a no-op for backends that
	// hold none.
	Close() error
}

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// BackendError represents a failed operation against a remote backend.
type BackendError struct {
	Provider  Provider
	Operation string
	Err       error
}

func (e *BackendError) Error() string {
	return "ratelimit " + e.Provider.String() + " error in " + e.Operation + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
