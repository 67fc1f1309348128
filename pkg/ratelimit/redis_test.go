package ratelimit

import (
	"testing"
	"time"

	"github.com/guardrail-dev/guardrail/internal/testutil"
)

func TestDecisionFromCount(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name          string
		count         int64
		ttlMillis     int64
		max           int
		wantAllowed   bool
		wantRemaining int
		wantResetAt   time.Time
	}{
		{
			name:          "under cap with live ttl",
			count:         3,
			ttlMillis:     45000,
			max:           10,
			wantAllowed:   true,
			wantRemaining: 7,
			wantResetAt:   now.Add(45 * time.Second),
		},
		{
			name:          "over cap",
			count:         11,
			ttlMillis:     45000,
			max:           10,
			wantAllowed:   false,
			wantRemaining: 0,
			wantResetAt:   now.Add(45 * time.Second),
		},
		{
			name:          "at cap is still allowed",
			count:         10,
			ttlMillis:     45000,
			max:           10,
			wantAllowed:   true,
			wantRemaining: 0,
			wantResetAt:   now.Add(45 * time.Second),
		},
		{
			name:          "missing ttl defaults to window",
			count:         1,
			ttlMillis:     -1,
			max:           10,
			wantAllowed:   true,
			wantRemaining: 9,
			wantResetAt:   now.Add(time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := decisionFromCount(tt.count, tt.ttlMillis, now, time.Minute, tt.max)
			testutil.AssertEqual(t, dec.Allowed, tt.wantAllowed)
			testutil.AssertEqual(t, dec.Limit, tt.max)
			testutil.AssertEqual(t, dec.Remaining, tt.wantRemaining)
			testutil.AssertEqual(t, dec.ResetAt, tt.wantResetAt)
		})
	}
}

func TestParseCountAndTTL(t *testing.T) {
	count, ttl, err := parseCountAndTTL([]interface{}{int64(3), int64(45000)})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, count, int64(3))
	testutil.AssertEqual(t, ttl, int64(45000))

	if _, _, err := parseCountAndTTL("nope"); err == nil {
		t.Fatal("expected error for non-array reply")
	}
	if _, _, err := parseCountAndTTL([]interface{}{int64(3)}); err == nil {
		t.Fatal("expected error for short reply")
	}
	if _, _, err := parseCountAndTTL([]interface{}{"3", int64(45000)}); err == nil {
		t.Fatal("expected error for mistyped count")
	}
}

func TestRedisConnectRejectsMalformedURL(t *testing.T) {
	limiter := newRedisLimiter("not-a-url", SystemClock{})

	_, err := limiter.connect()
	testutil.AssertError(t, err)

	// The failed creation is sticky for the process lifetime.
	_, err = limiter.connect()
	testutil.AssertError(t, err)
	testutil.AssertNoError(t, limiter.Close())
}
