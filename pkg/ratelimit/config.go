package ratelimit

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default limits applied when configuration leaves them unset.
const (
	DefaultWindow      = time.Minute
	DefaultMaxRequests = 10
)

// Provider identifies which backend serves rate-limit checks.
type Provider int

const (
	// ProviderMemory is the in-process fixed-window counter.
	ProviderMemory Provider = iota

	// ProviderRedis is the atomic fixed-window counter backed by a Redis
	// connection.
	ProviderRedis

	// ProviderUpstash is the sliding-window limiter backed by an HTTP
	// key-value store.
	ProviderUpstash
)

// String returns the provider name used in logs and metric labels.
func (p Provider) String() string {
	switch p {
	case ProviderRedis:
		return "redis"
	case ProviderUpstash:
		return "upstash"
	default:
		return "memory"
	}
}

// Config holds configuration for the rate limiter facade and its backends.
type Config struct {
	// RedisURL is the TCP store address. When present it selects the Redis
	// backend regardless of the HTTP settings.
	RedisURL string

	// UpstashURL and UpstashToken are the HTTP store credentials. Both must
	// be present to select the Upstash backend; a partial pair falls back to
	// the in-process backend.
	UpstashURL   string
	UpstashToken string

	// Window is the default limiting window applied by Check.
	Window time.Duration

	// MaxRequests is the default request cap applied by Check.
	MaxRequests int

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock

	// Logger receives background-failure reports. If nil, slog.Default is used.
	Logger *slog.Logger
}

// DefaultConfig returns a configuration that selects the in-process backend
// with the default window and cap.
func DefaultConfig() Config {
	return Config{
		Window:      DefaultWindow,
		MaxRequests: DefaultMaxRequests,
		Clock:       SystemClock{},
	}
}

// ConfigFromEnv builds a Config from the environment, loading a .env file
// first when one exists. Malformed numeric values silently fall back to the
// defaults; missing store credentials resolve to the in-process backend
// rather than an error.
//
// Recognized variables: REDIS_URL, UPSTASH_REDIS_REST_URL,
// UPSTASH_REDIS_REST_TOKEN, RATE_LIMIT_WINDOW_MS, RATE_LIMIT_MAX_REQUESTS.
func ConfigFromEnv() Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.RedisURL = getEnv("REDIS_URL", "")
	cfg.UpstashURL = getEnv("UPSTASH_REDIS_REST_URL", "")
	cfg.UpstashToken = getEnv("UPSTASH_REDIS_REST_TOKEN", "")

	if ms, err := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_MS", "")); err == nil && ms > 0 {
		cfg.Window = time.Duration(ms) * time.Millisecond
	}
	if max, err := strconv.Atoi(getEnv("RATE_LIMIT_MAX_REQUESTS", "")); err == nil && max > 0 {
		cfg.MaxRequests = max
	}

	return cfg
}

// DetectProvider picks exactly one backend from the configuration. The
// priority is fixed: Redis when its URL is set, else Upstash when both HTTP
// credentials are set, else the in-process backend. Missing or partial
// configuration never raises an error; silent fallback is intended.
func DetectProvider(cfg Config) Provider {
	if strings.TrimSpace(cfg.RedisURL) != "" {
		return ProviderRedis
	}
	if strings.TrimSpace(cfg.UpstashURL) != "" && strings.TrimSpace(cfg.UpstashToken) != "" {
		return ProviderUpstash
	}
	return ProviderMemory
}

// applyConfigDefaults sets default values for unspecified config fields.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
