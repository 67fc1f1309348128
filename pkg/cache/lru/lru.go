package lru

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/guardrail-dev/guardrail/pkg/metrics"
)

const (
	// DefaultMaxSize is the entry capacity used when none is configured.
	DefaultMaxSize = 1000

	// DefaultTTL is the per-entry lifetime used when none is configured.
	DefaultTTL = 60 * time.Second
)

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

// entry is the value stored in the recency list elements.
// The key is kept here because eviction starts from list nodes.
type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a concurrency-safe bounded cache with LRU eviction and TTL expiry.
//
// Invariants after any public operation returns:
//   - Len() <= maxSize
//   - the recency list is ordered most-recently-used first
//   - an expired entry is never returned; lookups remove it as a side effect
type Cache[V any] struct {
	mu sync.Mutex

	maxSize int
	ttl     time.Duration
	clock   Clock

	items map[string]*list.Element
	order *list.List // Front = most recently used, Back = least recently used

	name     string
	registry *metrics.Registry
}

// Option configures optional Cache behavior.
type Option[V any] func(*Cache[V])

// WithClock replaces the time source, useful for tests.
func WithClock[V any](clock Clock) Option[V] {
	return func(c *Cache[V]) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetrics enables Prometheus instrumentation under the given cache name.
// A nil registry uses the package default.
func WithMetrics[V any](name string, registry *metrics.Registry) Option[V] {
	return func(c *Cache[V]) {
		if registry == nil {
			registry = metrics.DefaultRegistry
		}
		c.name = name
		c.registry = registry
	}
}

// New creates a cache holding at most maxSize entries, each valid for ttl
// after its last Set. Non-positive maxSize or ttl fall back to the defaults.
func New[V any](maxSize int, ttl time.Duration, opts ...Option[V]) *Cache[V] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &Cache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		clock:   SystemClock{},
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the live value for key. An expired entry is removed and
// reported as a miss. A hit refreshes the entry's recency.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	el, ok := c.items[key]
	if !ok {
		c.miss()
		return zero, false
	}

	e := el.Value.(*entry[V])
	if !e.expiresAt.After(c.clock.Now()) {
		c.removeLocked(el)
		c.miss()
		return zero, false
	}

	c.order.MoveToFront(el)
	c.hit()
	return e.value, true
}

// Set inserts or overwrites key with a fresh expiry. Overwriting refreshes
// recency. If inserting a new key pushes the cache above capacity, the single
// oldest entry is evicted first.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)

	if el, ok := c.items[key]; ok {
		// Remove and re-insert so an overwrite counts as use.
		c.removeLocked(el)
	}

	if len(c.items) >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
			c.eviction()
		}
	}

	el := c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el
	c.reportSize()
}

// Delete removes key if present and reports whether it existed.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeLocked(el)
	return true
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns the number removed. It is used to invalidate a class of related
// entries without enumerating exact keys.
func (c *Cache[V]) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if strings.HasPrefix(el.Value.(*entry[V]).key, prefix) {
			c.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.reportSize()
}

// Len returns the current entry count, including entries that have expired
// but not yet been reclaimed by a lookup.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[V]) removeLocked(el *list.Element) {
	delete(c.items, el.Value.(*entry[V]).key)
	c.order.Remove(el)
	c.reportSize()
}

func (c *Cache[V]) hit() {
	if c.registry != nil {
		c.registry.CacheHits.WithLabelValues(c.name).Inc()
	}
}

func (c *Cache[V]) miss() {
	if c.registry != nil {
		c.registry.CacheMisses.WithLabelValues(c.name).Inc()
	}
}

func (c *Cache[V]) eviction() {
	if c.registry != nil {
		c.registry.CacheEvictions.WithLabelValues(c.name).Inc()
	}
}

func (c *Cache[V]) reportSize() {
	if c.registry != nil {
		c.registry.CacheSize.WithLabelValues(c.name).Set(float64(len(c.items)))
	}
}
