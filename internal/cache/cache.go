package cache

import (
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/dshills/mindmup-mcp/internal/metrics"
)

const (
	// DefaultTTL is how long an entry stays valid after insertion
	DefaultTTL = 300 * time.Second

	// DefaultCapacity is the maximum number of entries kept
	DefaultCapacity = 100
)

var ErrInvalidCapacity = errors.New("cache capacity must be positive")

// entry is a cached value with its insertion time
type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Cache is a TTL plus capacity bounded cache keyed by document id.
//
// Reads never refresh recency, so when the cache is full the entry inserted
// (or replaced) longest ago is evicted first. Every operation, including the
// cleanup triggered by Put, runs in a single critical section.
type Cache[V any] struct {
	mu       sync.Mutex
	items    *lru.Cache[string, *entry[V]]
	ttl      time.Duration
	capacity int
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Cache
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *zap.Logger
}

// WithClock injects the time source used for expiry
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for eviction messages
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a cache holding at most capacity entries for ttl each
func New[V any](ttl time.Duration, capacity int, opts ...Option) (*Cache[V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	o := options{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	// One slot of headroom lets Put land before Cleanup decides what to drop.
	items, err := lru.New[string, *entry[V]](capacity + 1)
	if err != nil {
		return nil, err
	}

	return &Cache[V]{
		items:    items,
		ttl:      ttl,
		capacity: capacity,
		now:      o.now,
		logger:   o.logger,
	}, nil
}

// Get returns the value for key if it is present and not expired.
// Expired entries are removed on read.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items.Peek(key)
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return zero, false
	}

	if c.expired(e, c.now()) {
		c.items.Remove(key)
		metrics.CacheLookupsTotal.WithLabelValues("expired").Inc()
		metrics.CacheEvictionsTotal.WithLabelValues("expired").Inc()
		metrics.CacheEntries.Set(float64(c.items.Len()))
		return zero, false
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return e.value, true
}

// Put inserts or replaces key, resets its insertion time and then runs cleanup
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Remove first so a replaced key moves to the newest position
	c.items.Remove(key)
	c.items.Add(key, &entry[V]{value: value, insertedAt: c.now()})
	c.cleanupLocked()
}

// Remove drops key if present
func (c *Cache[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.items.Remove(key)
	if removed {
		metrics.CacheEvictionsTotal.WithLabelValues("invalidated").Inc()
		metrics.CacheEntries.Set(float64(c.items.Len()))
	}
	return removed
}

// Cleanup removes expired entries, then the oldest entries until the cache
// is within capacity. It returns the number of entries removed.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupLocked()
}

func (c *Cache[V]) cleanupLocked() int {
	now := c.now()
	removed := 0

	// Keys are ordered oldest to newest
	for _, key := range c.items.Keys() {
		e, ok := c.items.Peek(key)
		if ok && c.expired(e, now) {
			c.items.Remove(key)
			removed++
			metrics.CacheEvictionsTotal.WithLabelValues("expired").Inc()
		}
	}

	for c.items.Len() > c.capacity {
		key, _, ok := c.items.RemoveOldest()
		if !ok {
			break
		}
		removed++
		metrics.CacheEvictionsTotal.WithLabelValues("capacity").Inc()
		c.logger.Debug("evicted cache entry", zap.String("key", key), zap.String("reason", "capacity"))
	}

	metrics.CacheEntries.Set(float64(c.items.Len()))
	return removed
}

// Len returns the number of resident entries, expired or not
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// Capacity returns the configured maximum number of entries
func (c *Cache[V]) Capacity() int {
	return c.capacity
}

// TTL returns the configured entry lifetime
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// Clear drops every entry
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Purge()
	metrics.CacheEntries.Set(0)
}

func (c *Cache[V]) expired(e *entry[V], now time.Time) bool {
	return now.Sub(e.insertedAt) >= c.ttl
}
