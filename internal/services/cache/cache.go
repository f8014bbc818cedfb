// Package cache keeps the most recent price per asset for a fixed TTL.
package cache

import (
	"sync"
	"time"

	"github.com/vadiminshakov/pricefeed/internal/domain"
)

// DefaultTTL is how long a fetched price is served before a refetch is required.
const DefaultTTL = 30 * time.Second

// PriceCache is a time-expiring map from asset key to the last fetched price.
// Entries are only ever overwritten; the key space is the small set of configured assets.
type PriceCache struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a PriceCache.
type Option func(*PriceCache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *PriceCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *PriceCache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *PriceCache {
	c := &PriceCache{
		entries: make(map[string]domain.CacheEntry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached record for key while it has not expired.
func (c *PriceCache) Get(key string) (domain.PriceRecord, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.Expired(c.now()) {
		return domain.PriceRecord{}, false
	}
	return entry.Data, true
}

// Put stores record under key, replacing any previous entry.
func (c *PriceCache) Put(key string, record domain.PriceRecord) {
	entry := domain.CacheEntry{
		Data:   record,
		Expiry: c.now().Add(c.ttl).UnixMilli(),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL returns the configured time to live.
func (c *PriceCache) TTL() time.Duration {
	return c.ttl
}
