package rates

import (
	"sync"
	"time"
)

// cacheEntry represents a cached quote.
type cacheEntry struct {
	expiry time.Time
	quote  Quote
}

// quoteCache provides thread-safe caching of live quotes by pair.
type quoteCache struct {
	entries map[string]cacheEntry
	now     func() time.Time
	ttl     time.Duration
	mu      sync.RWMutex
}

// newQuoteCache creates a new cache with the specified TTL.
func newQuoteCache(ttl time.Duration) *quoteCache {
	if ttl == 0 {
		ttl = time.Minute
	}
	return &quoteCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// get retrieves a quote from the cache if it exists and hasn't expired.
func (c *quoteCache) get(key string) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiry) {
		return Quote{}, false
	}
	return entry.quote, true
}

// set stores a quote in the cache.
func (c *quoteCache) set(key string, quote Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		quote:  quote,
		expiry: c.now().Add(c.ttl),
	}
}

// clear removes all entries from the cache.
func (c *quoteCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
