package common

import (
	"sync"
	"time"
)

// TTLCache is a small wall-clock-expiry cache used to gate expensive
// re-collection of port data between polls. Entries expire lazily on Get;
// there is no background sweep. Instances are constructed and injected so
// tests can run against isolated caches.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// NewTTLCache creates an empty cache.
func NewTTLCache() *TTLCache {
	return &TTLCache{entries: make(map[string]cacheEntry)}
}

// Get returns the value for key if it exists and has not expired.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	ent, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(ent.expires) {
		c.mu.Lock()
		// recheck under write lock; another Set may have refreshed it
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return ent.value, true
}

// Set stores value under key for ttl.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key immediately. Used to invalidate the ports response
// after an annotation mutation.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// PortsCacheKey is the cache key for the aggregated ports response of a
// given server.
func PortsCacheKey(serverID string) string {
	return "ports:" + serverID
}
