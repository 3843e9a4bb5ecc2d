package playerjs

import (
	"sync"
	"time"
)

// Cache stores fetched player JS bodies keyed by player build.
type Cache interface {
	Get(key string) (string, bool)
	Set(key string, jsBody string)
}

// playerCacheTTL bounds how long a fetched player build is reused before it
// is fetched again. Player builds rotate, so cached copies go stale.
const playerCacheTTL = 6 * time.Hour

type memoryCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]cacheEntry
}

type cacheEntry struct {
	body     string
	storedAt time.Time
}

func NewMemoryCache() Cache {
	return newMemoryCache(playerCacheTTL)
}

func newMemoryCache(ttl time.Duration) *memoryCache {
	return &memoryCache{ttl: ttl, items: make(map[string]cacheEntry)}
}

func (c *memoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || time.Since(e.storedAt) >= c.ttl {
		return "", false
	}
	return e.body, true
}

func (c *memoryCache) Set(key string, jsBody string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cacheEntry{body: jsBody, storedAt: time.Now()}
}
