package services

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
)

const (
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 100
)

type cacheEntry struct {
	scope      types.Scope
	value      types.MergedRuleSet
	insertedAt time.Time
}

// Cache memoizes merged rulesets per scope. Entries expire after a fixed
// TTL (checked on access) and the oldest insertion is evicted once the
// entry count hits capacity. Entries are replaced whole, never mutated.
//
// Callers construct their own instance; there is no package-level cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string

	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type CacheStats struct {
	Size      int
	MaxSize   int
	TTL       time.Duration
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &Cache{
		entries:    map[string]*cacheEntry{},
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *Cache) Get(scope types.Scope) (types.MergedRuleSet, bool) {
	key := scope.CacheKey()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.insertedAt) <= c.ttl {
		c.hits.Add(1)
		return entry.value, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		if c.now().Sub(entry.insertedAt) <= c.ttl {
			c.hits.Add(1)
			return entry.value, true
		}
		c.removeLocked(key)
	}
	c.misses.Add(1)
	return types.MergedRuleSet{}, false
}

func (c *Cache) Set(scope types.Scope, value types.MergedRuleSet) {
	key := scope.CacheKey()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		// Concurrent loaders racing on the same key: last write wins,
		// both values derive from the same stored data.
		c.removeLocked(key)
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.removeLocked(oldest)
		c.evictions.Add(1)
	}

	c.entries[key] = &cacheEntry{scope: scope, value: value, insertedAt: c.now()}
	c.order = append(c.order, key)
}

// Invalidate removes the exact entry for scope, if present.
func (c *Cache) Invalidate(scope types.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(scope.CacheKey())
}

// InvalidateScope removes every entry the given scope covers: mutating a
// vertical-level record clears all market/client entries under that
// vertical.
func (c *Cache) InvalidateScope(scope types.Scope) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var victims []string
	for key, entry := range c.entries {
		if scope.Covers(entry.scope) {
			victims = append(victims, key)
		}
	}
	for _, key := range victims {
		c.removeLocked(key)
	}
	return len(victims)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]*cacheEntry{}
	c.order = nil
}

func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Size:      len(c.entries),
		MaxSize:   c.maxEntries,
		TTL:       c.ttl,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *Cache) removeLocked(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
