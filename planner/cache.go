package planner

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/clubsitehq/schedkit/recurrence"
	"github.com/clubsitehq/schedkit/storage"
)

// CacheConfig holds configuration for the merged-view cache.
type CacheConfig struct {
	TTL             time.Duration // how long a merged view stays valid
	MaxEntries      int           // maximum cached scopes before eviction
	CleanupInterval time.Duration // how often expired entries are swept
}

// DefaultCacheConfig provides sensible defaults: views go stale quickly as
// admins edit exceptions, so the TTL is short.
var DefaultCacheConfig = CacheConfig{
	TTL:             5 * time.Minute,
	MaxEntries:      500,
	CleanupInterval: time.Minute,
}

type cacheEntry struct {
	occurrences []recurrence.Occurrence
	expiresAt   time.Time
	accessedAt  time.Time
}

// viewCache memoizes merged occurrence views per scope. Any write through
// the planner invalidates the whole cache; staleness from out-of-band store
// writes is bounded by the TTL.
type viewCache struct {
	mu          sync.RWMutex
	entries     map[string]*cacheEntry
	ttl         time.Duration
	maxEntries  int
	stopCleanup chan struct{}
}

func newViewCache(cfg CacheConfig) *viewCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig.TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}

	c := &viewCache{
		entries:     make(map[string]*cacheEntry),
		ttl:         cfg.TTL,
		maxEntries:  cfg.MaxEntries,
		stopCleanup: make(chan struct{}),
	}
	go c.cleanupLoop(cfg.CleanupInterval)
	return c
}

func cacheKey(scope storage.Scope) string {
	sum := sha256.Sum256([]byte("scope:" + scope.ProgramNodeID))
	return fmt.Sprintf("%x", sum)
}

func (c *viewCache) get(scope storage.Scope) ([]recurrence.Occurrence, bool) {
	key := cacheKey(scope)
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if now.After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	entry.accessedAt = now
	c.mu.Unlock()
	// Hand out a copy; callers own their slice and must not reach the
	// cached backing array.
	occs := make([]recurrence.Occurrence, len(entry.occurrences))
	copy(occs, entry.occurrences)
	return occs, true
}

func (c *viewCache) set(scope storage.Scope, occs []recurrence.Occurrence) {
	now := time.Now()
	stored := make([]recurrence.Occurrence, len(occs))
	copy(stored, occs)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(scope)] = &cacheEntry{
		occurrences: stored,
		expiresAt:   now.Add(c.ttl),
		accessedAt:  now,
	}
	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

func (c *viewCache) invalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// cleanup removes expired entries, then least recently accessed entries while
// over the limit. Callers hold the write lock.
func (c *viewCache) cleanup() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	for len(c.entries) > c.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for key, entry := range c.entries {
			if oldestKey == "" || entry.accessedAt.Before(oldest) {
				oldestKey = key
				oldest = entry.accessedAt
			}
		}
		delete(c.entries, oldestKey)
	}
}

func (c *viewCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.cleanup()
			c.mu.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *viewCache) close() {
	close(c.stopCleanup)
	c.invalidateAll()
}

// CacheStats reports cache occupancy.
type CacheStats struct {
	TotalEntries  int
	ActiveEntries int
}

// CacheStats returns current cache statistics; zero values when the cache is
// disabled.
func (p *Planner) CacheStats() CacheStats {
	if p.cache == nil {
		return CacheStats{}
	}
	p.cache.mu.RLock()
	defer p.cache.mu.RUnlock()

	total := len(p.cache.entries)
	active := 0
	now := time.Now()
	for _, entry := range p.cache.entries {
		if !now.After(entry.expiresAt) {
			active++
		}
	}
	return CacheStats{TotalEntries: total, ActiveEntries: active}
}
