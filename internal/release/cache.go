package release

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Cache stores successful release listings keyed by repository.
type Cache interface {
	Get(ctx context.Context, key string) ([]Event, bool, error)
	Set(ctx context.Context, key string, events []Event) error
}

// CacheKey returns the cache key used for repo.
func CacheKey(repo Repository) string {
	return "releases:" + strings.ToLower(repo.String())
}

// CachedSource serves listings from a cache and falls back to the wrapped
// source on a miss. Failed fetches are never cached.
type CachedSource struct {
	source Source
	cache  Cache
	logger *slog.Logger
}

// NewCachedSource wraps source with cache. A nil cache disables caching.
func NewCachedSource(source Source, cache Cache, logger *slog.Logger) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{source: source, cache: cache, logger: logger.With("component", "CachedSource")}
}

// FetchReleases implements Source.
func (s *CachedSource) FetchReleases(ctx context.Context, repo Repository) ([]Event, error) {
	if s.cache == nil {
		return s.source.FetchReleases(ctx, repo)
	}

	key := CacheKey(repo)
	events, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "release cache read failed", "key", key, "error", err)
	} else if ok {
		s.logger.DebugContext(ctx, "release cache hit", "key", key, "count", len(events))
		return events, nil
	}

	events, err = s.source.FetchReleases(ctx, repo)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, events); err != nil {
		s.logger.WarnContext(ctx, "release cache write failed", "key", key, "error", err)
	}
	return events, nil
}

// MemoryCache keeps listings in process for a fixed TTL.
type MemoryCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	events    []Event
	expiresAt time.Time
}

// NewMemoryCache constructs a MemoryCache. Non-positive values fall back to a
// 60 second TTL and 128 entries.
func NewMemoryCache(ttl time.Duration, maxEntries int, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]memoryCacheEntry),
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]Event, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return cloneEvents(entry.events), true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, events []Event) error {
	cloned := cloneEvents(events)
	if cloned == nil {
		cloned = []Event{}
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = memoryCacheEntry{events: cloned, expiresAt: expiry}
	return nil
}

// Invalidate drops every entry.
func (c *MemoryCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]memoryCacheEntry)
	c.mu.Unlock()
}

func (c *MemoryCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
