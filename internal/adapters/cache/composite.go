package cache

import (
	"context"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
)

// CompositeCache combines in-memory and SQLite caches in a two-tier architecture.
// Hot pages are served from memory, while every page is persisted to SQLite.
type CompositeCache struct {
	memory *MemoryCache
	sqlite *SQLiteCache
}

// NewCompositeCache creates a new composite cache with memory and SQLite tiers.
func NewCompositeCache(memory *MemoryCache, sqlite *SQLiteCache) *CompositeCache {
	return &CompositeCache{memory: memory, sqlite: sqlite}
}

// Get checks memory first, then SQLite. SQLite hits are promoted to memory
// for their remaining lifetime.
func (c *CompositeCache) Get(ctx context.Context, key string) (*ports.FetchedPage, bool) {
	if page, found := c.memory.Get(ctx, key); found {
		return page, true
	}

	page, expiresAt, found := c.sqlite.getEntry(ctx, key)
	if !found {
		return nil, false
	}
	now := c.memory.now()
	if expiresAt.After(now) {
		_ = c.memory.put(key, &memoryEntry{
			page:      clonePage(page),
			createdAt: now,
			expiresAt: expiresAt,
			size:      int64(len(page.Body)),
		})
	}
	return page, true
}

// Set stores a page in both tiers.
func (c *CompositeCache) Set(ctx context.Context, key string, page *ports.FetchedPage, ttl time.Duration) error {
	if err := c.memory.Set(ctx, key, page, ttl); err != nil {
		return err
	}
	return c.sqlite.Set(ctx, key, page, ttl)
}

// Delete removes a page from both tiers.
func (c *CompositeCache) Delete(ctx context.Context, key string) error {
	if err := c.memory.Delete(ctx, key); err != nil {
		return err
	}
	return c.sqlite.Delete(ctx, key)
}

// Clear empties both tiers.
func (c *CompositeCache) Clear(ctx context.Context) error {
	if err := c.memory.Clear(ctx); err != nil {
		return err
	}
	return c.sqlite.Clear(ctx)
}

// Cleanup removes expired entries from both tiers.
func (c *CompositeCache) Cleanup(ctx context.Context) (int64, error) {
	memRemoved, _ := c.memory.Cleanup(ctx)
	sqlRemoved, err := c.sqlite.Cleanup(ctx)
	return memRemoved + sqlRemoved, err
}

// Stats reports the persistent tier's contents with hits from both tiers.
// A memory miss followed by a SQLite hit counts as one hit.
func (c *CompositeCache) Stats(ctx context.Context) (*ports.CacheStats, error) {
	stats, err := c.sqlite.Stats(ctx)
	if err != nil {
		return nil, err
	}
	memStats, err := c.memory.Stats(ctx)
	if err != nil {
		return nil, err
	}

	stats.Hits += memStats.Hits
	stats.Misses = memStats.Misses - (stats.Hits - memStats.Hits)
	if stats.Misses < 0 {
		stats.Misses = 0
	}
	stats.Evictions += memStats.Evictions
	stats.Expired += memStats.Expired
	stats.HitRate = hitRate(stats.Hits, stats.Misses)
	return stats, nil
}

// Close closes both tiers.
func (c *CompositeCache) Close() error {
	_ = c.memory.Close()
	return c.sqlite.Close()
}

var _ ports.PageCachePort = (*CompositeCache)(nil)
