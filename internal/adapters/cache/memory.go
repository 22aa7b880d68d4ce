// Package cache provides fetched-page caches and a caching fetcher.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
)

// MemoryCache implements PageCachePort using an in-memory map with TTL support.
type MemoryCache struct {
	mu          sync.RWMutex
	entries     map[string]*memoryEntry
	maxSize     int64 // bytes of page bodies, 0 is unbounded
	currentSize int64

	hitCount      int64
	missCount     int64
	evictionCount int64
	expiredCount  int64

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
	now           func() time.Time
}

type memoryEntry struct {
	page      *ports.FetchedPage
	createdAt time.Time
	expiresAt time.Time
	size      int64
}

// NewMemoryCache creates a new in-memory cache with the specified max size.
// A positive cleanupPeriod starts a goroutine that drops expired entries.
func NewMemoryCache(maxSize int64, cleanupPeriod time.Duration) *MemoryCache {
	mc := &MemoryCache{
		entries:     make(map[string]*memoryEntry),
		maxSize:     maxSize,
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}

	if cleanupPeriod > 0 {
		mc.cleanupTicker = time.NewTicker(cleanupPeriod)
		go mc.cleanupLoop()
	}

	return mc
}

func (m *MemoryCache) cleanupLoop() {
	for {
		select {
		case <-m.cleanupTicker.C:
			_, _ = m.Cleanup(context.Background())
		case <-m.stopCleanup:
			m.cleanupTicker.Stop()
			return
		}
	}
}

// Close stops the cleanup goroutine.
func (m *MemoryCache) Close() error {
	if m.cleanupTicker != nil {
		m.closeOnce.Do(func() {
			close(m.stopCleanup)
		})
	}
	return nil
}

// Get retrieves a page from cache.
func (m *MemoryCache) Get(_ context.Context, key string) (*ports.FetchedPage, bool) {
	m.mu.RLock()
	e, exists := m.entries[key]
	m.mu.RUnlock()

	if !exists {
		atomic.AddInt64(&m.missCount, 1)
		return nil, false
	}

	if !m.now().Before(e.expiresAt) {
		atomic.AddInt64(&m.missCount, 1)
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur == e {
			m.currentSize -= e.size
			delete(m.entries, key)
			m.expiredCount++
		}
		m.mu.Unlock()
		return nil, false
	}

	atomic.AddInt64(&m.hitCount, 1)
	return clonePage(e.page), true
}

// Set stores a page with the specified TTL. Pages larger than the cache are
// not stored.
func (m *MemoryCache) Set(_ context.Context, key string, page *ports.FetchedPage, ttl time.Duration) error {
	if page == nil || ttl <= 0 {
		return nil
	}
	now := m.now()
	return m.put(key, &memoryEntry{
		page:      clonePage(page),
		createdAt: now,
		expiresAt: now.Add(ttl),
		size:      int64(len(page.Body)),
	})
}

// put stores an entry with explicit timestamps, used when promoting from a
// slower tier.
func (m *MemoryCache) put(key string, e *memoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.entries[key]; exists {
		m.currentSize -= existing.size
		delete(m.entries, key)
	}

	if m.maxSize > 0 {
		if e.size > m.maxSize {
			return nil
		}
		for m.currentSize+e.size > m.maxSize && len(m.entries) > 0 {
			m.evictOldest()
		}
	}

	m.entries[key] = e
	m.currentSize += e.size
	return nil
}

// evictOldest removes the oldest entry. Must be called with lock held.
func (m *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, e := range m.entries {
		if oldestKey == "" || e.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.createdAt
		}
	}

	if e, exists := m.entries[oldestKey]; exists {
		m.currentSize -= e.size
		delete(m.entries, oldestKey)
		m.evictionCount++
	}
}

// Delete removes a page from cache.
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, exists := m.entries[key]; exists {
		m.currentSize -= e.size
		delete(m.entries, key)
	}
	return nil
}

// Clear removes all pages from cache.
func (m *MemoryCache) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*memoryEntry)
	m.currentSize = 0
	return nil
}

// Cleanup removes expired entries.
func (m *MemoryCache) Cleanup(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var removed int64
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			m.currentSize -= e.size
			delete(m.entries, key)
			removed++
		}
	}

	m.expiredCount += removed
	return removed, nil
}

// Stats returns cache statistics.
func (m *MemoryCache) Stats(_ context.Context) (*ports.CacheStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &ports.CacheStats{
		Entries:   int64(len(m.entries)),
		SizeBytes: m.currentSize,
		Hits:      atomic.LoadInt64(&m.hitCount),
		Misses:    atomic.LoadInt64(&m.missCount),
		Evictions: m.evictionCount,
		Expired:   m.expiredCount,
	}
	stats.HitRate = hitRate(stats.Hits, stats.Misses)
	return stats, nil
}

func hitRate(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses) * 100
}

func clonePage(p *ports.FetchedPage) *ports.FetchedPage {
	cp := *p
	cp.Body = append([]byte(nil), p.Body...)
	return &cp
}

var _ ports.PageCachePort = (*MemoryCache)(nil)
