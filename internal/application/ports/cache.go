package ports

import (
	"context"
	"time"
)

// CacheStats represents page cache statistics.
type CacheStats struct {
	Entries   int64   `json:"entries"`
	SizeBytes int64   `json:"size_bytes"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"` // percentage
	Evictions int64   `json:"evictions"`
	Expired   int64   `json:"expired"`
}

// PageCachePort stores fetched pages by source location.
type PageCachePort interface {
	// Get returns a copy of the cached page, or false when absent or expired.
	Get(ctx context.Context, key string) (*FetchedPage, bool)

	// Set stores the page for ttl.
	Set(ctx context.Context, key string, page *FetchedPage, ttl time.Duration) error

	// Delete removes one entry.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Cleanup removes expired entries and returns how many were removed.
	Cleanup(ctx context.Context) (int64, error)

	// Stats returns cache statistics.
	Stats(ctx context.Context) (*CacheStats, error)

	Close() error
}
