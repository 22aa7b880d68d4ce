package cache

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/storage"
)

// SQLiteCache implements PageCachePort on the page_cache table so pages
// survive between runs.
type SQLiteCache struct {
	db      *sql.DB
	conn    *storage.Connection // set when the cache owns the database
	maxSize int64 // bytes of page bodies, 0 is unbounded
	now     func() time.Time

	hitCount      int64
	missCount     int64
	evictionCount int64
	expiredCount  int64
}

// NewSQLiteCache creates a cache on an open database that carries the
// page_cache table.
func NewSQLiteCache(db *sql.DB, maxSize int64) *SQLiteCache {
	return &SQLiteCache{db: db, maxSize: maxSize, now: time.Now}
}

// OpenSQLiteCache opens the cache database at path, creating it if needed.
// An empty path uses ~/.webdistill/cache.db. The cache owns the connection.
func OpenSQLiteCache(path string, maxSize int64) (*SQLiteCache, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.NewError(errors.CodeConfiguration, "could not determine home directory", err)
		}
		path = filepath.Join(home, ".webdistill", "cache.db")
	}

	conn, err := storage.NewConnection(path)
	if err != nil {
		return nil, errors.NewError(errors.CodeConfiguration, "failed to open page cache", err)
	}
	if err := conn.Open(); err != nil {
		return nil, errors.WithContext(errors.NewError(errors.CodeConfiguration, "failed to open page cache", err), "path", path)
	}
	db, err := conn.DB()
	if err != nil {
		conn.Close()
		return nil, err
	}

	s := NewSQLiteCache(db, maxSize)
	s.conn = conn
	return s, nil
}

// Get retrieves a page from cache.
func (s *SQLiteCache) Get(ctx context.Context, key string) (*ports.FetchedPage, bool) {
	page, _, ok := s.getEntry(ctx, key)
	return page, ok
}

// getEntry also returns the expiry so the page can be promoted to a faster
// tier without outliving this one.
func (s *SQLiteCache) getEntry(ctx context.Context, key string) (*ports.FetchedPage, time.Time, bool) {
	now := s.now().UnixNano()
	row := s.db.QueryRowContext(ctx, `
		SELECT url, status_code, content_type, body, truncated, expires_at
		FROM page_cache
		WHERE key = ? AND expires_at > ?
	`, key, now)

	var page ports.FetchedPage
	var expiresAt int64
	err := row.Scan(&page.URL, &page.StatusCode, &page.ContentType, &page.Body, &page.Truncated, &expiresAt)
	if err != nil {
		atomic.AddInt64(&s.missCount, 1)
		return nil, time.Time{}, false
	}

	atomic.AddInt64(&s.hitCount, 1)
	_, _ = s.db.ExecContext(ctx, `
		UPDATE page_cache
		SET hit_count = hit_count + 1, last_accessed_at = ?
		WHERE key = ?
	`, now, key)

	return &page, time.Unix(0, expiresAt), true
}

// Set stores a page with the specified TTL.
func (s *SQLiteCache) Set(ctx context.Context, key string, page *ports.FetchedPage, ttl time.Duration) error {
	if page == nil || ttl <= 0 {
		return nil
	}
	size := int64(len(page.Body))
	if s.maxSize > 0 {
		if size > s.maxSize {
			return nil
		}
		if err := s.makeRoom(ctx, key, size); err != nil {
			return err
		}
	}

	now := s.now()
	body := page.Body
	if body == nil {
		body = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO page_cache
		(key, url, status_code, content_type, body, truncated, size_bytes,
		 hit_count, created_at, expires_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`,
		key, page.URL, page.StatusCode, page.ContentType, body, page.Truncated, size,
		now.UnixNano(), now.Add(ttl).UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cached page: %w", err)
	}
	return nil
}

// makeRoom evicts least recently used pages until size more bytes fit.
func (s *SQLiteCache) makeRoom(ctx context.Context, key string, size int64) error {
	for {
		var current int64
		if err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(size_bytes), 0) FROM page_cache WHERE key != ?`, key,
		).Scan(&current); err != nil {
			return fmt.Errorf("failed to size page cache: %w", err)
		}
		if current+size <= s.maxSize {
			return nil
		}

		res, err := s.db.ExecContext(ctx, `
			DELETE FROM page_cache
			WHERE key = (
				SELECT key FROM page_cache
				WHERE key != ?
				ORDER BY last_accessed_at ASC
				LIMIT 1
			)
		`, key)
		if err != nil {
			return fmt.Errorf("failed to evict cached page: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		atomic.AddInt64(&s.evictionCount, 1)
	}
}

// Delete removes a page from cache.
func (s *SQLiteCache) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM page_cache WHERE key = ?`, key)
	return err
}

// Clear removes all pages from cache.
func (s *SQLiteCache) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM page_cache`)
	return err
}

// Cleanup removes expired entries.
func (s *SQLiteCache) Cleanup(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM page_cache WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, err
	}
	removed, _ := res.RowsAffected()
	atomic.AddInt64(&s.expiredCount, removed)
	return removed, nil
}

// Stats returns cache statistics. Hits and misses count this process only.
func (s *SQLiteCache) Stats(ctx context.Context) (*ports.CacheStats, error) {
	stats := &ports.CacheStats{
		Hits:      atomic.LoadInt64(&s.hitCount),
		Misses:    atomic.LoadInt64(&s.missCount),
		Evictions: atomic.LoadInt64(&s.evictionCount),
		Expired:   atomic.LoadInt64(&s.expiredCount),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM page_cache
		WHERE expires_at > ?
	`, s.now().UnixNano()).Scan(&stats.Entries, &stats.SizeBytes)
	if err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	stats.HitRate = hitRate(stats.Hits, stats.Misses)
	return stats, nil
}

// Close closes the database when the cache opened it.
func (s *SQLiteCache) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

var _ ports.PageCachePort = (*SQLiteCache)(nil)
