package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/storage"
)

func newTestSQLiteCache(t *testing.T, path string, maxSize int64) *SQLiteCache {
	t.Helper()
	conn, err := storage.NewConnection(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	db, err := conn.DB()
	if err != nil {
		t.Fatal(err)
	}
	return NewSQLiteCache(db, maxSize)
}

func TestSQLiteCache_SetGet(t *testing.T) {
	cache := newTestSQLiteCache(t, storage.MemoryPath, 0)
	ctx := context.Background()

	page := testPage("https://example.com/final", 3)
	page.Body = []byte("<p>")
	page.Truncated = true
	if err := cache.Set(ctx, "https://example.com/", page, time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, found := cache.Get(ctx, "https://example.com/")
	if !found {
		t.Fatal("expected a hit")
	}
	if got.URL != page.URL || got.StatusCode != 200 || got.ContentType != "text/html" || string(got.Body) != "<p>" || !got.Truncated {
		t.Errorf("round trip changed the page: %+v", got)
	}

	if _, found := cache.Get(ctx, "other"); found {
		t.Error("expected a miss")
	}

	stats, err := cache.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 || stats.SizeBytes != 3 || stats.Hits != 1 || stats.Misses != 1 || stats.HitRate != 50 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSQLiteCache_ExpiryAndEviction(t *testing.T) {
	clk := newClock()
	cache := newTestSQLiteCache(t, storage.MemoryPath, 100)
	cache.now = clk.now
	ctx := context.Background()

	cache.Set(ctx, "a", testPage("a", 40), time.Minute)
	clk.advance(time.Second)
	cache.Set(ctx, "b", testPage("b", 40), time.Hour)
	clk.advance(time.Second)

	if _, found := cache.Get(ctx, "b"); !found {
		t.Fatal("b should be cached")
	}
	clk.advance(time.Second)

	// a was accessed least recently and goes first
	cache.Set(ctx, "c", testPage("c", 40), time.Hour)
	if _, found := cache.Get(ctx, "a"); found {
		t.Error("a should have been evicted")
	}

	clk.advance(2 * time.Hour)
	removed, err := cache.Cleanup(ctx)
	if err != nil || removed != 2 {
		t.Errorf("Cleanup() = %d, %v; want 2", removed, err)
	}

	if err := cache.Set(ctx, "huge", testPage("huge", 500), time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, found := cache.Get(ctx, "huge"); found {
		t.Error("a page larger than the cache must not be stored")
	}
}

func TestOpenSQLiteCache_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	ctx := context.Background()

	first, err := OpenSQLiteCache(path, 0)
	if err != nil {
		t.Fatalf("OpenSQLiteCache() error = %v", err)
	}
	if err := first.Set(ctx, "k", testPage("k", 4), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := OpenSQLiteCache(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if _, found := second.Get(ctx, "k"); !found {
		t.Error("page should survive reopening the database")
	}

	if err := second.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, found := second.Get(ctx, "k"); found {
		t.Error("Clear should remove the page")
	}
}

func TestOpenSQLiteCache_BadPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := OpenSQLiteCache(filepath.Join(blocker, "cache.db"), 0)
	if !errors.IsConfiguration(err) {
		t.Errorf("expected a configuration error, got %v", err)
	}
}

func TestCompositeCache(t *testing.T) {
	ctx := context.Background()
	sqlite := newTestSQLiteCache(t, storage.MemoryPath, 0)
	memory := NewMemoryCache(0, 0)
	cache := NewCompositeCache(memory, sqlite)
	defer cache.Close()

	// only in the persistent tier, as after a restart
	if err := sqlite.Set(ctx, "k", testPage("k", 4), time.Hour); err != nil {
		t.Fatal(err)
	}

	if _, found := cache.Get(ctx, "k"); !found {
		t.Fatal("expected a SQLite hit")
	}
	if _, found := memory.Get(ctx, "k"); !found {
		t.Error("SQLite hit should be promoted to memory")
	}
	if _, found := cache.Get(ctx, "missing"); found {
		t.Error("expected a miss")
	}

	stats, err := cache.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// the promoted read counts once, the direct memory read once more
	if stats.Hits != 2 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	if err := cache.Set(ctx, "n", testPage("n", 1), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := cache.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, found := sqlite.Get(ctx, "k"); found {
		t.Error("Delete should reach the persistent tier")
	}
	if _, found := sqlite.Get(ctx, "n"); !found {
		t.Error("Set should reach the persistent tier")
	}
}
