package cache

import (
	"context"
	"net/http"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/logging"
)

// CachingFetcher serves pages from a cache before asking the wrapped fetcher.
// Only successful responses are stored.
type CachingFetcher struct {
	next   ports.FetcherPort
	cache  ports.PageCachePort
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachingFetcher wraps next with cache.
func NewCachingFetcher(next ports.FetcherPort, cache ports.PageCachePort, ttl time.Duration, logger *logging.Logger) *CachingFetcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &CachingFetcher{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Fetch implements ports.FetcherPort.
func (f *CachingFetcher) Fetch(ctx context.Context, location string) (*ports.FetchedPage, error) {
	if page, ok := f.cache.Get(ctx, location); ok {
		f.logger.DebugContext(ctx, "page cache hit", "page_url", location)
		return page, nil
	}

	page, err := f.next.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}

	if page.StatusCode >= http.StatusOK && page.StatusCode < http.StatusMultipleChoices {
		if err := f.cache.Set(ctx, location, page, f.ttl); err != nil {
			f.logger.WarnContext(ctx, "failed to cache page", "page_url", location, "error", err)
		}
	}
	return page, nil
}

var _ ports.FetcherPort = (*CachingFetcher)(nil)
