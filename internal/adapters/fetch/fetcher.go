// Package fetch retrieves raw page bodies over HTTP or from local files.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
)

// Defaults for HTTPFetcher.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "webdistill/0.3 (+https://github.com/jbctechsolutions/webdistill)"
	DefaultMaxBodyBytes = 5 << 20
)

// Config configures an HTTPFetcher.
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

// DefaultConfig returns the fetcher defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// HTTPFetcher performs a single GET per page.
type HTTPFetcher struct {
	client *http.Client
	config Config
}

var _ ports.FetcherPort = (*HTTPFetcher)(nil)

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// NewHTTPFetcher creates a fetcher. Zero config fields take the defaults.
func NewHTTPFetcher(cfg Config, opts ...Option) *HTTPFetcher {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}

	f := &HTTPFetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the page. Non-2xx responses are errors; 404 and 410 are
// NOT_FOUND, everything else UPSTREAM. Page-level HTTP auth failures are
// never reported as AUTH since that code is reserved for model credentials.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*ports.FetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.WithContext(
			errors.NewError(errors.CodeValidation, "invalid page url", err), "page_url", rawURL)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.WithContext(
			errors.NewError(errors.CodeUpstream, "fetch failed", err), "page_url", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code := errors.CodeUpstream
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			code = errors.CodeNotFound
		}
		de := errors.NewError(code, fmt.Sprintf("fetch failed: HTTP %d", resp.StatusCode), nil)
		return nil, errors.WithContext(errors.WithContext(de, "page_url", rawURL), "status", resp.StatusCode)
	}

	body, truncated, err := readCapped(resp.Body, f.config.MaxBodyBytes)
	if err != nil {
		return nil, errors.WithContext(
			errors.NewError(errors.CodeUpstream, "failed to read page body", err), "page_url", rawURL)
	}

	return &ports.FetchedPage{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Truncated:   truncated,
	}, nil
}

func readCapped(r io.Reader, limit int64) ([]byte, bool, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}

// FileFetcher reads pages saved on disk. The page URL is the file:// URL of
// the absolute path.
type FileFetcher struct {
	MaxBodyBytes int64
}

var _ ports.FetcherPort = (*FileFetcher)(nil)

// Fetch reads a local file given as a plain path or a file:// URL.
func (f *FileFetcher) Fetch(ctx context.Context, location string) (*ports.FetchedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := strings.TrimPrefix(location, "file://")
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WithContext(errors.NewError(errors.CodeValidation, "invalid file path", err), "page_url", location)
	}

	fh, err := os.Open(abs)
	if err != nil {
		code := errors.CodeExecution
		if os.IsNotExist(err) {
			code = errors.CodeNotFound
		}
		return nil, errors.WithContext(errors.NewError(code, "failed to open page file", err), "page_url", location)
	}
	defer fh.Close()

	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, truncated, err := readCapped(fh, limit)
	if err != nil {
		return nil, errors.WithContext(errors.NewError(errors.CodeExecution, "failed to read page file", err), "page_url", location)
	}

	contentType := mime.TypeByExtension(filepath.Ext(abs))
	if contentType == "" {
		contentType = "text/html"
	}

	return &ports.FetchedPage{
		URL:         (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
		StatusCode:  http.StatusOK,
		ContentType: contentType,
		Body:        body,
		Truncated:   truncated,
	}, nil
}

// Router sends http(s) URLs to the HTTP fetcher and everything else to the
// file fetcher.
type Router struct {
	HTTP ports.FetcherPort
	File ports.FetcherPort
}

var _ ports.FetcherPort = (*Router)(nil)

// Fetch dispatches on the URL scheme.
func (r *Router) Fetch(ctx context.Context, location string) (*ports.FetchedPage, error) {
	lower := strings.ToLower(location)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return r.HTTP.Fetch(ctx, location)
	}
	if r.File == nil {
		return nil, errors.WithContext(
			errors.NewError(errors.CodeValidation, "local files are not enabled", nil), "page_url", location)
	}
	return r.File.Fetch(ctx, location)
}
