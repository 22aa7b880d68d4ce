package ports

import (
	"context"
	"strings"

	"github.com/jbctechsolutions/webdistill/internal/domain/page"
)

// FetchedPage is the raw result of retrieving one page.
type FetchedPage struct {
	URL         string // final URL after redirects
	StatusCode  int
	ContentType string
	Body        []byte
	// Truncated is set when the body exceeded the fetcher's size cap.
	Truncated bool
}

// IsHTML reports whether the page should go through HTML conversion.
func (f *FetchedPage) IsHTML() bool {
	ct := strings.ToLower(f.ContentType)
	return ct == "" || strings.Contains(ct, "html")
}

// FetcherPort retrieves raw page bodies.
type FetcherPort interface {
	Fetch(ctx context.Context, url string) (*FetchedPage, error)
}

// ConverterPort renders raw HTML into the text form a model receives.
type ConverterPort interface {
	Convert(rawHTML, pageURL string, format page.Format) (string, error)
}
