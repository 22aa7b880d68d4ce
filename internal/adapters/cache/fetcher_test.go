package cache

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
)

type countingFetcher struct {
	calls  int
	status int
	err    error
}

func (f *countingFetcher) Fetch(_ context.Context, location string) (*ports.FetchedPage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ports.FetchedPage{URL: location, StatusCode: f.status, ContentType: "text/html", Body: []byte("<p>hi</p>")}, nil
}

func TestCachingFetcher(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		err       error
		wantCalls int
	}{
		{"success is cached", 200, nil, 1},
		{"non-2xx is not cached", 404, nil, 2},
		{"errors are not cached", 0, stderrors.New("boom"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &countingFetcher{status: tt.status, err: tt.err}
			f := NewCachingFetcher(next, NewMemoryCache(0, 0), time.Hour, nil)

			for i := 0; i < 2; i++ {
				page, err := f.Fetch(context.Background(), "https://example.com/")
				if tt.err != nil {
					if !stderrors.Is(err, tt.err) {
						t.Errorf("expected %v, got %v", tt.err, err)
					}
					continue
				}
				if err != nil || string(page.Body) != "<p>hi</p>" {
					t.Errorf("fetch %d: %v %+v", i, err, page)
				}
			}
			if next.calls != tt.wantCalls {
				t.Errorf("inner fetcher calls = %d, want %d", next.calls, tt.wantCalls)
			}
		})
	}
}
