// Package ports defines the application layer port interfaces following hexagonal architecture.
// Ports are abstractions that allow the application core to interact with external systems
// (adapters) without knowing their implementation details.
package ports

import (
	"context"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/domain/page"
)

// SinkPort receives one record per processed page. Skipped pages never reach it.
type SinkPort interface {
	// Save persists a record. Implementations must be safe for concurrent use.
	Save(ctx context.Context, record *page.Record) error

	// Close flushes and releases the sink.
	Close() error
}

// ResultFilter narrows result queries.
type ResultFilter struct {
	RunID  string
	Model  string
	URL    string
	Since  time.Time
	Limit  int
	Offset int
}

// ModelSummary aggregates records produced with one model.
type ModelSummary struct {
	Model         string
	Pages         int
	TotalTokens   int
	CostUSD       float64
	LimitExceeded int
}

// ResultSummary aggregates records matching a filter.
type ResultSummary struct {
	Pages       int
	TotalTokens int
	CostUSD     float64
	ByModel     []ModelSummary
}

// ResultStoragePort is a sink that can also be queried.
type ResultStoragePort interface {
	SinkPort

	// Get returns a single record by id.
	Get(ctx context.Context, id string) (*page.Record, error)

	// List returns records matching the filter, most recent first.
	List(ctx context.Context, filter ResultFilter) ([]page.Record, error)

	// Summary aggregates records matching the filter.
	Summary(ctx context.Context, filter ResultFilter) (*ResultSummary, error)
}
