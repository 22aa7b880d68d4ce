// Package crawl drives a run: it fetches every source, converts it to the
// configured format and hands it to the page pipeline.
package crawl

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jbctechsolutions/webdistill/internal/application/pipeline"
	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
	"github.com/jbctechsolutions/webdistill/internal/domain/usage"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/logging"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/tracing"
)

// PageStatus is the final state of one source.
type PageStatus string

const (
	StatusProcessed PageStatus = "processed"
	StatusSkipped   PageStatus = "skipped"
	StatusFailed    PageStatus = "failed"
)

// PageReport describes what happened to one source.
type PageReport struct {
	Location  string        `json:"location"`
	Status    PageStatus    `json:"status"`
	Strategy  page.Strategy `json:"strategy,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
	Record    *page.Record  `json:"record,omitempty"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
	ErrorCode string        `json:"error_code,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Summary aggregates a run.
type Summary struct {
	RunID       string         `json:"run_id"`
	Model       string         `json:"model"`
	Pages       []PageReport   `json:"pages"`
	Processed   int            `json:"processed"`
	Skipped     int            `json:"skipped"`
	Failed      int            `json:"failed"`
	TotalTokens int            `json:"total_tokens"`
	CostUSD     float64        `json:"cost_usd"`
	Usage       map[string]int `json:"usage"`
	Aborted     bool           `json:"aborted"`
	Duration    time.Duration  `json:"duration"`
}

// Config holds the per-run settings of a Runner.
type Config struct {
	RunID  string
	Model  string
	Policy page.Policy
	Format page.Format
	// PageConcurrency bounds pages in flight. Values below 1 mean one at a time.
	PageConcurrency int
	// Ledger is the run ledger shared with the processor, reported in the summary.
	Ledger *usage.Ledger
	// ContinueOnAuthError keeps processing after a credential failure.
	ContinueOnAuthError bool
}

// Runner executes a run over a list of sources.
type Runner struct {
	fetcher   ports.FetcherPort
	converter ports.ConverterPort
	processor *pipeline.Processor
	config    Config
	logger    *logging.Logger
	tracer    *tracing.Tracer
}

// NewRunner creates a Runner.
func NewRunner(fetcher ports.FetcherPort, converter ports.ConverterPort, processor *pipeline.Processor, cfg Config, logger *logging.Logger, tracer *tracing.Tracer) *Runner {
	if logger == nil {
		logger = logging.Nop()
	}
	if tracer == nil {
		tracer = tracing.Noop()
	}
	if cfg.Format == "" {
		cfg.Format = page.FormatMarkdown
	}
	if cfg.PageConcurrency < 1 {
		cfg.PageConcurrency = 1
	}
	return &Runner{
		fetcher:   fetcher,
		converter: converter,
		processor: processor,
		config:    cfg,
		logger:    logger,
		tracer:    tracer,
	}
}

// Run processes every location. Page failures are reported in the summary.
// An authentication failure stops the run and is returned along with the
// partial summary, unless ContinueOnAuthError is set.
func (r *Runner) Run(ctx context.Context, locations []string) (*Summary, error) {
	start := time.Now()
	ctx = logging.WithRunID(ctx, r.config.RunID)
	ctx, span := r.tracer.StartRunSpan(ctx, r.config.RunID, r.config.Model, len(locations))
	logging.LogRunStart(ctx, r.logger, r.config.Model, string(r.config.Policy), len(locations))

	reports := make([]PageReport, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.PageConcurrency)

	for i, loc := range locations {
		g.Go(func() error {
			reports[i] = r.processOne(gctx, loc)
			if reports[i].Status == StatusFailed && errors.IsAuthentication(reports[i].Err) && !r.config.ContinueOnAuthError {
				return reports[i].Err
			}
			return nil
		})
	}
	runErr := g.Wait()

	summary := r.summarize(reports, time.Since(start))
	if runErr != nil {
		summary.Aborted = true
		r.logger.ErrorContext(ctx, "run aborted", "error", runErr.Error())
	}

	span.SetInt("run.processed", summary.Processed)
	span.SetInt("run.skipped", summary.Skipped)
	span.SetInt("run.failed", summary.Failed)
	span.SetInt("run.total_tokens", summary.TotalTokens)
	if runErr != nil {
		span.EndWithError(runErr)
	} else {
		span.End()
	}
	logging.LogRunSummary(ctx, r.logger, summary.Processed, summary.Skipped, summary.Failed, summary.TotalTokens, summary.Duration)

	return summary, runErr
}

func (r *Runner) processOne(ctx context.Context, location string) PageReport {
	start := time.Now()
	report := PageReport{Location: location}

	fail := func(err error) PageReport {
		report.Status = StatusFailed
		report.Err = err
		report.Error = err.Error()
		report.ErrorCode = string(errors.CodeOf(err))
		report.Duration = time.Since(start)
		return report
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("page not started: %w", err))
	}

	fetched, err := r.fetcher.Fetch(ctx, location)
	if err != nil {
		pageCtx := logging.WithPageURL(ctx, location)
		logging.LogPageFailed(pageCtx, r.logger, string(errors.CodeOf(err)), err, time.Since(start))
		return fail(err)
	}
	report.Truncated = fetched.Truncated
	if fetched.Truncated {
		r.logger.WarnContext(logging.WithPageURL(ctx, location), "page body truncated at size cap", "bytes", len(fetched.Body))
	}

	text, err := r.render(fetched)
	if err != nil {
		return fail(errors.WithContext(errors.NewError(errors.CodeExecution, "failed to convert page", err), "page_url", location))
	}

	url := fetched.URL
	if url == "" {
		url = location
	}
	res, err := r.processor.Process(ctx, page.NewContent(url, text, r.config.Format))
	if err != nil {
		return fail(err)
	}

	report.Strategy = res.Strategy
	report.Duration = time.Since(start)
	if res.Skipped {
		report.Status = StatusSkipped
		return report
	}
	report.Status = StatusProcessed
	report.Record = res.Record
	return report
}

// render converts HTML bodies. Other content types pass through as text.
func (r *Runner) render(fetched *ports.FetchedPage) (string, error) {
	if !fetched.IsHTML() || r.converter == nil {
		return string(fetched.Body), nil
	}
	return r.converter.Convert(string(fetched.Body), fetched.URL, r.config.Format)
}

func (r *Runner) summarize(reports []PageReport, elapsed time.Duration) *Summary {
	s := &Summary{
		RunID:    r.config.RunID,
		Model:    r.config.Model,
		Pages:    reports,
		Duration: elapsed,
	}
	for _, rep := range reports {
		switch rep.Status {
		case StatusProcessed:
			s.Processed++
			s.TotalTokens += rep.Record.TotalTokens
			s.CostUSD += rep.Record.CostUSD
		case StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	if r.config.Ledger != nil {
		s.Usage = r.config.Ledger.Snapshot()
	}
	return s
}
