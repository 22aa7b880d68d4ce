package pipeline

import (
	"context"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
	"github.com/jbctechsolutions/webdistill/internal/domain/provider"
	"github.com/jbctechsolutions/webdistill/internal/domain/usage"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/logging"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/tracing"
)

// PageResult is what processing one page produced.
type PageResult struct {
	URL      string
	Strategy page.Strategy
	Skipped  bool
	Record   *page.Record // nil when skipped
	Duration time.Duration
}

// ProcessorConfig holds the per-run settings of a Processor.
type ProcessorConfig struct {
	RunID        string
	Instructions string
	// Credential overrides the credential name reported by the provider.
	Credential string
	Limits     usage.Limits
	// Ledger is the run-scoped usage ledger. A nil ledger makes every page count alone.
	Ledger *usage.Ledger
	// Sink receives records. Nil discards them.
	Sink ports.SinkPort
	// Prices estimates record cost. Nil leaves CostUSD at 0.
	Prices *provider.PriceList
}

// Processor turns one page into one record: it adapts the content, tallies
// usage in a fresh accumulator, builds the record and hands it to the sink.
type Processor struct {
	adapter *Adapter
	config  ProcessorConfig
	logger  *logging.Logger
	tracer  *tracing.Tracer
}

// NewProcessor creates a Processor.
func NewProcessor(adapter *Adapter, cfg ProcessorConfig, logger *logging.Logger, tracer *tracing.Tracer) *Processor {
	if logger == nil {
		logger = logging.Nop()
	}
	if tracer == nil {
		tracer = tracing.Noop()
	}
	return &Processor{adapter: adapter, config: cfg, logger: logger, tracer: tracer}
}

// Credential returns the credential name usage is tracked under.
func (p *Processor) Credential() string {
	if p.config.Credential != "" {
		return p.config.Credential
	}
	return p.adapter.runner.Credential()
}

// Process runs one page through the pipeline. Skipped pages return a result
// with Skipped set and no record. Errors abandon the page only; tokens spent
// by calls that completed before the error are still committed to the ledger.
func (p *Processor) Process(ctx context.Context, content *page.Content) (*PageResult, error) {
	start := time.Now()
	ctx = logging.WithPageURL(ctx, content.URL)
	ctx, span := p.tracer.StartPageSpan(ctx, content.URL)

	acc := usage.NewAccumulator(p.config.Ledger, p.config.Limits)
	out, err := p.adapter.Adapt(ctx, content, p.config.Instructions, acc)
	if err != nil {
		// Chunks that completed before the failure still spent tokens.
		acc.Commit(p.Credential())
		logging.LogPageFailed(ctx, p.logger, string(errors.CodeOf(err)), err, time.Since(start))
		span.EndWithError(err)
		return nil, err
	}

	result := &PageResult{URL: content.URL, Strategy: out.Strategy}
	span.SetString("page.strategy", string(out.Strategy))
	span.SetInt("page.content_tokens", out.ContentTokens)

	if out.Skipped {
		result.Duration = time.Since(start)
		result.Skipped = true
		logging.LogPageSkipped(ctx, p.logger, out.ContentTokens, p.adapter.runner.Model().MaxTokens)
		span.SetBool("page.skipped", true)
		span.End()
		return result, nil
	}

	credential := p.Credential()
	rec := page.NewRecord(p.config.RunID, content, p.adapter.runner.Model().ID)
	rec.Strategy = out.Strategy
	rec.ChunkCount = out.Chunks
	rec.InstructionTokens = out.InstructionTokens
	rec.AnswerTokens = out.AnswerTokens
	rec.Usage = acc.Usage()
	rec.TotalTokens = acc.Total()
	if p.config.Prices != nil {
		rec.CostUSD = p.config.Prices.Estimate(rec.Model, rec.Usage.PromptTokens, rec.Usage.CompletionTokens)
	}
	rec.LimitExceeded = acc.Settle(credential)
	rec.Answer = out.Answer
	rec.AdaptedContent = out.AdaptedContent

	if p.config.Sink != nil {
		if err := p.config.Sink.Save(ctx, rec); err != nil {
			wrapped := errors.WithContext(errors.NewError(errors.CodeExecution, "failed to save record", err), "page_url", content.URL)
			logging.LogPageFailed(ctx, p.logger, string(wrapped.Code), wrapped, time.Since(start))
			span.EndWithError(wrapped)
			return nil, wrapped
		}
	}

	result.Record = rec
	result.Duration = time.Since(start)
	span.SetInt("page.chunks", rec.ChunkCount)
	span.SetInt("page.total_tokens", rec.TotalTokens)
	span.SetBool("page.limit_exceeded", rec.LimitExceeded)
	span.End()
	logging.LogPageComplete(ctx, p.logger, string(rec.Strategy), rec.ChunkCount, rec.TotalTokens, rec.LimitExceeded, result.Duration)

	return result, nil
}
