package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/jbctechsolutions/webdistill/internal/application/chunker"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
	"github.com/jbctechsolutions/webdistill/internal/domain/provider"
	"github.com/jbctechsolutions/webdistill/internal/domain/usage"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/logging"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/tracing"
)

// Outcome describes how one page was adapted and what the model answered.
type Outcome struct {
	Strategy          page.Strategy
	Skipped           bool
	Answer            string
	AdaptedContent    string
	Chunks            int
	ContentTokens     int
	InstructionTokens int
	AnswerTokens      int
	Budget            int
}

// AdapterConfig holds the per-run settings of an Adapter.
type AdapterConfig struct {
	Policy page.Policy
	// MaxConcurrency bounds in-flight chunk calls of one page. 0 sends all at once.
	MaxConcurrency int
}

// Adapter fits page content into the model context by passing it through,
// skipping, truncating or splitting it, and runs the instructions on the result.
type Adapter struct {
	counter provider.TokenEstimator
	chunker *chunker.Chunker
	runner  *Runner
	merger  Merger
	config  AdapterConfig
	logger  *logging.Logger
	tracer  *tracing.Tracer
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithMerger replaces the newline merger.
func WithMerger(m Merger) AdapterOption {
	return func(a *Adapter) {
		a.merger = m
	}
}

// WithAdapterLogger sets the logger.
func WithAdapterLogger(l *logging.Logger) AdapterOption {
	return func(a *Adapter) {
		a.logger = l
	}
}

// WithAdapterTracer sets the tracer.
func WithAdapterTracer(t *tracing.Tracer) AdapterOption {
	return func(a *Adapter) {
		a.tracer = t
	}
}

// NewAdapter creates an Adapter measuring text with counter and calling the model through runner.
func NewAdapter(counter provider.TokenEstimator, runner *Runner, cfg AdapterConfig, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		counter: counter,
		chunker: chunker.New(counter),
		runner:  runner,
		merger:  NewlineMerger{},
		config:  cfg,
		logger:  logging.Nop(),
		tracer:  tracing.Noop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Adapt processes one page. Every model call's usage is recorded in acc.
// A skipped page returns an Outcome with Skipped set and a nil error.
func (a *Adapter) Adapt(ctx context.Context, content *page.Content, instructions string, acc *usage.Accumulator) (*Outcome, error) {
	model := a.runner.Model()

	content.Tokens = a.counter.CountTokens(content.Text)
	out := &Outcome{
		ContentTokens:     content.Tokens,
		InstructionTokens: a.counter.CountTokens(instructions),
	}

	strategy, err := page.SelectStrategy(out.ContentTokens, model.MaxTokens, a.config.Policy)
	if err != nil {
		return nil, err
	}
	out.Strategy = strategy
	logging.LogPageStart(ctx, a.logger, string(strategy), out.ContentTokens, out.InstructionTokens, model.MaxTokens)

	switch strategy {
	case page.StrategySkip:
		out.Skipped = true
		return out, nil

	case page.StrategyPassThrough:
		out.AdaptedContent = content.Text
		out.Chunks = 1
		res, err := a.runner.Run(ctx, instructions, content.Text, content.Format)
		if err != nil {
			return nil, err
		}
		acc.Record(res.Usage)
		out.Answer = res.Answer

	case page.StrategyTruncate:
		budget, err := a.budget(model, out.InstructionTokens)
		if err != nil {
			return nil, err
		}
		out.Budget = budget

		truncated := a.chunker.Truncate(content.Text, budget)
		if truncated == "" {
			return nil, errors.WithContext(
				errors.NewError(errors.CodeConfiguration,
					fmt.Sprintf("budget of %d tokens cannot hold the first word of the page", budget), errors.ErrNegativeBudget),
				"budget", budget)
		}
		out.AdaptedContent = truncated
		out.Chunks = 1

		res, err := a.runner.Run(ctx, instructions, truncated, content.Format)
		if err != nil {
			return nil, err
		}
		acc.Record(res.Usage)
		out.Answer = res.Answer

	case page.StrategySplit:
		budget, err := a.budget(model, out.InstructionTokens)
		if err != nil {
			return nil, err
		}
		out.Budget = budget

		chunks, err := a.chunker.Split(content.Text, budget)
		if err != nil {
			return nil, err
		}
		out.AdaptedContent = page.JoinChunks(chunks)
		out.Chunks = len(chunks)
		logging.LogChunkDispatch(ctx, a.logger, len(chunks), budget)

		answers, err := a.dispatch(ctx, chunks, instructions, content.Format, acc)
		if err != nil {
			return nil, err
		}

		merged, mergeUsage, err := a.merger.Merge(ctx, answers)
		if err != nil {
			return nil, err
		}
		if !mergeUsage.IsZero() {
			acc.Record(mergeUsage)
		}
		out.Answer = merged
	}

	out.AnswerTokens = a.counter.CountTokens(out.Answer)
	return out, nil
}

// budget returns the content budget, failing when the instructions use it all up.
func (a *Adapter) budget(model provider.ModelConfig, instructionTokens int) (int, error) {
	budget := page.ContentBudget(model.MaxTokens, instructionTokens)
	if budget < 0 {
		return 0, errors.WithContext(errors.WithContext(
			errors.NewError(errors.CodeConfiguration,
				fmt.Sprintf("instructions use %d tokens, more than 90%% of the %d token context", instructionTokens, model.MaxTokens),
				errors.ErrNegativeBudget),
			"instruction_tokens", instructionTokens), "budget", budget)
	}
	return budget, nil
}

// dispatch runs every chunk concurrently and returns the answers in chunk
// order. The first failure cancels the remaining calls and is returned.
// With MaxConcurrency set, chunks still waiting for a slot when a sibling
// fails are never sent.
func (a *Adapter) dispatch(ctx context.Context, chunks []page.Chunk, instructions string, format page.Format, acc *usage.Accumulator) ([]string, error) {
	answers := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	if a.config.MaxConcurrency > 0 {
		g.SetLimit(a.config.MaxConcurrency)
	}

	for i, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cctx := logging.WithChunkIndex(gctx, i)
			cctx, span := a.tracer.StartChunkSpan(cctx, i, c.Tokens)

			res, err := a.runner.Run(cctx, instructions, strings.TrimRightFunc(c.Text, unicode.IsSpace), format)
			if err != nil {
				span.EndWithError(err)
				return err
			}
			acc.Record(res.Usage)
			answers[i] = res.Answer
			span.End()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return answers, nil
}
