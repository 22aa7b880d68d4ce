// Package pipeline adapts page content to a model's context window and runs
// the configured instructions against it.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
	"github.com/jbctechsolutions/webdistill/internal/domain/provider"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/logging"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/tracing"
)

// Runner sends one prompt to the model and classifies failures.
type Runner struct {
	provider    ports.ProviderPort
	model       provider.ModelConfig
	maxOutput   int
	temperature float32
	logger      *logging.Logger
	tracer      *tracing.Tracer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxOutputTokens caps the completion length of each call. 0 leaves it to the provider.
func WithMaxOutputTokens(n int) RunnerOption {
	return func(r *Runner) {
		r.maxOutput = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) RunnerOption {
	return func(r *Runner) {
		r.temperature = t
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *logging.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithRunnerTracer sets the tracer.
func WithRunnerTracer(t *tracing.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = t
	}
}

// NewRunner creates a Runner that calls model through p.
func NewRunner(p ports.ProviderPort, model provider.ModelConfig, opts ...RunnerOption) *Runner {
	r := &Runner{
		provider: p,
		model:    model,
		logger:   logging.Nop(),
		tracer:   tracing.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Model returns the model the runner calls.
func (r *Runner) Model() provider.ModelConfig {
	return r.model
}

// Credential names the credential whose usage the runner consumes.
func (r *Runner) Credential() string {
	info := r.provider.Info()
	if info.Credential != "" {
		return info.Credential
	}
	return info.Name
}

// BuildPrompt places content in a fenced block after the instructions.
func BuildPrompt(instructions, content string, format page.Format) string {
	var b strings.Builder
	b.Grow(len(instructions) + len(content) + 32)
	b.WriteString(instructions)
	b.WriteString("\n\n```")
	b.WriteString(format.FenceLanguage())
	b.WriteByte('\n')
	b.WriteString(content)
	b.WriteString("\n```")
	return b.String()
}

// Run invokes the model once with instructions applied to content.
// Failures are returned as DistillErrors coded AUTH, RATE_LIMIT or UPSTREAM.
func (r *Runner) Run(ctx context.Context, instructions, content string, format page.Format) (page.CallResult, error) {
	info := r.provider.Info()
	prompt := BuildPrompt(instructions, content, format)

	ctx, span := r.tracer.StartProviderSpan(ctx, info.Name, r.model.ID)
	logging.LogProviderRequest(ctx, r.logger, info.Name, r.model.ID, len(prompt))

	start := time.Now()
	resp, err := r.provider.Complete(ctx, ports.CompletionRequest{
		ModelID:     r.model.ID,
		Messages:    []ports.Message{{Role: "user", Content: prompt}},
		MaxTokens:   r.maxOutput,
		Temperature: r.temperature,
	})
	if err != nil {
		classified := classify(ctx, info.Name, err)
		span.EndWithError(classified)
		return page.CallResult{}, classified
	}

	usage := page.NewUsage(resp.InputTokens, resp.OutputTokens)
	span.SetInt("provider.input_tokens", resp.InputTokens)
	span.SetInt("provider.output_tokens", resp.OutputTokens)
	span.End()
	logging.LogProviderResponse(ctx, r.logger, info.Name, r.model.ID, resp.OutputTokens, time.Since(start))

	return page.CallResult{Answer: resp.Content, Usage: usage}, nil
}

// classify maps a provider failure onto the model-call error kinds and
// attaches the page and chunk the call belonged to.
func classify(ctx context.Context, providerName string, err error) error {
	var de *errors.DistillError
	switch {
	case errors.IsAuthentication(err):
		de = errors.NewError(errors.CodeAuthentication, "model credential rejected", err)
	case errors.IsRateLimit(err):
		de = errors.NewError(errors.CodeRateLimit, "model rate limit or quota exceeded", err)
	default:
		de = errors.NewError(errors.CodeUpstream, "model call failed", err)
	}

	errors.WithContext(de, "provider", providerName)
	if u := logging.PageURL(ctx); u != "" {
		errors.WithContext(de, "page_url", u)
	}
	if i, ok := logging.ChunkIndex(ctx); ok {
		errors.WithContext(de, "chunk_index", i)
	}
	return de
}
