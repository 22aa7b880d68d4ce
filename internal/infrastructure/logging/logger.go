// Package logging provides structured logging infrastructure for webdistill.
// It wraps Go's standard log/slog package with context-aware logging,
// correlation IDs, and page-processing log attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// contextKey is used for storing logger-related values in context.
type contextKey string

const (
	// CorrelationIDKey is the context key for correlation IDs.
	CorrelationIDKey contextKey = "correlation_id"
	// RunIDKey is the context key for run IDs.
	RunIDKey contextKey = "run_id"
	// PageURLKey is the context key for the page being processed.
	PageURLKey contextKey = "page_url"
	// ChunkIndexKey is the context key for the chunk being sent.
	ChunkIndexKey contextKey = "chunk_index"
	// ProviderKey is the context key for provider names.
	ProviderKey contextKey = "provider"
)

// enrichKeys lists the context keys copied onto every *Context log call, in order.
var enrichKeys = []contextKey{CorrelationIDKey, RunIDKey, PageURLKey, ChunkIndexKey, ProviderKey}

// Level represents log levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format represents log output formats.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     os.Stderr,
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger with context enrichment.
type Logger struct {
	slogger *slog.Logger
	level   *slog.LevelVar
}

// New creates a new Logger with the provided configuration.
func New(cfg Config) *Logger {
	level := &slog.LevelVar{}
	level.Set(parseLevel(cfg.Level))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		slogger: slog.New(handler),
		level:   level,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(Config{Level: LevelError, Output: io.Discard})
}

// parseLevel converts a Level to slog.Level.
func parseLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the log level of this logger and every logger derived from it.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(parseLevel(level))
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slogger: l.slogger.With(args...),
		level:   l.level,
	}
}

// WithGroup returns a new Logger with the given group name.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{
		slogger: l.slogger.WithGroup(name),
		level:   l.level,
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

// DebugContext logs at debug level with context.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, enrichArgs(ctx, args)...)
}

// InfoContext logs at info level with context.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, enrichArgs(ctx, args)...)
}

// WarnContext logs at warn level with context.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, enrichArgs(ctx, args)...)
}

// ErrorContext logs at error level with context.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, enrichArgs(ctx, args)...)
}

// enrichArgs extracts context values and adds them as log attributes.
func enrichArgs(ctx context.Context, args []any) []any {
	enriched := make([]any, 0, len(args)+2*len(enrichKeys))
	for _, key := range enrichKeys {
		if v := ctx.Value(key); v != nil {
			enriched = append(enriched, string(key), v)
		}
	}
	return append(enriched, args...)
}

// Underlying returns the underlying slog.Logger.
func (l *Logger) Underlying() *slog.Logger {
	return l.slogger
}

// --- Context helpers ---

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

// WithPageURL adds the page URL to the context.
func WithPageURL(ctx context.Context, url string) context.Context {
	return context.WithValue(ctx, PageURLKey, url)
}

// WithChunkIndex adds the chunk index to the context.
func WithChunkIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, ChunkIndexKey, index)
}

// WithProvider adds a provider name to the context.
func WithProvider(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ProviderKey, name)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if s, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return s
	}
	return ""
}

// PageURL extracts the page URL from context.
func PageURL(ctx context.Context) string {
	if s, ok := ctx.Value(PageURLKey).(string); ok {
		return s
	}
	return ""
}

// ChunkIndex extracts the chunk index from context.
func ChunkIndex(ctx context.Context) (int, bool) {
	i, ok := ctx.Value(ChunkIndexKey).(int)
	return i, ok
}

// --- Page processing helpers ---

// LogRunStart logs the start of a run.
func LogRunStart(ctx context.Context, logger *Logger, model string, policy string, pages int) {
	logger.InfoContext(ctx, "run started",
		"model", model,
		"policy", policy,
		"pages", pages,
	)
}

// LogRunSummary logs the outcome of a run.
func LogRunSummary(ctx context.Context, logger *Logger, processed, skipped, failed, totalTokens int, duration time.Duration) {
	logger.InfoContext(ctx, "run completed",
		"processed", processed,
		"skipped", skipped,
		"failed", failed,
		"total_tokens", totalTokens,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogPageStart logs the strategy chosen for a page.
func LogPageStart(ctx context.Context, logger *Logger, strategy string, contentTokens, instructionTokens, maxTokens int) {
	logger.DebugContext(ctx, "page adaptation selected",
		"strategy", strategy,
		"content_tokens", contentTokens,
		"instruction_tokens", instructionTokens,
		"max_tokens", maxTokens,
	)
}

// LogPageComplete logs a page whose record was produced.
func LogPageComplete(ctx context.Context, logger *Logger, strategy string, chunks, totalTokens int, limitExceeded bool, duration time.Duration) {
	logger.InfoContext(ctx, "page processed",
		"strategy", strategy,
		"chunks", chunks,
		"total_tokens", totalTokens,
		"limit_exceeded", limitExceeded,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogPageSkipped logs a page deliberately skipped by policy. Skips are not failures.
func LogPageSkipped(ctx context.Context, logger *Logger, contentTokens, maxTokens int) {
	logger.InfoContext(ctx, "page skipped",
		"content_tokens", contentTokens,
		"max_tokens", maxTokens,
	)
}

// LogPageFailed logs a page abandoned because of an error.
func LogPageFailed(ctx context.Context, logger *Logger, kind string, err error, duration time.Duration) {
	logger.ErrorContext(ctx, "page failed",
		"error_kind", kind,
		"error", err.Error(),
		"duration_ms", duration.Milliseconds(),
	)
}

// LogChunkDispatch logs the dispatch of split chunks.
func LogChunkDispatch(ctx context.Context, logger *Logger, chunks, budget int) {
	logger.DebugContext(ctx, "dispatching chunks",
		"chunks", chunks,
		"budget", budget,
	)
}

// LogProviderRequest logs an outgoing provider request.
func LogProviderRequest(ctx context.Context, logger *Logger, provider, model string, promptChars int) {
	logger.DebugContext(ctx, "provider request",
		"provider", provider,
		"model", model,
		"prompt_chars", promptChars,
	)
}

// LogProviderResponse logs a provider response.
func LogProviderResponse(ctx context.Context, logger *Logger, provider, model string, outputTokens int, latency time.Duration) {
	logger.DebugContext(ctx, "provider response",
		"provider", provider,
		"model", model,
		"output_tokens", outputTokens,
		"latency_ms", latency.Milliseconds(),
	)
}
