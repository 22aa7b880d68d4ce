// Package application provides application-level services and dependency injection.
package application

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jbctechsolutions/webdistill/internal/adapters/cache"
	"github.com/jbctechsolutions/webdistill/internal/adapters/convert"
	"github.com/jbctechsolutions/webdistill/internal/adapters/fetch"
	adapterProvider "github.com/jbctechsolutions/webdistill/internal/adapters/provider"
	"github.com/jbctechsolutions/webdistill/internal/adapters/sink"
	"github.com/jbctechsolutions/webdistill/internal/application/crawl"
	"github.com/jbctechsolutions/webdistill/internal/application/pipeline"
	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	appProvider "github.com/jbctechsolutions/webdistill/internal/application/provider"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
	"github.com/jbctechsolutions/webdistill/internal/domain/provider"
	"github.com/jbctechsolutions/webdistill/internal/domain/usage"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/config"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/logging"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/storage"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/tokenizer"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/tracing"
)

// Container holds the long-lived dependencies of the application and
// builds the per-run object graph.
type Container struct {
	config  *config.Config
	verbose bool

	// Observability
	logger *logging.Logger
	tracer *tracing.Tracer

	// Models and providers
	catalog             *provider.Catalog
	prices              *provider.PriceList
	providerRegistry    *adapterProvider.Registry
	providerInitializer *appProvider.Initializer

	// Page sources
	fetcher   ports.FetcherPort
	converter ports.ConverterPort
	pageCache ports.PageCachePort
}

// Option configures a Container.
type Option func(*Container)

// WithInitializerOptions passes options to the provider initializer.
func WithInitializerOptions(opts ...appProvider.Option) Option {
	return func(c *Container) {
		c.providerInitializer = appProvider.NewInitializer(c.providerRegistry, opts...)
	}
}

// WithFetcher replaces the page fetcher.
func WithFetcher(f ports.FetcherPort) Option {
	return func(c *Container) {
		c.fetcher = f
	}
}

// NewContainer creates a container from cfg. A nil cfg uses the defaults.
func NewContainer(cfg *config.Config, verbose bool, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	c := &Container{
		config:           cfg,
		verbose:          verbose,
		providerRegistry: adapterProvider.NewRegistry(),
	}
	c.providerInitializer = appProvider.NewInitializer(c.providerRegistry)
	for _, opt := range opts {
		opt(c)
	}

	if err := c.initObservability(); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	if err := c.initCatalog(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize model catalog: %w", err)
	}

	if err := c.providerInitializer.InitFromConfig(cfg); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := c.initSources(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize page sources: %w", err)
	}
	return c, nil
}

// initObservability sets up the logger and tracer.
func (c *Container) initObservability() error {
	level := logging.Level(c.config.Logging.Level)
	if level == "" {
		level = logging.LevelInfo
	}
	if c.verbose {
		level = logging.LevelDebug
	}

	format := logging.FormatText
	if c.config.Logging.Format == "json" {
		format = logging.FormatJSON
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.Format = format
	c.logger = logging.New(logCfg)

	tc := c.config.Tracing
	if !tc.Enabled || tc.ExporterType == "" || tc.ExporterType == string(tracing.ExporterNone) {
		c.tracer = tracing.Noop()
		return nil
	}

	tracingCfg := tracing.DefaultConfig()
	tracingCfg.Enabled = true
	tracingCfg.ExporterType = tracing.ExporterType(tc.ExporterType)
	tracingCfg.OTLPEndpoint = tc.OTLPEndpoint
	tracingCfg.SampleRate = tc.SampleRate
	if tc.ServiceName != "" {
		tracingCfg.ServiceName = tc.ServiceName
	}
	if tracingCfg.ExporterType == tracing.ExporterStdout {
		// keep stdout free for records written to "-"
		tracingCfg.Output = os.Stderr
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracer, err := tracing.New(ctx, tracingCfg)
	if err != nil {
		return err
	}
	c.tracer = tracer
	return nil
}

// initCatalog registers custom models over the built-in ones.
func (c *Container) initCatalog() error {
	c.catalog = provider.NewCatalog()
	for _, m := range c.config.Model.Custom {
		if err := c.catalog.Register(m.ToModel()); err != nil {
			return fmt.Errorf("custom model %q: %w", m.ID, err)
		}
	}
	c.prices = provider.NewPriceList(c.config.Prices())
	return nil
}

// initSources builds the fetcher and converter, putting the page cache in
// front of the fetcher when it is enabled.
func (c *Container) initSources() error {
	fc := c.config.Fetch
	if c.fetcher == nil {
		c.fetcher = &fetch.Router{
			HTTP: fetch.NewHTTPFetcher(fetch.Config{
				Timeout:      fc.Timeout,
				UserAgent:    fc.UserAgent,
				MaxBodyBytes: fc.MaxBodyBytes,
			}),
			File: &fetch.FileFetcher{MaxBodyBytes: fc.MaxBodyBytes},
		}
	}
	c.converter = &convert.Converter{Readability: c.config.Pipeline.Readability}

	if !fc.Cache.Enabled {
		return nil
	}
	memory := cache.NewMemoryCache(fc.Cache.MaxBytes, 0)
	c.pageCache = memory
	if fc.Cache.Path != "" {
		persistent, err := cache.OpenSQLiteCache(fc.Cache.Path, fc.Cache.MaxBytes)
		if err != nil {
			return err
		}
		c.pageCache = cache.NewCompositeCache(memory, persistent)
	}
	c.fetcher = cache.NewCachingFetcher(c.fetcher, c.pageCache, fc.Cache.TTL, c.logger)
	return nil
}

// RunOptions overrides configuration for a single run. Zero fields keep
// the configured value.
type RunOptions struct {
	Model           string
	Policy          string
	Instructions    string
	Format          string
	Sink            string
	OutputPath      string
	PageConcurrency int
	// ContinueOnAuthError keeps going after a credential failure.
	ContinueOnAuthError bool
}

// Run is a prepared run: its runner and the sink records go to.
type Run struct {
	ID     string
	Model  provider.ModelConfig
	Policy page.Policy
	Runner *crawl.Runner
	Sink   ports.SinkPort
}

// Close releases the run's sink.
func (r *Run) Close() error {
	if r.Sink == nil {
		return nil
	}
	return r.Sink.Close()
}

// NewRun resolves the model, provider and sink for one run and wires the
// pipeline. Configuration problems surface here, before any page is fetched.
func (c *Container) NewRun(opts RunOptions) (*Run, error) {
	pc := c.config.Pipeline

	modelID := firstNonEmpty(opts.Model, c.config.Model.ID)
	model, err := c.catalog.Lookup(modelID)
	if err != nil {
		return nil, err
	}

	policy, err := page.ParsePolicy(firstNonEmpty(opts.Policy, pc.Policy))
	if err != nil {
		return nil, err
	}
	format, err := page.ParseFormat(firstNonEmpty(opts.Format, pc.Format))
	if err != nil {
		return nil, err
	}

	instructions := opts.Instructions
	if instructions == "" {
		if instructions, err = pc.ResolveInstructions(); err != nil {
			return nil, errors.NewError(errors.CodeConfiguration, "failed to resolve instructions", err)
		}
	}
	if instructions == "" {
		return nil, errors.NewError(errors.CodeConfiguration, "no instructions configured", nil)
	}

	prov, err := c.providerRegistry.ForModel(model)
	if err != nil {
		var de *errors.DistillError
		if st, ok := c.providerInitializer.StatusOf(model.Provider); ok && st.Reason != "" && errors.As(err, &de) {
			return nil, errors.WithContext(de, "reason", st.Reason)
		}
		return nil, err
	}

	counter, err := tokenizer.ForModel(model.ID)
	if err != nil {
		c.logger.Warn("tokenizer unavailable, using estimate", "model", model.ID, "error", err.Error())
	}

	runID := uuid.New().String()
	ledger := usage.NewLedger()

	runner := pipeline.NewRunner(prov, model,
		pipeline.WithMaxOutputTokens(c.config.Model.MaxOutputTokens),
		pipeline.WithTemperature(c.config.Model.Temperature),
		pipeline.WithRunnerLogger(c.logger),
		pipeline.WithRunnerTracer(c.tracer),
	)

	adapterOpts := []pipeline.AdapterOption{
		pipeline.WithAdapterLogger(c.logger),
		pipeline.WithAdapterTracer(c.tracer),
	}
	if c.config.Merge.Strategy == config.MergeModel {
		adapterOpts = append(adapterOpts, pipeline.WithMerger(pipeline.NewModelMerger(runner, c.config.Merge.Template)))
	}
	adapter := pipeline.NewAdapter(counter, runner, pipeline.AdapterConfig{
		Policy:         policy,
		MaxConcurrency: pc.ChunkConcurrency,
	}, adapterOpts...)

	out, err := c.OpenSink(firstNonEmpty(opts.Sink, c.config.Storage.Sink), firstNonEmpty(opts.OutputPath, c.config.Storage.Path))
	if err != nil {
		return nil, err
	}

	processor := pipeline.NewProcessor(adapter, pipeline.ProcessorConfig{
		RunID:        runID,
		Instructions: instructions,
		Credential:   c.config.Usage.Credential,
		Limits: usage.Limits{
			Ceilings: c.config.Usage.Ceilings,
			Default:  c.config.Usage.DefaultCeiling,
		},
		Ledger: ledger,
		Sink:   out,
		Prices: c.prices,
	}, c.logger, c.tracer)

	concurrency := pc.PageConcurrency
	if opts.PageConcurrency > 0 {
		concurrency = opts.PageConcurrency
	}

	crawlRunner := crawl.NewRunner(c.fetcher, c.converter, processor, crawl.Config{
		RunID:               runID,
		Model:               model.ID,
		Policy:              policy,
		Format:              format,
		PageConcurrency:     concurrency,
		Ledger:              ledger,
		ContinueOnAuthError: opts.ContinueOnAuthError,
	}, c.logger, c.tracer)

	return &Run{ID: runID, Model: model, Policy: policy, Runner: crawlRunner, Sink: out}, nil
}

// OpenSink opens the record sink of the given kind.
func (c *Container) OpenSink(kind, path string) (ports.SinkPort, error) {
	switch kind {
	case config.SinkJSONL, "":
		if path == "" {
			path = config.DefaultStoragePath
		}
		return sink.NewJSONLSink(path)
	case config.SinkSQLite:
		return c.openSQLite(path)
	case config.SinkNone:
		return sink.Discard{}, nil
	default:
		return nil, errors.WithContext(errors.NewError(errors.CodeConfiguration, fmt.Sprintf("unknown sink %q", kind), nil), "sink", kind)
	}
}

// OpenResultStore opens the sqlite result store at path. An empty path uses
// the configured path when the configured sink is sqlite, and the default
// database otherwise.
func (c *Container) OpenResultStore(path string) (ports.ResultStoragePort, error) {
	if path == "" && c.config.Storage.Sink == config.SinkSQLite {
		path = c.config.Storage.Path
	}
	return c.openSQLite(path)
}

func (c *Container) openSQLite(path string) (*storage.ResultRepository, error) {
	repo, err := storage.OpenResultRepository(path)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// OpenPageCache opens the persistent page cache at path, or at the
// configured cache path, or at ~/.webdistill/cache.db. The caller closes it.
func (c *Container) OpenPageCache(path string) (ports.PageCachePort, error) {
	return cache.OpenSQLiteCache(firstNonEmpty(path, c.config.Fetch.Cache.Path), c.config.Fetch.Cache.MaxBytes)
}

// PageCache returns the cache in front of the fetcher, or nil when disabled.
func (c *Container) PageCache() ports.PageCachePort {
	return c.pageCache
}

// Close releases the page cache and flushes the tracer.
func (c *Container) Close() error {
	if c.pageCache != nil {
		_ = c.pageCache.Close()
		c.pageCache = nil
	}
	if c.tracer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.tracer.Shutdown(ctx)
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the application logger.
func (c *Container) Logger() *logging.Logger {
	return c.logger
}

// Tracer returns the tracer.
func (c *Container) Tracer() *tracing.Tracer {
	return c.tracer
}

// Catalog returns the model catalog.
func (c *Container) Catalog() *provider.Catalog {
	return c.catalog
}

// Prices returns the price list.
func (c *Container) Prices() *provider.PriceList {
	return c.prices
}

// ProviderRegistry returns the provider registry.
func (c *Container) ProviderRegistry() *adapterProvider.Registry {
	return c.providerRegistry
}

// ProviderInitializer returns the provider initializer.
func (c *Container) ProviderInitializer() *appProvider.Initializer {
	return c.providerInitializer
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
