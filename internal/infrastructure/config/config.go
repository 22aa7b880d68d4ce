// Package config provides configuration structs and utilities for webdistill.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/domain/page"
	"github.com/jbctechsolutions/webdistill/internal/domain/provider"
)

// Config represents the root configuration.
type Config struct {
	Model     ModelConfig            `yaml:"model" toml:"model"`
	Pipeline  PipelineConfig         `yaml:"pipeline" toml:"pipeline"`
	Merge     MergeConfig            `yaml:"merge" toml:"merge"`
	Usage     UsageConfig            `yaml:"usage" toml:"usage"`
	Providers ProviderConfigs        `yaml:"providers" toml:"providers"`
	Fetch     FetchConfig            `yaml:"fetch" toml:"fetch"`
	Storage   StorageConfig          `yaml:"storage" toml:"storage"`
	Pricing   map[string]PriceConfig `yaml:"pricing,omitempty" toml:"pricing,omitempty"`
	Logging   LoggingConfig          `yaml:"logging" toml:"logging"`
	Tracing   TracingConfig          `yaml:"tracing" toml:"tracing"`
}

// ModelConfig selects the model and registers custom ones.
type ModelConfig struct {
	ID              string        `yaml:"id" toml:"id"`
	MaxOutputTokens int           `yaml:"max_output_tokens" toml:"max_output_tokens"`
	Temperature     float32       `yaml:"temperature" toml:"temperature"`
	Custom          []CustomModel `yaml:"custom,omitempty" toml:"custom,omitempty"`
}

// CustomModel adds a model to the built-in catalog, or overrides one.
type CustomModel struct {
	ID        string `yaml:"id" toml:"id"`
	Provider  string `yaml:"provider" toml:"provider"`
	MaxTokens int    `yaml:"max_tokens" toml:"max_tokens"`
}

// ToModel converts the entry into a catalog model.
func (m CustomModel) ToModel() provider.ModelConfig {
	return provider.NewModelConfig(m.ID, m.Provider, m.MaxTokens)
}

// PipelineConfig holds page-processing settings.
type PipelineConfig struct {
	// Policy is skip, truncate or split. Empty is allowed until a page
	// does not fit.
	Policy           string `yaml:"policy" toml:"policy"`
	Instructions     string `yaml:"instructions,omitempty" toml:"instructions,omitempty"`
	InstructionsFile string `yaml:"instructions_file,omitempty" toml:"instructions_file,omitempty"`
	Format           string `yaml:"format" toml:"format"`
	ChunkConcurrency int    `yaml:"chunk_concurrency" toml:"chunk_concurrency"` // 0 is unbounded
	PageConcurrency  int    `yaml:"page_concurrency" toml:"page_concurrency"`
	Readability      bool   `yaml:"readability" toml:"readability"`
}

// MergeConfig selects how split answers are combined.
type MergeConfig struct {
	Strategy string `yaml:"strategy" toml:"strategy"` // newline, model
	Template string `yaml:"template,omitempty" toml:"template,omitempty"`
}

// UsageConfig holds per-credential token ceilings.
type UsageConfig struct {
	DefaultCeiling int            `yaml:"default_ceiling" toml:"default_ceiling"`
	Ceilings       map[string]int `yaml:"ceilings,omitempty" toml:"ceilings,omitempty"`
	// Credential overrides the credential name reported by the provider.
	Credential string `yaml:"credential,omitempty" toml:"credential,omitempty"`
}

// ProviderConfigs holds configuration for the supported providers.
type ProviderConfigs struct {
	OpenAI    CloudConfig  `yaml:"openai" toml:"openai"`
	Anthropic CloudConfig  `yaml:"anthropic" toml:"anthropic"`
	Ollama    OllamaConfig `yaml:"ollama" toml:"ollama"`
}

// CloudConfig holds configuration for a hosted provider. The key itself
// is read from the environment variable named by APIKeyEnv.
type CloudConfig struct {
	Enabled    bool          `yaml:"enabled" toml:"enabled"`
	BaseURL    string        `yaml:"base_url,omitempty" toml:"base_url,omitempty"` // proxies and compatible servers
	APIKeyEnv  string        `yaml:"api_key_env" toml:"api_key_env"`
	Credential string        `yaml:"credential,omitempty" toml:"credential,omitempty"`
	Timeout    time.Duration `yaml:"timeout" toml:"timeout"`
}

// APIKey reads the key from the environment.
func (c CloudConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// OllamaConfig holds configuration for a local Ollama server.
type OllamaConfig struct {
	Enabled       bool          `yaml:"enabled" toml:"enabled"`
	URL           string        `yaml:"url" toml:"url"`
	Timeout       time.Duration `yaml:"timeout" toml:"timeout"`
	ContextWindow int           `yaml:"context_window,omitempty" toml:"context_window,omitempty"`
}

// FetchConfig holds page retrieval settings.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout" toml:"timeout"`
	UserAgent    string        `yaml:"user_agent" toml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" toml:"max_body_bytes"`
	Cache        CacheConfig   `yaml:"cache" toml:"cache"`
}

// CacheConfig controls the fetched-page cache. Pages are kept in memory for
// the run; with a path they also persist in SQLite between runs.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" toml:"enabled"`
	TTL      time.Duration `yaml:"ttl" toml:"ttl"`
	Path     string        `yaml:"path,omitempty" toml:"path,omitempty"`
	MaxBytes int64         `yaml:"max_bytes" toml:"max_bytes"` // per tier, 0 is unbounded
}

// StorageConfig selects where records go.
type StorageConfig struct {
	Sink string `yaml:"sink" toml:"sink"` // jsonl, sqlite, none
	Path string `yaml:"path" toml:"path"`
}

// PriceConfig is a per-model price override in USD per 1K tokens.
type PriceConfig struct {
	Input  float64 `yaml:"input" toml:"input"`
	Output float64 `yaml:"output" toml:"output"`
}

// LoggingConfig holds configuration for application logging.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, text
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" toml:"enabled"`
	ExporterType string  `yaml:"exporter_type" toml:"exporter_type"` // none, stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint,omitempty" toml:"otlp_endpoint,omitempty"`
	SampleRate   float64 `yaml:"sample_rate" toml:"sample_rate"`
	ServiceName  string  `yaml:"service_name" toml:"service_name"`
}

// Default configuration values.
const (
	DefaultModel            = "gpt-4o-mini"
	DefaultMaxOutputTokens  = 1024
	DefaultFormat           = "markdown"
	DefaultPageConcurrency  = 4
	DefaultChunkConcurrency = 0 // unbounded
	DefaultMergeStrategy    = MergeNewline

	DefaultOllamaURL      = "http://localhost:11434"
	DefaultCloudTimeout   = 120 * time.Second
	DefaultOllamaTimeout  = 5 * time.Minute
	DefaultFetchTimeout   = 30 * time.Second
	DefaultFetchUserAgent = "webdistill/0.3"
	DefaultMaxBodyBytes   = 5 << 20
	DefaultCacheTTL       = 24 * time.Hour
	DefaultCacheMaxBytes  = 256 << 20

	DefaultSink        = SinkJSONL
	DefaultStoragePath = "results.jsonl"

	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultTracingExporterType = "none"
	DefaultTracingSampleRate   = 1.0
	DefaultTracingServiceName  = "webdistill"
)

// Merge strategies.
const (
	MergeNewline = "newline"
	MergeModel   = "model"
)

// Sinks.
const (
	SinkJSONL  = "jsonl"
	SinkSQLite = "sqlite"
	SinkNone   = "none"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

var validTracingExporterTypes = map[string]bool{
	"none":   true,
	"stdout": true,
	"otlp":   true,
}

// NewDefaultConfig creates a new Config with default values. No policy is
// set: a page that does not fit fails until one is chosen.
func NewDefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			ID:              DefaultModel,
			MaxOutputTokens: DefaultMaxOutputTokens,
		},
		Pipeline: PipelineConfig{
			Format:           DefaultFormat,
			PageConcurrency:  DefaultPageConcurrency,
			ChunkConcurrency: DefaultChunkConcurrency,
			Readability:      true,
		},
		Merge: MergeConfig{
			Strategy: DefaultMergeStrategy,
		},
		Providers: ProviderConfigs{
			OpenAI: CloudConfig{
				Enabled:   true,
				APIKeyEnv: "OPENAI_API_KEY",
				Timeout:   DefaultCloudTimeout,
			},
			Anthropic: CloudConfig{
				Enabled:   true,
				APIKeyEnv: "ANTHROPIC_API_KEY",
				Timeout:   DefaultCloudTimeout,
			},
			Ollama: OllamaConfig{
				Enabled: true,
				URL:     DefaultOllamaURL,
				Timeout: DefaultOllamaTimeout,
			},
		},
		Fetch: FetchConfig{
			Timeout:      DefaultFetchTimeout,
			UserAgent:    DefaultFetchUserAgent,
			MaxBodyBytes: DefaultMaxBodyBytes,
			Cache: CacheConfig{
				TTL:      DefaultCacheTTL,
				MaxBytes: DefaultCacheMaxBytes,
			},
		},
		Storage: StorageConfig{
			Sink: DefaultSink,
			Path: DefaultStoragePath,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Tracing: TracingConfig{
			ExporterType: DefaultTracingExporterType,
			SampleRate:   DefaultTracingSampleRate,
			ServiceName:  DefaultTracingServiceName,
		},
	}
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Model.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}
	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}
	if err := c.Merge.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("merge: %w", err))
	}
	if err := c.Usage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("usage: %w", err))
	}
	if err := c.Providers.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("providers: %w", err))
	}
	if err := c.Fetch.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("fetch: %w", err))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	for id, p := range c.Pricing {
		if p.Input < 0 || p.Output < 0 {
			errs = append(errs, fmt.Errorf("pricing: %s: prices must be non-negative", id))
		}
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks if the ModelConfig is valid.
func (m *ModelConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(m.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if m.MaxOutputTokens < 0 {
		errs = append(errs, errors.New("max_output_tokens must be non-negative"))
	}
	if m.Temperature < 0 || m.Temperature > 2 {
		errs = append(errs, errors.New("temperature must be between 0 and 2"))
	}
	for _, cm := range m.Custom {
		if err := cm.ToModel().Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Validate checks if the PipelineConfig is valid.
func (p *PipelineConfig) Validate() error {
	var errs []error

	if _, err := page.ParsePolicy(p.Policy); err != nil {
		errs = append(errs, err)
	}
	if _, err := page.ParseFormat(p.Format); err != nil {
		errs = append(errs, err)
	}
	if p.Instructions != "" && p.InstructionsFile != "" {
		errs = append(errs, errors.New("set either instructions or instructions_file, not both"))
	}
	if p.ChunkConcurrency < 0 {
		errs = append(errs, errors.New("chunk_concurrency must be non-negative"))
	}
	if p.PageConcurrency < 1 {
		errs = append(errs, errors.New("page_concurrency must be at least 1"))
	}

	return errors.Join(errs...)
}

// Validate checks if the MergeConfig is valid.
func (m *MergeConfig) Validate() error {
	switch m.Strategy {
	case "", MergeNewline, MergeModel:
		return nil
	}
	return fmt.Errorf("invalid strategy %q: must be one of newline, model", m.Strategy)
}

// Validate checks if the UsageConfig is valid.
func (u *UsageConfig) Validate() error {
	var errs []error

	if u.DefaultCeiling < 0 {
		errs = append(errs, errors.New("default_ceiling must be non-negative"))
	}
	for cred, ceiling := range u.Ceilings {
		if ceiling < 0 {
			errs = append(errs, fmt.Errorf("ceiling for %s must be non-negative", cred))
		}
	}

	return errors.Join(errs...)
}

// Validate checks if the ProviderConfigs is valid.
func (p *ProviderConfigs) Validate() error {
	var errs []error

	if err := p.OpenAI.Validate("openai"); err != nil {
		errs = append(errs, err)
	}
	if err := p.Anthropic.Validate("anthropic"); err != nil {
		errs = append(errs, err)
	}
	if err := p.Ollama.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ollama: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks if the CloudConfig is valid. A missing key is not a
// configuration error here; the provider rejects the call at run time.
func (c *CloudConfig) Validate(providerName string) error {
	var errs []error

	if c.Enabled && c.APIKeyEnv == "" {
		errs = append(errs, fmt.Errorf("%s: api_key_env is required when enabled", providerName))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%s: timeout must be non-negative", providerName))
	}
	if c.BaseURL != "" {
		if err := validateHTTPURL(c.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("%s: base_url: %w", providerName, err))
		}
	}

	return errors.Join(errs...)
}

// Validate checks if the OllamaConfig is valid.
func (o *OllamaConfig) Validate() error {
	var errs []error

	if o.Enabled {
		if o.URL == "" {
			errs = append(errs, errors.New("url is required when enabled"))
		} else if err := validateHTTPURL(o.URL); err != nil {
			errs = append(errs, fmt.Errorf("url: %w", err))
		}
	}
	if o.Timeout < 0 {
		errs = append(errs, errors.New("timeout must be non-negative"))
	}
	if o.ContextWindow < 0 {
		errs = append(errs, errors.New("context_window must be non-negative"))
	}

	return errors.Join(errs...)
}

// Validate checks if the FetchConfig is valid.
func (f *FetchConfig) Validate() error {
	var errs []error

	if f.Timeout < 0 {
		errs = append(errs, errors.New("timeout must be non-negative"))
	}
	if f.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("max_body_bytes must be non-negative"))
	}
	if f.Cache.Enabled && f.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive when the cache is enabled"))
	}
	if f.Cache.MaxBytes < 0 {
		errs = append(errs, errors.New("cache.max_bytes must be non-negative"))
	}

	return errors.Join(errs...)
}

// Validate checks if the StorageConfig is valid.
func (s *StorageConfig) Validate() error {
	switch s.Sink {
	case SinkNone:
		return nil
	case SinkJSONL, SinkSQLite:
		if s.Path == "" {
			return fmt.Errorf("path is required for the %s sink", s.Sink)
		}
		return nil
	}
	return fmt.Errorf("invalid sink %q: must be one of jsonl, sqlite, none", s.Sink)
}

// Validate checks if the LoggingConfig is valid.
func (l *LoggingConfig) Validate() error {
	var errs []error

	if l.Level != "" && !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", l.Level))
	}
	if l.Format != "" && !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("invalid log format %q: must be one of json, text", l.Format))
	}

	return errors.Join(errs...)
}

// Validate checks if the TracingConfig is valid.
func (t *TracingConfig) Validate() error {
	var errs []error

	if t.Enabled {
		if t.ExporterType != "" && !validTracingExporterTypes[t.ExporterType] {
			errs = append(errs, fmt.Errorf("invalid exporter_type %q: must be one of none, stdout, otlp", t.ExporterType))
		}
		if t.ExporterType == "otlp" && t.OTLPEndpoint == "" {
			errs = append(errs, errors.New("otlp_endpoint is required when exporter_type is 'otlp'"))
		}
		if t.SampleRate < 0 || t.SampleRate > 1 {
			errs = append(errs, errors.New("sample_rate must be between 0.0 and 1.0"))
		}
		if t.ServiceName == "" {
			errs = append(errs, errors.New("service_name is required when tracing is enabled"))
		}
	}

	return errors.Join(errs...)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https scheme")
	}
	return nil
}

// ResolveInstructions returns the instruction text, reading
// InstructionsFile when set.
func (p *PipelineConfig) ResolveInstructions() (string, error) {
	if p.InstructionsFile == "" {
		return p.Instructions, nil
	}
	data, err := os.ReadFile(p.InstructionsFile)
	if err != nil {
		return "", fmt.Errorf("failed to read instructions file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Prices converts the pricing overrides into domain rates.
func (c *Config) Prices() map[string]provider.Rate {
	out := make(map[string]provider.Rate, len(c.Pricing))
	for id, p := range c.Pricing {
		out[id] = provider.Rate{Input: p.Input, Output: p.Output}
	}
	return out
}
