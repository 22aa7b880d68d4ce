// Package provider registers model providers from configuration.
package provider

import (
	"fmt"
	"os"
	"sort"
	"sync"

	adapterProvider "github.com/jbctechsolutions/webdistill/internal/adapters/provider"
	"github.com/jbctechsolutions/webdistill/internal/adapters/provider/anthropic"
	"github.com/jbctechsolutions/webdistill/internal/adapters/provider/ollama"
	"github.com/jbctechsolutions/webdistill/internal/adapters/provider/openai"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/config"
)

// ProviderStatus describes the configuration state of a provider.
type ProviderStatus struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // "local" or "cloud"
	Enabled    bool   `json:"enabled"`
	Registered bool   `json:"registered"`
	Endpoint   string `json:"endpoint,omitempty"`
	APIKeyEnv  string `json:"api_key_env,omitempty"`
	APIKeySet  bool   `json:"api_key_set,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Initializer registers the enabled providers of a configuration.
type Initializer struct {
	registry *adapterProvider.Registry
	getenv   func(string) string

	mu     sync.RWMutex
	status map[string]ProviderStatus
}

// Option configures an Initializer.
type Option func(*Initializer)

// WithGetenv replaces os.Getenv for API key lookup.
func WithGetenv(fn func(string) string) Option {
	return func(i *Initializer) {
		i.getenv = fn
	}
}

// NewInitializer creates an Initializer registering into registry.
func NewInitializer(registry *adapterProvider.Registry, opts ...Option) *Initializer {
	i := &Initializer{
		registry: registry,
		getenv:   os.Getenv,
		status:   make(map[string]ProviderStatus),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// InitFromConfig registers every enabled provider. A hosted provider
// without an API key is left unregistered, so a model that needs it fails
// with a configuration error before any page is fetched.
func (i *Initializer) InitFromConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := i.initOllama(cfg.Providers.Ollama); err != nil {
		return fmt.Errorf("ollama: %w", err)
	}
	if err := i.initCloud("openai", cfg.Providers.OpenAI, func(key string) error {
		pc := openai.DefaultConfig(key)
		oc := cfg.Providers.OpenAI
		if oc.BaseURL != "" {
			pc.BaseURL = oc.BaseURL
		}
		if oc.Timeout > 0 {
			pc.Timeout = oc.Timeout
		}
		pc.Credential = oc.Credential
		return i.registry.Register(openai.NewProvider(pc))
	}); err != nil {
		return fmt.Errorf("openai: %w", err)
	}
	if err := i.initCloud("anthropic", cfg.Providers.Anthropic, func(key string) error {
		pc := anthropic.DefaultConfig(key)
		ac := cfg.Providers.Anthropic
		if ac.BaseURL != "" {
			pc.BaseURL = ac.BaseURL
		}
		if ac.Timeout > 0 {
			pc.Timeout = ac.Timeout
		}
		pc.Credential = ac.Credential
		if cfg.Model.MaxOutputTokens > 0 {
			pc.DefaultMaxTokens = cfg.Model.MaxOutputTokens
		}
		return i.registry.Register(anthropic.NewProvider(pc))
	}); err != nil {
		return fmt.Errorf("anthropic: %w", err)
	}

	return nil
}

func (i *Initializer) initOllama(cfg config.OllamaConfig) error {
	url := cfg.URL
	if url == "" {
		url = config.DefaultOllamaURL
	}
	st := ProviderStatus{Name: "ollama", Type: "local", Enabled: cfg.Enabled, Endpoint: url}
	if !cfg.Enabled {
		st.Reason = "disabled"
		i.setStatus(st)
		return nil
	}

	clientOpts := []ollama.ClientOption{ollama.WithBaseURL(url)}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, ollama.WithTimeout(cfg.Timeout))
	}
	providerOpts := []ollama.ProviderOption{ollama.WithClient(ollama.NewClient(clientOpts...))}
	if cfg.ContextWindow > 0 {
		providerOpts = append(providerOpts, ollama.WithContextWindow(cfg.ContextWindow))
	}
	if err := i.registry.Register(ollama.NewProvider(providerOpts...)); err != nil {
		return err
	}

	st.Registered = true
	i.setStatus(st)
	return nil
}

func (i *Initializer) initCloud(name string, cfg config.CloudConfig, register func(key string) error) error {
	st := ProviderStatus{Name: name, Type: "cloud", Enabled: cfg.Enabled, Endpoint: cfg.BaseURL, APIKeyEnv: cfg.APIKeyEnv}
	if !cfg.Enabled {
		st.Reason = "disabled"
		i.setStatus(st)
		return nil
	}

	key := ""
	if cfg.APIKeyEnv != "" {
		key = i.getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		st.Reason = fmt.Sprintf("API key not set (%s)", cfg.APIKeyEnv)
		i.setStatus(st)
		return nil
	}
	st.APIKeySet = true

	if err := register(key); err != nil {
		return err
	}
	if p := i.registry.Get(name); p != nil {
		st.Endpoint = p.Info().BaseURL
	}
	st.Registered = true
	i.setStatus(st)
	return nil
}

func (i *Initializer) setStatus(st ProviderStatus) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status[st.Name] = st
}

// Status returns the state of every known provider, sorted by name.
func (i *Initializer) Status() []ProviderStatus {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]ProviderStatus, 0, len(i.status))
	for _, st := range i.status {
		out = append(out, st)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// StatusOf returns the state of one provider.
func (i *Initializer) StatusOf(name string) (ProviderStatus, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	st, ok := i.status[name]
	return st, ok
}
