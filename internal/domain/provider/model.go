// Package provider contains domain types for model providers and the model catalog.
package provider

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
)

// Provider names
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ModelConfig identifies a model and the size of its context window.
// It is resolved once per run and never mutated afterwards.
type ModelConfig struct {
	ID        string `json:"id" yaml:"id"`
	Provider  string `json:"provider" yaml:"provider"`
	MaxTokens int    `json:"max_tokens" yaml:"max_tokens"`
}

// NewModelConfig creates a ModelConfig.
func NewModelConfig(id, provider string, maxTokens int) ModelConfig {
	return ModelConfig{ID: id, Provider: provider, MaxTokens: maxTokens}
}

// Validate checks that the model config is usable.
func (m ModelConfig) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.NewError(errors.CodeValidation, "model id is required", nil)
	}
	if m.Provider == "" {
		return errors.NewError(errors.CodeValidation,
			fmt.Sprintf("model %s: provider is required", m.ID), nil)
	}
	if m.MaxTokens <= 0 {
		return errors.NewError(errors.CodeValidation,
			fmt.Sprintf("model %s: max tokens must be positive, got %d", m.ID, m.MaxTokens), nil)
	}
	return nil
}

// builtinModels lists the context windows of the models webdistill knows
// without configuration.
var builtinModels = []ModelConfig{
	{ID: "gpt-4o", Provider: ProviderOpenAI, MaxTokens: 128000},
	{ID: "gpt-4o-mini", Provider: ProviderOpenAI, MaxTokens: 128000},
	{ID: "gpt-4-turbo", Provider: ProviderOpenAI, MaxTokens: 128000},
	{ID: "gpt-4", Provider: ProviderOpenAI, MaxTokens: 8192},
	{ID: "gpt-4-32k", Provider: ProviderOpenAI, MaxTokens: 32768},
	{ID: "gpt-3.5-turbo", Provider: ProviderOpenAI, MaxTokens: 16385},
	{ID: "gpt-3.5-turbo-instruct", Provider: ProviderOpenAI, MaxTokens: 4096},
	{ID: "o1", Provider: ProviderOpenAI, MaxTokens: 200000},
	{ID: "o1-mini", Provider: ProviderOpenAI, MaxTokens: 128000},
	{ID: "claude-3-5-sonnet-20241022", Provider: ProviderAnthropic, MaxTokens: 200000},
	{ID: "claude-3-5-haiku-20241022", Provider: ProviderAnthropic, MaxTokens: 200000},
	{ID: "claude-3-opus-20240229", Provider: ProviderAnthropic, MaxTokens: 200000},
	{ID: "claude-3-haiku-20240307", Provider: ProviderAnthropic, MaxTokens: 200000},
	{ID: "llama3", Provider: ProviderOllama, MaxTokens: 8192},
	{ID: "llama3.1", Provider: ProviderOllama, MaxTokens: 128000},
	{ID: "mistral", Provider: ProviderOllama, MaxTokens: 32768},
	{ID: "qwen2.5", Provider: ProviderOllama, MaxTokens: 32768},
}

// Catalog maps model identifiers to their configuration.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]ModelConfig
}

// NewCatalog creates a catalog seeded with the built-in models.
func NewCatalog() *Catalog {
	c := &Catalog{models: make(map[string]ModelConfig, len(builtinModels))}
	for _, m := range builtinModels {
		c.models[m.ID] = m
	}
	return c
}

// Register adds or replaces a model entry.
func (c *Catalog) Register(m ModelConfig) error {
	if err := m.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[m.ID] = m
	return nil
}

// Lookup resolves a model identifier. Unknown identifiers fail with ErrUnknownModel.
func (c *Catalog) Lookup(id string) (ModelConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.models[id]
	if !ok {
		return ModelConfig{}, errors.WithContext(
			errors.NewError(errors.CodeNotFound, fmt.Sprintf("model %q is not in the catalog", id), errors.ErrUnknownModel),
			"model", id)
	}
	return m, nil
}

// Models returns all entries sorted by provider then id.
func (c *Catalog) Models() []ModelConfig {
	c.mu.RLock()
	out := make([]ModelConfig, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Providers returns the distinct provider names present in the catalog.
func (c *Catalog) Providers() []string {
	var names []string
	for _, m := range c.Models() {
		if !slices.Contains(names, m.Provider) {
			names = append(names, m.Provider)
		}
	}
	return names
}
