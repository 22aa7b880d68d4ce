// Package provider holds the registry of configured model providers.
package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	domainprovider "github.com/jbctechsolutions/webdistill/internal/domain/provider"
)

// Registry manages the registration and lookup of model providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ports.ProviderPort
	order     []string // registration order
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]ports.ProviderPort),
	}
}

// Register adds a provider to the registry.
// A provider with the same name is replaced.
func (r *Registry) Register(provider ports.ProviderPort) error {
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}

	info := provider.Info()
	if info.Name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[info.Name]; !exists {
		r.order = append(r.order, info.Name)
	}

	r.providers[info.Name] = provider
	return nil
}

// Get retrieves a provider by name, or nil.
func (r *Registry) Get(name string) ports.ProviderPort {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// GetRequired retrieves a provider by name. A missing provider is a
// configuration error: the model names a provider that was not enabled.
func (r *Registry) GetRequired(name string) (ports.ProviderPort, error) {
	provider := r.Get(name)
	if provider == nil {
		return nil, notConfigured(name)
	}
	return provider, nil
}

// ForModel returns the provider serving a catalog model.
func (r *Registry) ForModel(model domainprovider.ModelConfig) (ports.ProviderPort, error) {
	p := r.Get(model.Provider)
	if p == nil {
		return nil, errors.WithContext(notConfigured(model.Provider), "model", model.ID)
	}
	return p, nil
}

func notConfigured(name string) *errors.DistillError {
	return errors.WithContext(
		errors.NewError(errors.CodeConfiguration, fmt.Sprintf("provider %q is not configured", name), nil),
		"provider", name)
}

// List returns all registered provider names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// HealthReport pairs a provider name with its health status.
type HealthReport struct {
	Provider string
	Status   *ports.HealthStatus
}

// CheckHealth runs HealthCheck on every provider in registration order.
func (r *Registry) CheckHealth(ctx context.Context) []HealthReport {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.RUnlock()

	reports := make([]HealthReport, 0, len(names))
	for _, name := range names {
		status, err := r.Get(name).HealthCheck(ctx, "")
		if err != nil {
			status = &ports.HealthStatus{Healthy: false, Message: err.Error()}
		}
		reports = append(reports, HealthReport{Provider: name, Status: status})
	}
	return reports
}
