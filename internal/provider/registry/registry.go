package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/davidbz/starray/internal/domain"
	"github.com/davidbz/starray/internal/provider/local"
)

// Registry implements the ProviderRegistry interface.
// Adapters are constructed lazily on first Get and memoized by name.
type Registry struct {
	mu        sync.Mutex
	providers map[string]domain.Provider
	factories map[string]func() (domain.Provider, error)
}

// NewRegistry creates a new provider registry that already serves "local".
func NewRegistry() *Registry {
	r := &Registry{
		mu:        sync.Mutex{},
		providers: make(map[string]domain.Provider),
		factories: make(map[string]func() (domain.Provider, error)),
	}

	r.factories[domain.LocalProvider] = func() (domain.Provider, error) {
		return local.NewProvider(), nil
	}

	return r
}

// RegisterFactory installs a constructor for a provider name.
// The factory runs at most once per successful construction.
func (r *Registry) RegisterFactory(name string, factory func() (domain.Provider, error)) error {
	if name == "" {
		return errors.New("provider name cannot be empty")
	}
	if factory == nil {
		return errors.New("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.factories[name] = factory
	return nil
}

// Register adds a constructed provider to the registry.
func (r *Registry) Register(_ context.Context, provider domain.Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	name := provider.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	if _, exists := r.factories[name]; exists && name != domain.LocalProvider {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name, constructing it on first use.
// Construction is serialized so each name is built once even under concurrent access;
// failed constructions are not cached and are retried on the next Get.
func (r *Registry) Get(_ context.Context, providerName string) (domain.Provider, error) {
	if providerName == "" {
		return nil, &domain.UnsupportedProviderError{Provider: providerName}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if provider, exists := r.providers[providerName]; exists {
		return provider, nil
	}

	factory, exists := r.factories[providerName]
	if !exists {
		return nil, &domain.UnsupportedProviderError{Provider: providerName}
	}

	provider, err := factory()
	if err != nil {
		var unavailable *domain.ProviderUnavailableError
		if errors.As(err, &unavailable) {
			return nil, err
		}
		return nil, &domain.ProviderUnavailableError{Provider: providerName, Reason: err}
	}
	if provider == nil {
		return nil, &domain.ProviderUnavailableError{
			Provider: providerName,
			Reason:   errors.New("factory returned no provider"),
		}
	}

	r.providers[providerName] = provider
	return provider, nil
}

// List returns every provider name the registry can serve, sorted.
func (r *Registry) List(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.providers)+len(r.factories))
	for name := range r.providers {
		names = append(names, name)
	}
	for name := range r.factories {
		if _, built := r.providers[name]; !built {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	return names, nil
}
