package adapters

import (
	"strings"

	"github.com/standhq/stand/internal/ingest/domain"
)

// Registry is the closed dispatch table of webhook providers.
type Registry struct {
	adapters map[string]domain.Adapter
}

func NewRegistry(adapters ...domain.Adapter) *Registry {
	registry := &Registry{adapters: map[string]domain.Adapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(adapter.Provider()))
		if provider == "" {
			continue
		}
		registry.adapters[provider] = adapter
	}
	return registry
}

func (r *Registry) Get(provider string) (domain.Adapter, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return adapter, nil
}
