package providers

import (
	"fmt"
	"sync"

	"github.com/concordhq/concord/pkg/models"
)

// Registry holds the set of active adapters, keyed by provider tag. A
// provider with no credentials configured is simply absent from the
// registry rather than present-but-erroring.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.ProviderTag]Adapter
}

// NewRegistry builds a Registry from a credential set, constructing one
// adapter per provider that has a non-empty API key. Missing credentials
// mean that provider's adapter is inactive and absent from the registry.
func NewRegistry(creds []models.ProviderCredentials) *Registry {
	r := &Registry{adapters: make(map[models.ProviderTag]Adapter)}
	for _, c := range creds {
		if c.APIKey == "" {
			continue
		}
		switch c.Provider {
		case models.ProviderOpenAI:
			r.adapters[c.Provider] = NewOpenAIAdapter(c.APIKey)
		case models.ProviderAnthropic:
			r.adapters[c.Provider] = NewAnthropicAdapter(c.APIKey, "")
		case models.ProviderGrok:
			r.adapters[c.Provider] = NewGrokAdapter(c.APIKey)
		case models.ProviderDeepSeek:
			r.adapters[c.Provider] = NewDeepSeekAdapter(c.APIKey)
		}
	}
	return r
}

// Get returns the adapter for tag, or an error if that provider is inactive.
func (r *Registry) Get(tag models.ProviderTag) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[tag]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", tag)
	}
	return a, nil
}

// Active returns the tags of every configured provider, in stable order.
func (r *Registry) Active() []models.ProviderTag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order := []models.ProviderTag{models.ProviderOpenAI, models.ProviderGrok, models.ProviderAnthropic, models.ProviderDeepSeek}
	out := make([]models.ProviderTag, 0, len(order))
	for _, tag := range order {
		if _, ok := r.adapters[tag]; ok {
			out = append(out, tag)
		}
	}
	return out
}

// ProviderForModel looks up which active adapter's catalog advertises
// modelID, so callers holding only a model id can resolve its adapter.
func (r *Registry) ProviderForModel(modelID string) (models.ProviderTag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tag := range []models.ProviderTag{models.ProviderOpenAI, models.ProviderGrok, models.ProviderAnthropic, models.ProviderDeepSeek} {
		a, ok := r.adapters[tag]
		if !ok {
			continue
		}
		for _, m := range a.Models() {
			if m.ID == modelID {
				return tag, nil
			}
		}
	}
	return "", fmt.Errorf("no active provider serves model %q", modelID)
}

// Catalog returns the combined model catalog across every active adapter.
func (r *Registry) Catalog() []models.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ModelDescriptor
	for _, tag := range r.Active() {
		out = append(out, r.adapters[tag].Models()...)
	}
	return out
}
