package provider

import (
	"fmt"
	"sync"

	"github.com/pders01/headlines/internal/config"
)

// Registry holds the configured providers in priority order.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register appends a provider at the lowest priority. A provider with the
// same name replaces the earlier one in place.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.providers {
		if existing.Name() == p.Name() {
			r.providers[i] = p
			return
		}
	}
	r.providers = append(r.providers, p)
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Providers returns all registered providers, highest priority first.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Provider(nil), r.providers...)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// New builds the named adapter from its configuration section.
func New(name string, cfg config.ProvidersConfig, opts Options) (Provider, error) {
	pc, ok := cfg.Provider(name)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = cfg.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = cfg.UserAgent
	}

	switch name {
	case config.ProviderNewsAPI:
		return NewNewsAPI(pc, opts), nil
	case config.ProviderGNews:
		return NewGNews(pc, opts), nil
	case config.ProviderNewsCatcher:
		return NewNewsCatcher(pc, opts), nil
	case config.ProviderGoogleNews:
		return NewGoogleNews(pc, opts), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// NewRegistryFromConfig builds one adapter per entry of cfg.Order, in that
// order. Adapters without credentials are still registered; they fail fast
// on every call.
func NewRegistryFromConfig(cfg config.ProvidersConfig, opts Options) (*Registry, error) {
	r := NewRegistry()
	for _, name := range cfg.Order {
		p, err := New(name, cfg, opts)
		if err != nil {
			return nil, err
		}
		r.Register(p)
	}
	return r, nil
}
