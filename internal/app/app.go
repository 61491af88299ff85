// Package app wires configuration into a running set of components.
package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pders01/headlines/internal/aggregator"
	"github.com/pders01/headlines/internal/api"
	"github.com/pders01/headlines/internal/cache"
	"github.com/pders01/headlines/internal/config"
	"github.com/pders01/headlines/internal/debuglog"
	"github.com/pders01/headlines/internal/personalize"
	"github.com/pders01/headlines/internal/provider"
	"github.com/pders01/headlines/internal/search"
	"github.com/pders01/headlines/internal/storage"
	"github.com/pders01/headlines/internal/validation"
)

type Options struct {
	// Providers replaces the adapters built from configuration.
	Providers []provider.Provider
	// HTTPClient is shared by the configured adapters.
	HTTPClient *http.Client
	// AllowPrivateURLs lets saved articles point at local or private hosts.
	AllowPrivateURLs bool
}

type App struct {
	Config     *config.Config
	Cache      *cache.Store
	Providers  *provider.Registry
	Aggregator *aggregator.Aggregator
	Store      *storage.Store
	Search     *search.BleveEngine
	Headlines  *personalize.Service
}

// SetupLogging applies the log section of the configuration.
func SetupLogging(cfg config.LogConfig) error {
	return debuglog.Configure(debuglog.Options{
		Level:  debuglog.ParseLogLevel(cfg.Level),
		File:   cfg.File,
		Format: cfg.Format,
	})
}

// New opens storage and the search index and builds the provider chain.
// Close releases everything New acquired.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg.Database.Path == "" {
		return nil, errors.New("database path is required")
	}

	a := &App{Config: cfg}
	a.Cache = cache.New(cache.Options{
		DefaultTTL:    cfg.Cache.NewsTTL,
		SweepInterval: cfg.Cache.SweepInterval,
	})

	if len(opts.Providers) > 0 {
		a.Providers = provider.NewRegistry(opts.Providers...)
	} else {
		registry, err := provider.NewRegistryFromConfig(cfg.Providers, provider.Options{
			Cache:    a.Cache,
			CacheTTL: cfg.Cache.NewsTTL,
			Client:   opts.HTTPClient,
			Breaker:  cfg.Breaker,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("building providers: %w", err)
		}
		a.Providers = registry
	}
	a.Aggregator = aggregator.New(a.Providers)

	store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store
	if opts.AllowPrivateURLs {
		store.SetURLValidator(validation.NewPermissiveArticleURLValidator())
	}

	idx, err := search.NewBleveEngine(store, cfg.Database.SearchIndex)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Search = idx
	store.AddListener(idx)

	a.Headlines = personalize.NewService(store, a.Aggregator, a.Cache, cfg.Cache.PreferencesTTL)

	debuglog.Infof("providers: %v", a.Providers.Names())
	return a, nil
}

// Server builds the HTTP surface over the app's components.
func (a *App) Server(version string) *api.Server {
	return api.NewServer(a.Config.Server, api.Deps{
		News:      a.Headlines,
		Store:     a.Store,
		Search:    a.Search,
		Cache:     a.Cache,
		Providers: a.Providers,
		Version:   version,
	})
}

func (a *App) Close() error {
	var errs []error
	if a.Search != nil {
		errs = append(errs, a.Search.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
	return errors.Join(errs...)
}
