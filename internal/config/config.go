package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Provider names, in default priority order.
const (
	ProviderNewsAPI     = "newsapi"
	ProviderGNews       = "gnews"
	ProviderNewsCatcher = "newscatcher"
	ProviderGoogleNews  = "googlenews"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Log       LogConfig       `mapstructure:"log"`
	Keys      KeyConfig       `mapstructure:"keys"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// RequestTimeout bounds each API request; zero disables it.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
	// RateLimit is the number of requests allowed per minute and client IP.
	RateLimit int `mapstructure:"rate_limit" validate:"gte=0"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchIndex string        `mapstructure:"search_index"`
}

type CacheConfig struct {
	NewsTTL        time.Duration `mapstructure:"news_ttl" validate:"gt=0"`
	PreferencesTTL time.Duration `mapstructure:"preferences_ttl" validate:"gt=0"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval" validate:"gte=0"`
}

type ProvidersConfig struct {
	Order       []string       `mapstructure:"order" validate:"dive,oneof=newsapi gnews newscatcher googlenews"`
	Timeout     time.Duration  `mapstructure:"timeout" validate:"gt=0"`
	UserAgent   string         `mapstructure:"user_agent"`
	NewsAPI     ProviderConfig `mapstructure:"newsapi"`
	GNews       ProviderConfig `mapstructure:"gnews"`
	NewsCatcher ProviderConfig `mapstructure:"newscatcher"`
	GoogleNews  ProviderConfig `mapstructure:"googlenews"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// RequestsPerSecond limits upstream calls; zero disables limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
}

type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio" validate:"gte=0,lte=1"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// KeyConfig holds the terminal browser's key bindings.
type KeyConfig struct {
	Modifier string `mapstructure:"modifier" validate:"omitempty,oneof=ctrl alt"`
}

// Provider returns the settings of the named provider.
func (p ProvidersConfig) Provider(name string) (ProviderConfig, bool) {
	switch name {
	case ProviderNewsAPI:
		return p.NewsAPI, true
	case ProviderGNews:
		return p.GNews, true
	case ProviderNewsCatcher:
		return p.NewsCatcher, true
	case ProviderGoogleNews:
		return p.GoogleNews, true
	default:
		return ProviderConfig{}, false
	}
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dbPath := filepath.Join(homeDir, ".headlines.db")
	searchIndexPath := filepath.Join(homeDir, ".headlines", "index.bleve")

	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  25 * time.Second,
			RateLimit:       120,
		},
		Database: DatabaseConfig{
			Path:        dbPath,
			Timeout:     1 * time.Second,
			SearchIndex: searchIndexPath,
		},
		Cache: CacheConfig{
			NewsTTL:        5 * time.Minute,
			PreferencesTTL: 10 * time.Minute,
			SweepInterval:  2 * time.Minute,
		},
		Providers: ProvidersConfig{
			Order:     []string{ProviderNewsAPI, ProviderGNews, ProviderNewsCatcher},
			Timeout:   10 * time.Second,
			UserAgent: "headlines/1.0 (https://github.com/pders01/headlines)",
			NewsAPI: ProviderConfig{
				BaseURL:           "https://newsapi.org/v2/top-headlines",
				RequestsPerSecond: 5,
				Burst:             5,
			},
			GNews: ProviderConfig{
				BaseURL:           "https://gnews.io/api/v4/top-headlines",
				RequestsPerSecond: 1,
				Burst:             3,
			},
			NewsCatcher: ProviderConfig{
				BaseURL:           "https://api.newscatcher.com/v1/search",
				RequestsPerSecond: 1,
				Burst:             3,
			},
			GoogleNews: ProviderConfig{
				BaseURL: "https://news.google.com/rss/search",
			},
		},
		Breaker: BreakerConfig{
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      2 * time.Minute,
			MinRequests:  10,
			FailureRatio: 0.6,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Keys: KeyConfig{
			Modifier: "ctrl",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.request_timeout", cfg.Server.RequestTimeout)
	v.SetDefault("server.rate_limit", cfg.Server.RateLimit)

	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.timeout", cfg.Database.Timeout)
	v.SetDefault("database.search_index", cfg.Database.SearchIndex)

	v.SetDefault("cache.news_ttl", cfg.Cache.NewsTTL)
	v.SetDefault("cache.preferences_ttl", cfg.Cache.PreferencesTTL)
	v.SetDefault("cache.sweep_interval", cfg.Cache.SweepInterval)

	v.SetDefault("providers.order", cfg.Providers.Order)
	v.SetDefault("providers.timeout", cfg.Providers.Timeout)
	v.SetDefault("providers.user_agent", cfg.Providers.UserAgent)
	for _, name := range []string{ProviderNewsAPI, ProviderGNews, ProviderNewsCatcher, ProviderGoogleNews} {
		p, _ := cfg.Providers.Provider(name)
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"api_key", p.APIKey)
		v.SetDefault(prefix+"base_url", p.BaseURL)
		v.SetDefault(prefix+"requests_per_second", p.RequestsPerSecond)
		v.SetDefault(prefix+"burst", p.Burst)
	}

	v.SetDefault("breaker.max_requests", cfg.Breaker.MaxRequests)
	v.SetDefault("breaker.interval", cfg.Breaker.Interval)
	v.SetDefault("breaker.timeout", cfg.Breaker.Timeout)
	v.SetDefault("breaker.min_requests", cfg.Breaker.MinRequests)
	v.SetDefault("breaker.failure_ratio", cfg.Breaker.FailureRatio)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("keys.modifier", cfg.Keys.Modifier)
}

// bindCredentials maps the conventional provider env vars onto the config.
func bindCredentials(v *viper.Viper) error {
	bindings := map[string][]string{
		"providers.newsapi.api_key":     {"HEADLINES_PROVIDERS_NEWSAPI_API_KEY", "NEWS_API_KEY"},
		"providers.gnews.api_key":       {"HEADLINES_PROVIDERS_GNEWS_API_KEY", "GNEWS_API_KEY"},
		"providers.newscatcher.api_key": {"HEADLINES_PROVIDERS_NEWSCATCHER_API_KEY", "NEWSCATCHER_API_KEY"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return nil
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v, defaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "headlines")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("HEADLINES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindCredentials(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand paths after loading
	expandPaths(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks value ranges and provider names.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand tilde
	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	// Convert to absolute path if not already absolute
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

// expandPaths expands all paths in the config
func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Log.File = expandPath(cfg.Log.File)
}

// Save writes cfg as TOML. API keys are never written; they belong in the
// environment.
func Save(config *Config, path string) error {
	v := viper.New()

	providerCfg := func(p ProviderConfig) map[string]interface{} {
		return map[string]interface{}{
			"base_url":            p.BaseURL,
			"requests_per_second": p.RequestsPerSecond,
			"burst":               p.Burst,
		}
	}

	// Convert durations to strings for TOML readability
	v.Set("server", map[string]interface{}{
		"addr":             config.Server.Addr,
		"read_timeout":     config.Server.ReadTimeout.String(),
		"write_timeout":    config.Server.WriteTimeout.String(),
		"shutdown_timeout": config.Server.ShutdownTimeout.String(),
		"request_timeout":  config.Server.RequestTimeout.String(),
		"rate_limit":       config.Server.RateLimit,
	})
	v.Set("database", map[string]interface{}{
		"path":         config.Database.Path,
		"timeout":      config.Database.Timeout.String(),
		"search_index": config.Database.SearchIndex,
	})
	v.Set("cache", map[string]interface{}{
		"news_ttl":        config.Cache.NewsTTL.String(),
		"preferences_ttl": config.Cache.PreferencesTTL.String(),
		"sweep_interval":  config.Cache.SweepInterval.String(),
	})
	v.Set("providers", map[string]interface{}{
		"order":       config.Providers.Order,
		"timeout":     config.Providers.Timeout.String(),
		"user_agent":  config.Providers.UserAgent,
		"newsapi":     providerCfg(config.Providers.NewsAPI),
		"gnews":       providerCfg(config.Providers.GNews),
		"newscatcher": providerCfg(config.Providers.NewsCatcher),
		"googlenews":  providerCfg(config.Providers.GoogleNews),
	})
	v.Set("breaker", map[string]interface{}{
		"max_requests":  config.Breaker.MaxRequests,
		"interval":      config.Breaker.Interval.String(),
		"timeout":       config.Breaker.Timeout.String(),
		"min_requests":  config.Breaker.MinRequests,
		"failure_ratio": config.Breaker.FailureRatio,
	})
	v.Set("log", map[string]interface{}{
		"level":  config.Log.Level,
		"file":   config.Log.File,
		"format": config.Log.Format,
	})
	v.Set("keys", map[string]interface{}{
		"modifier": config.Keys.Modifier,
	})

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
