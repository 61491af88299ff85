package config

import "time"

// TestConfig returns a config suitable for testing. Database paths are left
// empty; tests point them at a temporary directory.
func TestConfig() *Config {
	cfg := defaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.RateLimit = 0
	cfg.Database = DatabaseConfig{Timeout: 1 * time.Second}
	cfg.Cache.SweepInterval = 0
	cfg.Providers.Timeout = 2 * time.Second
	cfg.Providers.UserAgent = "headlines-test/1.0"
	for _, p := range []*ProviderConfig{&cfg.Providers.NewsAPI, &cfg.Providers.GNews, &cfg.Providers.NewsCatcher, &cfg.Providers.GoogleNews} {
		p.RequestsPerSecond = 0
		p.Burst = 0
	}
	cfg.Log = LogConfig{Level: "off", Format: "console"}
	return cfg
}
