package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/headlines/internal/config"
	"github.com/pders01/headlines/internal/news"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(context.Context, news.NewsQuery) (*news.ProviderResult, error) {
	return &news.ProviderResult{ProviderName: s.name}, nil
}

func TestRegistry_Order(t *testing.T) {
	r := NewRegistry(&stubProvider{"a"}, &stubProvider{"b"})
	r.Register(&stubProvider{"c"})

	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
	assert.Equal(t, 3, r.Len())

	providers := r.Providers()
	require.Len(t, providers, 3)
	assert.Equal(t, "a", providers[0].Name())
}

func TestRegistry_RegisterReplacesInPlace(t *testing.T) {
	first := &stubProvider{"a"}
	replacement := &stubProvider{"a"}
	r := NewRegistry(first, &stubProvider{"b"})

	r.Register(replacement)

	assert.Equal(t, []string{"a", "b"}, r.Names())
	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, replacement, got)
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(&stubProvider{"a"})

	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_ProvidersIsACopy(t *testing.T) {
	r := NewRegistry(&stubProvider{"a"})
	list := r.Providers()
	list[0] = &stubProvider{"x"}

	assert.Equal(t, []string{"a"}, r.Names())
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := config.TestConfig().Providers
	cfg.Order = []string{config.ProviderGNews, config.ProviderGoogleNews, config.ProviderNewsAPI}

	r, err := NewRegistryFromConfig(cfg, testOptions(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"gnews", "googlenews", "newsapi"}, r.Names())

	p, ok := r.Get("googlenews")
	require.True(t, ok)
	assert.IsType(t, &GoogleNews{}, p)
}

func TestNewRegistryFromConfig_UnknownProvider(t *testing.T) {
	cfg := config.TestConfig().Providers
	cfg.Order = []string{config.ProviderNewsAPI, "bing"}

	_, err := NewRegistryFromConfig(cfg, testOptions(t))
	assert.Error(t, err)
}

func TestNew_UsesProviderSettings(t *testing.T) {
	cfg := config.TestConfig().Providers
	cfg.NewsAPI.APIKey = "k"

	p, err := New(config.ProviderNewsAPI, cfg, Options{})
	require.NoError(t, err)

	api, ok := p.(*NewsAPI)
	require.True(t, ok)
	assert.Equal(t, "k", api.ep.apiKey)
	assert.Equal(t, cfg.Timeout, api.ep.timeout)
	assert.Equal(t, cfg.UserAgent, api.ep.userAgent)
	assert.Equal(t, cfg.NewsAPI.BaseURL, api.ep.baseURL)
}
