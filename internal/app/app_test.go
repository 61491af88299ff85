package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/headlines/internal/config"
	"github.com/pders01/headlines/internal/news"
	"github.com/pders01/headlines/internal/provider"
)

type stubProvider struct {
	name     string
	articles []news.Article
}

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) Fetch(_ context.Context, _ news.NewsQuery) (*news.ProviderResult, error) {
	return &news.ProviderResult{Articles: p.articles, TotalResults: len(p.articles), ProviderName: p.name}, nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.TestConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")
	return cfg
}

func TestNew_RequiresDatabasePath(t *testing.T) {
	_, err := New(config.TestConfig(), Options{})
	assert.Error(t, err)
}

func TestNew_BuildsProvidersFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Order = []string{config.ProviderGoogleNews, config.ProviderNewsAPI}

	a, err := New(cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, []string{"googlenews", "newsapi"}, a.Providers.Names())
	assert.NotNil(t, a.Search)
	assert.NotNil(t, a.Headlines)
}

func TestNew_InjectedProviders(t *testing.T) {
	a, err := New(testConfig(t), Options{Providers: []provider.Provider{
		stubProvider{name: "stub", articles: []news.Article{{Title: "t", URL: "https://example.com/1"}}},
	}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	res, err := a.Headlines.Headlines(context.Background(), "", news.NewsQuery{}.WithDefaults())
	require.NoError(t, err)
	assert.Len(t, res.Articles, 1)
	assert.Equal(t, []string{"stub"}, res.Providers)
}

func TestServer_Health(t *testing.T) {
	a, err := New(testConfig(t), Options{Providers: []provider.Provider{stubProvider{name: "stub"}}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	rec := httptest.NewRecorder()
	a.Server("1.2.3").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
	assert.Contains(t, rec.Body.String(), `"stub"`)
}

func TestSetupLogging(t *testing.T) {
	require.NoError(t, SetupLogging(config.LogConfig{Level: "off"}))
	require.NoError(t, SetupLogging(config.LogConfig{Level: "debug", File: filepath.Join(t.TempDir(), "h.log"), Format: "json"}))
	require.NoError(t, SetupLogging(config.LogConfig{Level: "off"}))
}

func TestClose(t *testing.T) {
	a, err := New(testConfig(t), Options{Providers: []provider.Provider{stubProvider{name: "stub"}}})
	require.NoError(t, err)
	require.NoError(t, a.Close())
}
