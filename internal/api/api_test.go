package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/headlines/internal/aggregator"
	"github.com/pders01/headlines/internal/cache"
	"github.com/pders01/headlines/internal/config"
	"github.com/pders01/headlines/internal/news"
	"github.com/pders01/headlines/internal/personalize"
	"github.com/pders01/headlines/internal/search"
	"github.com/pders01/headlines/internal/storage"
)

type fakeAggregator struct {
	mu      sync.Mutex
	result  *news.AggregatedResult
	err     error
	queries []news.NewsQuery
	// stall makes Aggregate wait for the request context to end.
	stall bool
}

func (f *fakeAggregator) Aggregate(ctx context.Context, q news.NewsQuery) (*news.AggregatedResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	stall, result, err := f.stall, f.result, f.err
	f.mu.Unlock()

	if stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (f *fakeAggregator) last(t *testing.T) news.NewsQuery {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.queries, "aggregator was not called")
	return f.queries[len(f.queries)-1]
}

type staticProviders []string

func (p staticProviders) Names() []string { return p }

type testEnv struct {
	handler http.Handler
	agg     *fakeAggregator
	store   *storage.Store
}

func articles(n int) []news.Article {
	out := make([]news.Article, n)
	for i := range out {
		out[i] = news.Article{
			Title:       fmt.Sprintf("Story %d", i),
			Description: "description",
			URL:         fmt.Sprintf("https://example.com/story/%d", i),
			SourceName:  "Example",
			PublishedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return out
}

func newTestEnv(t *testing.T, mutate ...func(*config.ServerConfig)) *testEnv {
	t.Helper()

	store, err := storage.NewStore(filepath.Join(t.TempDir(), "api.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	idx, err := search.NewBleveEngine(store, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	store.AddListener(idx)

	c := cache.New(cache.Options{DefaultTTL: time.Minute})
	t.Cleanup(c.Close)

	agg := &fakeAggregator{result: &news.AggregatedResult{
		Articles:     articles(12),
		TotalResults: 45,
		Providers:    []string{"newsapi", "gnews"},
	}}

	cfg := config.TestConfig().Server
	for _, m := range mutate {
		m(&cfg)
	}

	srv := NewServer(cfg, Deps{
		News:      personalize.NewService(store, agg, c, time.Minute),
		Store:     store,
		Search:    idx,
		Cache:     c,
		Providers: staticProviders{"newsapi", "gnews"},
		Version:   "test",
	})
	return &testEnv{handler: srv.Handler(), agg: agg, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func dataOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	assert.Equal(t, true, body["success"])
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "data is %T", body["data"])
	return data
}

func TestHeadlines_Anonymous(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/news/headlines?q=ai", "", nil)
	require.Equal(t, http.StatusOK, code)

	data := dataOf(t, body)
	assert.Len(t, data["articles"], 12)
	assert.EqualValues(t, 45, data["totalResults"])
	assert.Equal(t, []any{"newsapi", "gnews"}, data["sources"])

	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 1, pagination["page"])
	assert.EqualValues(t, 20, pagination["pageSize"])
	assert.EqualValues(t, 3, pagination["totalPages"])

	q := env.agg.last(t)
	assert.Equal(t, "ai", q.Q)
	assert.Equal(t, "us", q.Country)
	assert.Equal(t, "en", q.Language)
}

func TestHeadlines_InvalidQuery(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/news/headlines?pageSize=500&country=usa", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid request", body["error"])

	details, ok := body["details"].([]any)
	require.True(t, ok)
	assert.Len(t, details, 2)
	assert.Empty(t, env.agg.queries)
}

func TestHeadlines_AllProvidersFailed(t *testing.T) {
	env := newTestEnv(t)
	env.agg.err = &aggregator.AggregationError{
		Attempted: []string{"newsapi", "gnews"},
		Causes:    []string{"newsapi: rate limited", "gnews: API key not configured"},
	}

	code, body := env.do(t, http.MethodGet, "/api/v1/news/headlines", "", nil)
	require.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "Failed to fetch news", body["error"])
	assert.Equal(t, "all news providers failed: newsapi: rate limited, gnews: API key not configured", body["message"])
	assert.Len(t, body["details"], 2)
}

func TestHeadlines_NoProviders(t *testing.T) {
	env := newTestEnv(t)
	env.agg.err = &aggregator.AggregationError{}

	code, _ := env.do(t, http.MethodGet, "/api/v1/news/headlines", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestHeadlines_UnexpectedError(t *testing.T) {
	env := newTestEnv(t)
	env.agg.err = errors.New("secret internal detail")

	code, body := env.do(t, http.MethodGet, "/api/v1/news/headlines", "", nil)
	require.Equal(t, http.StatusInternalServerError, code)
	assert.NotContains(t, body["message"], "secret")
}

func TestHeadlines_RequestTimeout(t *testing.T) {
	env := newTestEnv(t, func(c *config.ServerConfig) {
		c.RequestTimeout = 50 * time.Millisecond
	})
	env.agg.stall = true

	start := time.Now()
	code, body := env.do(t, http.MethodGet, "/api/v1/news/headlines", "", nil)

	assert.Equal(t, http.StatusGatewayTimeout, code)
	assert.Equal(t, "Request timed out", body["error"])
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSearchNews(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/news/search?q=%20%20", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["message"], "search query is required")

	code, body = env.do(t, http.MethodGet, "/api/v1/news/search?q=climate&page=2", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "climate", body["searchQuery"])
	assert.Equal(t, 2, env.agg.last(t).Page)
}

func TestCategoryNews(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/news/category/weather", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["message"], "business, entertainment")

	code, body = env.do(t, http.MethodGet, "/api/v1/news/category/sports?q=ignored&country=gb", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "sports", body["category"])

	q := env.agg.last(t)
	assert.Equal(t, news.CategorySports, q.Category)
	assert.Equal(t, "gb", q.Country)
	assert.Empty(t, q.Q)
}

func TestTrending(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/news/trending?page=7", "", nil)
	require.Equal(t, http.StatusOK, code)

	data := dataOf(t, body)
	trending := data["trending"].([]any)
	assert.Len(t, trending, 10)
	assert.EqualValues(t, 10, data["totalResults"])

	first := trending[0].(map[string]any)
	assert.Equal(t, "Example", first["source"])
	assert.NotContains(t, first, "content")

	q := env.agg.last(t)
	assert.Equal(t, news.CategoryGeneral, q.Category)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 10, q.PageSize)

	code, body = env.do(t, http.MethodGet, "/api/v1/news/trending?pageSize=3", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, dataOf(t, body)["trending"], 3)
}

func TestCategoriesAndCountries(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/news/categories", "", nil)
	require.Equal(t, http.StatusOK, code)
	categories := dataOf(t, body)["categories"].([]any)
	require.Len(t, categories, 7)
	assert.Equal(t, "Business", categories[0].(map[string]any)["name"])

	code, body = env.do(t, http.MethodGet, "/api/v1/news/countries", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, dataOf(t, body)["countries"], 10)
}

func TestPreferences_PersonalizeAndInvalidate(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/users/me/preferences", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	prefs := dataOf(t, body)["preferences"].(map[string]any)
	assert.Equal(t, "", prefs["country"])

	code, _ = env.do(t, http.MethodPut, "/api/v1/users/me/preferences", "u1", map[string]any{
		"preferences": map[string]any{
			"categories": []string{"science"},
			"keywords":   []string{"ai", "space"},
			"country":    "gb",
		},
	})
	require.Equal(t, http.StatusOK, code)

	// The cached empty preferences must not survive the update.
	code, body = env.do(t, http.MethodGet, "/api/v1/users/me/preferences", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	prefs = dataOf(t, body)["preferences"].(map[string]any)
	assert.Equal(t, "gb", prefs["country"])

	code, _ = env.do(t, http.MethodGet, "/api/v1/news/headlines?q=mars", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	q := env.agg.last(t)
	assert.Equal(t, "mars AND (ai OR space)", q.Q)
	assert.Equal(t, news.CategoryScience, q.Category)
	assert.Equal(t, "gb", q.Country)

	code, _ = env.do(t, http.MethodGet, "/api/v1/news/headlines?country=us", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "us", env.agg.last(t).Country)
}

func TestPreferences_Invalid(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPut, "/api/v1/users/me/preferences", "u1", map[string]any{
		"preferences": map[string]any{"categories": []string{"weather"}},
	})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["message"], "categories[0]")

	code, _ = env.do(t, http.MethodPut, "/api/v1/users/me/preferences", "u1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPut, "/api/v1/users/me/preferences", "u1", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUserRoutes_RequireIdentity(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/users/me/preferences", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Authentication required", body["error"])

	code, _ = env.do(t, http.MethodGet, "/api/v1/articles/saved", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.do(t, http.MethodGet, "/api/v1/news/headlines", "a/b", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodGet, "/api/v1/users/me", "ghost", nil)
	assert.Equal(t, http.StatusNotFound, code)

	user, err := env.store.CreateUser("alice", "alice@example.com", news.UserPreferences{})
	require.NoError(t, err)
	_, err = env.store.CreateUser("bob", "bob@example.com", news.UserPreferences{})
	require.NoError(t, err)

	code, body := env.do(t, http.MethodGet, "/api/v1/users/me", user.ID, nil)
	require.Equal(t, http.StatusOK, code)
	profile := dataOf(t, body)["user"].(map[string]any)
	assert.Equal(t, "alice", profile["username"])

	code, _ = env.do(t, http.MethodPut, "/api/v1/users/me", user.ID, map[string]any{"username": "bob"})
	assert.Equal(t, http.StatusConflict, code)

	code, body = env.do(t, http.MethodPut, "/api/v1/users/me", user.ID, map[string]any{"email": "new@example.com"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "new@example.com", dataOf(t, body)["user"].(map[string]any)["email"])
}

func TestArticles_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	article := map[string]any{
		"title":       "Volcano erupts in Iceland",
		"description": "Ash cloud disrupts flights",
		"url":         "https://example.com/volcano",
		"sourceName":  "Example",
		"category":    "science",
	}

	code, body := env.do(t, http.MethodPost, "/api/v1/articles", "u1", article)
	require.Equal(t, http.StatusCreated, code, body)
	saved := dataOf(t, body)["article"].(map[string]any)
	id := saved["id"].(string)
	require.NotEmpty(t, id)

	code, body = env.do(t, http.MethodPost, "/api/v1/articles", "u1", article)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Article already saved", body["error"])

	code, _ = env.do(t, http.MethodPost, "/api/v1/articles", "u1", map[string]any{"title": "x", "url": "nope", "sourceName": "s"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(t, http.MethodPost, "/api/v1/articles/"+id+"/bookmark", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, dataOf(t, body)["isBookmarked"])

	code, body = env.do(t, http.MethodPost, "/api/v1/articles/"+id+"/read", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, dataOf(t, body)["readAt"])

	code, _ = env.do(t, http.MethodPost, "/api/v1/articles/"+id+"/rate", "u1", map[string]any{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodPost, "/api/v1/articles/"+id+"/rate", "u1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	code, body = env.do(t, http.MethodPost, "/api/v1/articles/"+id+"/rate", "u1", map[string]any{"rating": 5})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 5, dataOf(t, body)["rating"])

	code, _ = env.do(t, http.MethodPost, "/api/v1/articles/"+id+"/notes", "u1", map[string]any{"notes": strings.Repeat("n", 501)})
	assert.Equal(t, http.StatusBadRequest, code)
	code, body = env.do(t, http.MethodPost, "/api/v1/articles/"+id+"/notes", "u1", map[string]any{"notes": "great read"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "great read", dataOf(t, body)["notes"])

	code, body = env.do(t, http.MethodGet, "/api/v1/articles/saved?isRead=true", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	data := dataOf(t, body)
	assert.EqualValues(t, 1, data["totalCount"])
	view := data["articles"].([]any)[0].(map[string]any)
	assert.Equal(t, true, view["isBookmarked"])
	assert.Equal(t, true, view["isRead"])
	assert.EqualValues(t, 5, view["rating"])
	assert.Equal(t, "great read", view["notes"])
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["totalPages"])

	code, body = env.do(t, http.MethodGet, "/api/v1/articles/bookmarked?category=sports", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, dataOf(t, body)["totalCount"])

	code, _ = env.do(t, http.MethodGet, "/api/v1/articles/saved?pageSize=0", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(t, http.MethodGet, "/api/v1/articles/search?q=volcano", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, dataOf(t, body)["totalResults"])

	// Another user's search does not see u1's collection.
	code, body = env.do(t, http.MethodGet, "/api/v1/articles/search?q=volcano", "u2", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, dataOf(t, body)["totalResults"])

	code, body = env.do(t, http.MethodGet, "/api/v1/articles/"+id, "u1", nil)
	require.Equal(t, http.StatusOK, code)
	data = dataOf(t, body)
	assert.NotNil(t, data["userInteraction"])
	assert.EqualValues(t, 1, data["article"].(map[string]any)["readCount"])

	code, body = env.do(t, http.MethodGet, "/api/v1/articles/"+id, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, dataOf(t, body)["userInteraction"])

	code, _ = env.do(t, http.MethodDelete, "/api/v1/articles/"+id, "u1", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodDelete, "/api/v1/articles/"+id, "u1", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/articles/missing/bookmark", "u1", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, []any{"newsapi", "gnews"}, body["providers"])
	assert.EqualValues(t, 0, body["indexedArticles"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "headlines_api_requests_total")
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Not found", body["error"])

	code, _ = env.do(t, http.MethodDelete, "/api/v1/news/headlines", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.ServerConfig) { c.RateLimit = 2 })

	for i := 0; i < 2; i++ {
		code, _ := env.do(t, http.MethodGet, "/api/v1/news/categories", "", nil)
		require.Equal(t, http.StatusOK, code)
	}
	code, body := env.do(t, http.MethodGet, "/api/v1/news/categories", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Too many requests", body["error"])

	// Health is outside the limited group.
	code, _ = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestServe_GracefulShutdown(t *testing.T) {
	env := newTestEnv(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := config.TestConfig().Server
	cfg.ShutdownTimeout = time.Second
	srv := NewServer(cfg, Deps{News: personalize.NewService(env.store, env.agg, nil, 0), Store: env.store})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
