package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/pders01/headlines/internal/cache"
	"github.com/pders01/headlines/internal/config"
	"github.com/pders01/headlines/internal/debuglog"
	"github.com/pders01/headlines/internal/feed"
	"github.com/pders01/headlines/internal/metrics"
	"github.com/pders01/headlines/internal/news"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 5 << 20
)

// Options carries the dependencies shared by every adapter.
type Options struct {
	// Cache is consulted before and populated after each upstream call.
	// A nil cache disables result caching.
	Cache    *cache.Store
	CacheTTL time.Duration
	Client   *http.Client
	// Timeout bounds a single upstream call. Defaults to 10s.
	Timeout   time.Duration
	UserAgent string
	Breaker   config.BreakerConfig
}

type requestFunc func(ctx context.Context, q news.NewsQuery) (*news.ProviderResult, error)

type endpoint struct {
	name        string
	apiKey      string
	requiresKey bool
	baseURL     string

	client    *http.Client
	timeout   time.Duration
	userAgent string
	cache     *cache.Store
	ttl       time.Duration
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[*news.ProviderResult]
	group     singleflight.Group
	log       *debuglog.FieldLogger
}

func newEndpoint(name string, requiresKey bool, cfg config.ProviderConfig, opts Options) *endpoint {
	e := &endpoint{
		name:        name,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		requiresKey: requiresKey,
		baseURL:     cfg.BaseURL,
		client:      opts.Client,
		timeout:     opts.Timeout,
		userAgent:   opts.UserAgent,
		cache:       opts.Cache,
		ttl:         opts.CacheTTL,
		log:         debuglog.WithFields(map[string]interface{}{"provider": name}),
	}
	if e.client == nil {
		e.client = &http.Client{}
	}
	if e.timeout <= 0 {
		e.timeout = defaultTimeout
	}
	if e.ttl <= 0 {
		e.ttl = cache.DefaultTTL
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	e.breaker = newBreaker(name, opts.Breaker)
	return e
}

func newBreaker(name string, cfg config.BreakerConfig) *gobreaker.CircuitBreaker[*news.ProviderResult] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[*news.ProviderResult](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.FailureRatio <= 0 || counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			debuglog.WithFields(map[string]interface{}{
				"provider": name,
				"from":     from.String(),
				"to":       to.String(),
			}).Warnf("circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		IsSuccessful: countsAsHealthy,
	})
}

// countsAsHealthy decides breaker accounting. A caller going away or a
// request rejected for its own parameters says nothing about upstream health.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.CallerFault()
	}
	var feedErr *feed.StatusError
	if errors.As(err, &feedErr) {
		return (&StatusError{StatusCode: feedErr.StatusCode}).CallerFault()
	}
	return false
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (e *endpoint) cacheParams(q news.NewsQuery) map[string]string {
	params := q.Params()
	params["source"] = e.name
	return params
}

// fetch runs the shared pipeline around an adapter's request function:
// credential check, cache lookup, coalescing of identical in-flight calls,
// rate limiting, circuit breaking, cache population.
func (e *endpoint) fetch(ctx context.Context, q news.NewsQuery, call requestFunc) (*news.ProviderResult, error) {
	if e.requiresKey && e.apiKey == "" {
		metrics.ProviderRequests.WithLabelValues(e.name, "unconfigured").Inc()
		return nil, &ProviderError{Provider: e.name, Err: ErrMissingCredentials}
	}

	params := e.cacheParams(q)
	if res, ok := e.cached(params); ok {
		metrics.ProviderRequests.WithLabelValues(e.name, "cached").Inc()
		return res, nil
	}

	// The shared call must outlive any single waiter, so it runs detached
	// from the caller's cancellation and is bounded by the endpoint timeout.
	shared := context.WithoutCancel(ctx)
	ch := e.group.DoChan(cache.Key(cache.KeyNews, params), func() (interface{}, error) {
		return e.load(shared, params, q, call)
	})

	select {
	case <-ctx.Done():
		return nil, &ProviderError{Provider: e.name, Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			return nil, &ProviderError{Provider: e.name, Err: r.Err}
		}
		return r.Val.(*news.ProviderResult).Clone(), nil
	}
}

func (e *endpoint) cached(params map[string]string) (*news.ProviderResult, bool) {
	if e.cache == nil {
		return nil, false
	}
	v, ok := e.cache.Get(cache.KeyNews, params)
	if !ok {
		return nil, false
	}
	res, ok := v.(*news.ProviderResult)
	if !ok {
		e.log.Warnf("ignoring cache entry of unexpected type %T", v)
		return nil, false
	}
	return res.Clone(), true
}

func (e *endpoint) load(ctx context.Context, params map[string]string, q news.NewsQuery, call requestFunc) (*news.ProviderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			metrics.ProviderRequests.WithLabelValues(e.name, "rejected").Inc()
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}

	start := time.Now()
	res, err := e.breaker.Execute(func() (*news.ProviderResult, error) {
		return call(ctx, q)
	})
	metrics.ProviderDuration.WithLabelValues(e.name).Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("request timed out after %s: %w", e.timeout, err)
		}
		metrics.ProviderRequests.WithLabelValues(e.name, outcome).Inc()
		e.log.Warnf("fetch failed: %v", err)
		return nil, err
	}

	res.ProviderName = e.name
	res.Articles = withIdentity(res.Articles)

	if e.cache != nil {
		e.cache.Set(cache.KeyNews, params, res.Clone(), e.ttl)
	}
	metrics.ProviderRequests.WithLabelValues(e.name, "success").Inc()
	e.log.Debugf("fetched %d articles (total %d) in %s", len(res.Articles), res.TotalResults, time.Since(start))
	return res, nil
}

// getJSON issues a GET against the endpoint's base URL and decodes a 2xx
// body into out.
func (e *endpoint) getJSON(ctx context.Context, params url.Values, out interface{}) error {
	u, err := url.Parse(e.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	query := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		// url.Error embeds the request URL, which carries the API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstreamError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

// upstreamError extracts the provider's own error message when the body
// carries one.
func upstreamError(status int, body []byte) error {
	var payload struct {
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	_ = json.Unmarshal(body, &payload)

	msg := payload.Message
	if msg == "" && len(payload.Errors) > 0 {
		msg = strings.Join(payload.Errors, "; ")
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	return &StatusError{StatusCode: status, Message: msg}
}

func withIdentity(articles []news.Article) []news.Article {
	out := make([]news.Article, 0, len(articles))
	for _, a := range articles {
		if strings.TrimSpace(a.URL) != "" {
			out = append(out, a)
		}
	}
	return out
}

// parseTime tries each layout in turn and yields the zero time when none
// matches.
func parseTime(s string, layouts ...string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func setIf(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
