package feed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultUserAgent = "headlines/1.0 (news aggregator; github.com/pders01/headlines)"
	defaultTimeout   = 10 * time.Second

	// DefaultRetryAfter applies when a 429/503 response carries no usable
	// Retry-After header.
	DefaultRetryAfter = 15 * time.Minute
)

// StatusError is returned for HTTP responses with status >= 400.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d", e.StatusCode)
}

type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher builds a fetcher. A nil client gets a default one with a 10s
// timeout; an empty userAgent uses the built-in one.
func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{client: client, userAgent: userAgent}
}

// Fetch issues a GET for a feed document. The caller closes the body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, RetryAfter: GetRetryAfter(resp)}
	}

	return resp, nil
}

// GetRetryAfter reads a delay-seconds Retry-After header.
func GetRetryAfter(resp *http.Response) time.Duration {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return DefaultRetryAfter
}
