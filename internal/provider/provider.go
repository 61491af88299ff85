// Package provider adapts external news APIs to news.ProviderResult.
//
// Every adapter implements Provider. Request building and response mapping
// are local to each adapter; caching, request coalescing, rate limiting and
// circuit breaking are shared through an unexported endpoint.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pders01/headlines/internal/news"
)

var (
	// ErrMissingCredentials is returned without any network call when an
	// adapter that needs an API key has none configured.
	ErrMissingCredentials = errors.New("API key not configured")
	ErrRateLimited        = errors.New("rate limited")
)

type Provider interface {
	Name() string
	Fetch(ctx context.Context, q news.NewsQuery) (*news.ProviderResult, error)
}

// ProviderError reports a failure of a single provider. Its message has the
// form "<provider>: <cause>".
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx answer from a provider API other than 429.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// CallerFault reports whether the upstream rejected the request itself
// rather than failing. Credential and quota problems are not caller faults:
// they affect every request to the provider.
func (e *StatusError) CallerFault() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}
