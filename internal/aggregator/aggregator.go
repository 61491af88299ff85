// Package aggregator fans a query out to every provider and merges the
// answers into one deduplicated result.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pders01/headlines/internal/debuglog"
	"github.com/pders01/headlines/internal/metrics"
	"github.com/pders01/headlines/internal/news"
	"github.com/pders01/headlines/internal/provider"
)

// AggregationError is returned when no provider produced a result.
type AggregationError struct {
	Attempted []string
	Causes    []string
}

func (e *AggregationError) Error() string {
	if len(e.Attempted) == 0 {
		return "no news providers configured"
	}
	return "all news providers failed: " + strings.Join(e.Causes, ", ")
}

// ProviderSource yields providers in priority order.
type ProviderSource interface {
	Providers() []provider.Provider
}

type Aggregator struct {
	source ProviderSource
}

func New(source ProviderSource) *Aggregator {
	return &Aggregator{source: source}
}

type outcome struct {
	result *news.ProviderResult
	err    error
}

// Aggregate queries every provider concurrently. It fails only when all of
// them fail, or when ctx is done before they finish; partial results are
// discarded in that case.
func (a *Aggregator) Aggregate(ctx context.Context, q news.NewsQuery) (*news.AggregatedResult, error) {
	providers := a.source.Providers()
	start := time.Now()

	outcomes := make([]outcome, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			outcomes[i] = call(ctx, p, q)
		}(i, p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		metrics.Aggregations.WithLabelValues("cancelled").Inc()
		return nil, ctx.Err()
	}

	names := make([]string, len(providers))
	var results []*news.ProviderResult
	var failures []string
	for i, p := range providers {
		names[i] = p.Name()
		if o := outcomes[i]; o.err != nil {
			failures = append(failures, failureMessage(p.Name(), o.err))
		} else {
			results = append(results, o.result)
		}
	}

	if len(results) == 0 {
		metrics.Aggregations.WithLabelValues("failed").Inc()
		err := &AggregationError{Attempted: names, Causes: failures}
		debuglog.Errorf("aggregation failed: %v", err)
		return nil, err
	}

	merged := Merge(results, failures)
	if len(failures) > 0 {
		metrics.Aggregations.WithLabelValues("partial").Inc()
		debuglog.Warnf("aggregation partial: %d of %d providers failed: %s", len(failures), len(providers), strings.Join(failures, "; "))
	} else {
		metrics.Aggregations.WithLabelValues("complete").Inc()
	}
	debuglog.Debugf("aggregated %d articles from %v in %s", len(merged.Articles), merged.Providers, time.Since(start))

	return merged, nil
}

// call runs one provider and turns a panic or an empty answer into an error.
func call(ctx context.Context, p provider.Provider, q news.NewsQuery) (o outcome) {
	defer func() {
		if r := recover(); r != nil {
			o = outcome{err: fmt.Errorf("panic: %v", r)}
		}
	}()

	res, err := p.Fetch(ctx, q)
	if err != nil {
		return outcome{err: err}
	}
	if res == nil {
		return outcome{err: errors.New("empty result")}
	}
	return outcome{result: res}
}

func failureMessage(name string, err error) string {
	var perr *provider.ProviderError
	if errors.As(err, &perr) {
		return perr.Error()
	}
	return name + ": " + err.Error()
}

// Merge concatenates results in the given order and drops articles whose
// URL was already seen. TotalResults is the sum of the upstream totals,
// not the merged count.
func Merge(results []*news.ProviderResult, failures []string) *news.AggregatedResult {
	out := &news.AggregatedResult{
		Articles:  []news.Article{},
		Providers: make([]string, 0, len(results)),
	}

	seen := make(map[string]struct{})
	duplicates := 0
	for _, r := range results {
		out.Providers = append(out.Providers, r.ProviderName)
		out.TotalResults += r.TotalResults
		for _, article := range r.Articles {
			if _, dup := seen[article.URL]; dup {
				duplicates++
				continue
			}
			seen[article.URL] = struct{}{}
			out.Articles = append(out.Articles, article)
		}
	}

	if duplicates > 0 {
		metrics.DuplicateArticles.Add(float64(duplicates))
	}
	if len(failures) > 0 {
		out.PartialErrors = append([]string(nil), failures...)
	}
	return out
}
