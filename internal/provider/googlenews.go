package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pders01/headlines/internal/config"
	"github.com/pders01/headlines/internal/feed"
	"github.com/pders01/headlines/internal/news"
)

// GoogleNews reads the public Google News RSS feeds. It needs no API key.
// The feed has no paging, so the full item list is fetched and the
// requested page is cut out locally.
type GoogleNews struct {
	ep      *endpoint
	fetcher *feed.Fetcher
	parser  *feed.Parser
}

func NewGoogleNews(cfg config.ProviderConfig, opts Options) *GoogleNews {
	ep := newEndpoint(config.ProviderGoogleNews, false, cfg, opts)
	return &GoogleNews{
		ep:      ep,
		fetcher: feed.NewFetcher(ep.client, ep.userAgent),
		parser:  feed.NewParser(),
	}
}

func (p *GoogleNews) Name() string { return p.ep.name }

func (p *GoogleNews) Fetch(ctx context.Context, q news.NewsQuery) (*news.ProviderResult, error) {
	return p.ep.fetch(ctx, q, p.request)
}

// feedURL searches when there is query text or a category, and otherwise
// reads the top stories feed next to the search endpoint.
func (p *GoogleNews) feedURL(q news.NewsQuery) (string, error) {
	u, err := url.Parse(p.ep.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	terms := strings.TrimSpace(strings.Join([]string{q.Q, string(q.Category)}, " "))

	params := u.Query()
	if terms != "" {
		params.Set("q", terms)
	} else {
		u.Path = strings.TrimSuffix(u.Path, "/search")
	}
	country := strings.ToUpper(q.Country)
	params.Set("hl", q.Language+"-"+country)
	params.Set("gl", country)
	params.Set("ceid", country+":"+q.Language)
	u.RawQuery = params.Encode()

	return u.String(), nil
}

func (p *GoogleNews) request(ctx context.Context, q news.NewsQuery) (*news.ProviderResult, error) {
	target, err := p.feedURL(q)
	if err != nil {
		return nil, err
	}

	resp, err := p.fetcher.Fetch(ctx, target)
	if err != nil {
		var statusErr *feed.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: retry after %s", ErrRateLimited, statusErr.RetryAfter)
		}
		return nil, err
	}
	defer resp.Body.Close()

	articles, err := p.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	for i := range articles {
		articles[i].Title, articles[i].SourceName = splitSource(articles[i].Title, articles[i].SourceName)
	}

	return &news.ProviderResult{
		Articles:     page(articles, q.Page, q.PageSize),
		TotalResults: len(articles),
	}, nil
}

// splitSource separates the " - Publisher" suffix Google appends to every
// headline.
func splitSource(title, fallback string) (string, string) {
	idx := strings.LastIndex(title, " - ")
	if idx <= 0 {
		return title, fallback
	}
	return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+3:])
}

func page(articles []news.Article, pageNum, pageSize int) []news.Article {
	if pageNum < 1 || pageSize < 1 {
		return articles
	}
	start := (pageNum - 1) * pageSize
	if start >= len(articles) {
		return []news.Article{}
	}
	end := start + pageSize
	if end > len(articles) {
		end = len(articles)
	}
	return articles[start:end]
}
