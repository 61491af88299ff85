package provider

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/pders01/headlines/internal/config"
	"github.com/pders01/headlines/internal/news"
)

const newsCatcherTimeLayout = "2006-01-02 15:04:05"

// NewsCatcher adapts the NewsCatcher v1 search endpoint, which calls the
// category a topic.
type NewsCatcher struct {
	ep *endpoint
}

func NewNewsCatcher(cfg config.ProviderConfig, opts Options) *NewsCatcher {
	return &NewsCatcher{ep: newEndpoint(config.ProviderNewsCatcher, true, cfg, opts)}
}

func (p *NewsCatcher) Name() string { return p.ep.name }

func (p *NewsCatcher) Fetch(ctx context.Context, q news.NewsQuery) (*news.ProviderResult, error) {
	return p.ep.fetch(ctx, q, p.request)
}

type newsCatcherResponse struct {
	Status    string `json:"status"`
	TotalHits int    `json:"total_hits"`
	Articles  []struct {
		ID            string `json:"_id"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		PublishedDate string `json:"published_date"`
		Link          string `json:"link"`
		CleanURL      string `json:"clean_url"`
		Summary       string `json:"summary"`
		Excerpt       string `json:"excerpt"`
		Media         string `json:"media"`
		Topic         string `json:"topic"`
	} `json:"articles"`
}

func (p *NewsCatcher) request(ctx context.Context, q news.NewsQuery) (*news.ProviderResult, error) {
	params := url.Values{}
	params.Set("api_key", p.ep.apiKey)
	params.Set("page_size", strconv.Itoa(q.PageSize))
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("lang", q.Language)
	params.Set("country", q.Country)
	setIf(params, "q", q.Q)
	setIf(params, "topic", string(q.Category))

	var body newsCatcherResponse
	if err := p.ep.getJSON(ctx, params, &body); err != nil {
		return nil, err
	}

	articles := make([]news.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		description := a.Excerpt
		if description == "" {
			description = a.Summary
		}
		articles = append(articles, news.Article{
			Title:       a.Title,
			Description: description,
			Content:     a.Summary,
			URL:         a.Link,
			ImageURL:    a.Media,
			PublishedAt: parseTime(a.PublishedDate, newsCatcherTimeLayout, time.RFC3339),
			SourceName:  a.CleanURL,
			SourceID:    a.CleanURL,
			Author:      a.Author,
		})
	}

	return &news.ProviderResult{
		Articles:     articles,
		TotalResults: body.TotalHits,
	}, nil
}
