package provider

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/pders01/headlines/internal/config"
	"github.com/pders01/headlines/internal/news"
)

// GNews adapts the GNews v4 top-headlines endpoint. GNews takes a single
// "max" result count and no page number.
type GNews struct {
	ep *endpoint
}

func NewGNews(cfg config.ProviderConfig, opts Options) *GNews {
	return &GNews{ep: newEndpoint(config.ProviderGNews, true, cfg, opts)}
}

func (p *GNews) Name() string { return p.ep.name }

func (p *GNews) Fetch(ctx context.Context, q news.NewsQuery) (*news.ProviderResult, error) {
	return p.ep.fetch(ctx, q, p.request)
}

type gnewsResponse struct {
	TotalArticles int `json:"totalArticles"`
	Articles      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		Image       string `json:"image"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"source"`
	} `json:"articles"`
}

func (p *GNews) request(ctx context.Context, q news.NewsQuery) (*news.ProviderResult, error) {
	params := url.Values{}
	params.Set("apikey", p.ep.apiKey)
	params.Set("max", strconv.Itoa(q.PageSize))
	params.Set("lang", q.Language)
	params.Set("country", q.Country)
	setIf(params, "q", q.Q)
	setIf(params, "category", string(q.Category))

	var body gnewsResponse
	if err := p.ep.getJSON(ctx, params, &body); err != nil {
		return nil, err
	}

	articles := make([]news.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		articles = append(articles, news.Article{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			ImageURL:    a.Image,
			PublishedAt: parseTime(a.PublishedAt, time.RFC3339),
			SourceName:  a.Source.Name,
			SourceID:    a.Source.URL,
		})
	}

	return &news.ProviderResult{
		Articles:     articles,
		TotalResults: body.TotalArticles,
	}, nil
}
