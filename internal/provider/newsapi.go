package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pders01/headlines/internal/config"
	"github.com/pders01/headlines/internal/news"
)

// NewsAPI adapts the NewsAPI.org top-headlines endpoint.
type NewsAPI struct {
	ep *endpoint
}

func NewNewsAPI(cfg config.ProviderConfig, opts Options) *NewsAPI {
	return &NewsAPI{ep: newEndpoint(config.ProviderNewsAPI, true, cfg, opts)}
}

func (p *NewsAPI) Name() string { return p.ep.name }

func (p *NewsAPI) Fetch(ctx context.Context, q news.NewsQuery) (*news.ProviderResult, error) {
	return p.ep.fetch(ctx, q, p.request)
}

type newsAPIResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
	} `json:"articles"`
}

func (p *NewsAPI) request(ctx context.Context, q news.NewsQuery) (*news.ProviderResult, error) {
	params := url.Values{}
	params.Set("apiKey", p.ep.apiKey)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("pageSize", strconv.Itoa(q.PageSize))
	params.Set("language", q.Language)
	params.Set("country", q.Country)
	setIf(params, "q", q.Q)
	setIf(params, "category", string(q.Category))

	var body newsAPIResponse
	if err := p.ep.getJSON(ctx, params, &body); err != nil {
		return nil, err
	}
	if body.Status == "error" {
		return nil, fmt.Errorf("upstream error %s: %s", body.Code, body.Message)
	}

	articles := make([]news.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		articles = append(articles, news.Article{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			PublishedAt: parseTime(a.PublishedAt, time.RFC3339),
			SourceName:  a.Source.Name,
			SourceID:    a.Source.ID,
			Author:      a.Author,
		})
	}

	return &news.ProviderResult{
		Articles:     articles,
		TotalResults: body.TotalResults,
	}, nil
}
