package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pders01/headlines/internal/news"
)

const defaultTrendingSize = 10

func (s *Server) aggregate(w http.ResponseWriter, r *http.Request, raw news.RawParams) (*news.AggregatedResult, news.NewsQuery, bool) {
	q, err := news.Normalize(raw)
	if err != nil {
		respondErr(w, r, err)
		return nil, q, false
	}

	result, err := s.deps.News.Headlines(r.Context(), userID(r), q)
	if err != nil {
		respondErr(w, r, err)
		return nil, q, false
	}
	return result, q, true
}

func (s *Server) handleHeadlines(w http.ResponseWriter, r *http.Request) {
	result, q, ok := s.aggregate(w, r, news.RawParamsFromValues(r.URL.Query()))
	if !ok {
		return
	}
	respondData(w, http.StatusOK, envelope{
		Data:       result,
		Pagination: newPagination(q.Page, q.PageSize, result.TotalResults),
	})
}

func (s *Server) handleSearchNews(w http.ResponseWriter, r *http.Request) {
	raw := news.RawParamsFromValues(r.URL.Query())
	if strings.TrimSpace(raw.Q) == "" {
		respondErr(w, r, news.NewValidationError("q", "search query is required"))
		return
	}

	result, q, ok := s.aggregate(w, r, raw)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, envelope{
		Data:        result,
		SearchQuery: q.Q,
		Pagination:  newPagination(q.Page, q.PageSize, result.TotalResults),
	})
}

func (s *Server) handleCategoryNews(w http.ResponseWriter, r *http.Request) {
	category := news.Category(chi.URLParam(r, "category"))
	if !category.Valid() {
		respondErr(w, r, news.NewValidationError("category", "must be one of: "+categoryList()))
		return
	}

	raw := news.RawParamsFromValues(r.URL.Query())
	raw.Q = ""
	raw.Category = string(category)

	result, q, ok := s.aggregate(w, r, raw)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, envelope{
		Data:       result,
		Category:   string(category),
		Pagination: newPagination(q.Page, q.PageSize, result.TotalResults),
	})
}

type trendingItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      string    `json:"source"`
}

// handleTrending serves the first page of general headlines in a trimmed
// projection.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	raw := news.RawParams{
		Category: string(news.CategoryGeneral),
		Country:  values.Get("country"),
		Language: values.Get("language"),
		Page:     "1",
		PageSize: values.Get("pageSize"),
	}
	if strings.TrimSpace(raw.PageSize) == "" {
		raw.PageSize = strconv.Itoa(defaultTrendingSize)
	}

	result, q, ok := s.aggregate(w, r, raw)
	if !ok {
		return
	}

	items := make([]trendingItem, 0, q.PageSize)
	for _, a := range result.Articles {
		if len(items) == q.PageSize {
			break
		}
		items = append(items, trendingItem{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
			Source:      a.SourceName,
		})
	}

	respondData(w, http.StatusOK, envelope{Data: map[string]any{
		"trending":     items,
		"totalResults": len(items),
	}})
}

type categoryInfo struct {
	ID          news.Category `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
}

var categoryDescriptions = map[news.Category]string{
	news.CategoryBusiness:      "Business and financial news",
	news.CategoryEntertainment: "Entertainment and celebrity news",
	news.CategoryGeneral:       "General news and current events",
	news.CategoryHealth:        "Health and medical news",
	news.CategoryScience:       "Science and technology news",
	news.CategorySports:        "Sports news and updates",
	news.CategoryTechnology:    "Technology and innovation news",
}

func categoryList() string {
	names := make([]string, 0, len(news.Categories()))
	for _, c := range news.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func handleCategories(w http.ResponseWriter, _ *http.Request) {
	out := make([]categoryInfo, 0, len(news.Categories()))
	for _, c := range news.Categories() {
		name := string(c)
		out = append(out, categoryInfo{
			ID:          c,
			Name:        strings.ToUpper(name[:1]) + name[1:],
			Description: categoryDescriptions[c],
		})
	}
	respondData(w, http.StatusOK, envelope{Data: map[string]any{"categories": out}})
}

type countryInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var countries = []countryInfo{
	{"us", "United States"},
	{"gb", "United Kingdom"},
	{"ca", "Canada"},
	{"au", "Australia"},
	{"de", "Germany"},
	{"fr", "France"},
	{"in", "India"},
	{"jp", "Japan"},
	{"br", "Brazil"},
	{"mx", "Mexico"},
}

func handleCountries(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, envelope{Data: map[string]any{"countries": countries}})
}
