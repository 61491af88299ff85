package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pders01/headlines/internal/news"
	"github.com/pders01/headlines/internal/storage"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// savedView flattens an article and the caller's interaction with it.
type savedView struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	URL           string        `json:"url"`
	ImageURL      string        `json:"imageUrl,omitempty"`
	PublishedAt   time.Time     `json:"publishedAt"`
	Source        string        `json:"source"`
	Author        string        `json:"author,omitempty"`
	Category      news.Category `json:"category,omitempty"`
	Bookmarked    bool          `json:"isBookmarked"`
	Read          bool          `json:"isRead"`
	ReadAt        *time.Time    `json:"readAt,omitempty"`
	Rating        int           `json:"rating,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	SavedAt       time.Time     `json:"savedAt"`
	BookmarkedAt  *time.Time    `json:"bookmarkedAt,omitempty"`
	ReadCount     int           `json:"readCount"`
	BookmarkCount int           `json:"bookmarkCount"`
}

func newSavedView(sa storage.SavedArticle) savedView {
	a, ua := sa.Article, sa.Interaction
	v := savedView{
		ID:            a.ID,
		Title:         a.Title,
		Description:   a.Description,
		URL:           a.URL,
		ImageURL:      a.ImageURL,
		PublishedAt:   a.PublishedAt,
		Source:        a.SourceName,
		Author:        a.Author,
		Category:      a.Category,
		Bookmarked:    ua.Bookmarked,
		Read:          ua.Read,
		ReadAt:        ua.ReadAt,
		Rating:        ua.Rating,
		Notes:         ua.Notes,
		SavedAt:       ua.CreatedAt,
		ReadCount:     a.ReadCount,
		BookmarkCount: a.BookmarkCount,
	}
	if ua.Bookmarked {
		at := ua.UpdatedAt
		v.BookmarkedAt = &at
	}
	return v
}

func (s *Server) handleSaveArticle(w http.ResponseWriter, r *http.Request) {
	var in storage.SaveInput
	if err := decodeBody(w, r, &in); err != nil {
		respondErr(w, r, err)
		return
	}

	saved, err := s.deps.Store.SaveArticle(userID(r), in)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respondData(w, http.StatusCreated, envelope{Data: map[string]any{
		"message": "Article saved successfully",
		"article": map[string]any{
			"id":          saved.Article.ID,
			"title":       saved.Article.Title,
			"url":         saved.Article.URL,
			"publishedAt": saved.Article.PublishedAt,
		},
	}})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	article, err := s.deps.Store.GetArticle(id)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	var interaction *storage.UserArticle
	if uid := userID(r); uid != "" {
		ua, err := s.deps.Store.GetUserArticle(uid, id)
		switch {
		case err == nil:
			interaction = ua
		case !errors.Is(err, storage.ErrNotFound):
			respondErr(w, r, err)
			return
		}
	}

	respondData(w, http.StatusOK, envelope{Data: map[string]any{
		"article":         article,
		"userInteraction": interaction,
	}})
}

func (s *Server) handleRemoveArticle(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.RemoveArticle(userID(r), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, envelope{Data: map[string]any{
		"message": "Article removed from your collection",
	}})
}

func (s *Server) handleBookmark(w http.ResponseWriter, r *http.Request) {
	ua, err := s.deps.Store.ToggleBookmark(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	message := "Article unbookmarked"
	if ua.Bookmarked {
		message = "Article bookmarked"
	}
	respondData(w, http.StatusOK, envelope{Data: map[string]any{
		"message":      message,
		"isBookmarked": ua.Bookmarked,
	}})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ua, err := s.deps.Store.MarkRead(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, envelope{Data: map[string]any{
		"message": "Article marked as read",
		"readAt":  ua.ReadAt,
	}})
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rating *int `json:"rating"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		respondErr(w, r, err)
		return
	}
	if body.Rating == nil {
		respondErr(w, r, storage.ErrInvalidRating)
		return
	}

	ua, err := s.deps.Store.Rate(userID(r), chi.URLParam(r, "id"), *body.Rating)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, envelope{Data: map[string]any{
		"message": "Article rated successfully",
		"rating":  ua.Rating,
	}})
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		respondErr(w, r, err)
		return
	}

	ua, err := s.deps.Store.SetNotes(userID(r), chi.URLParam(r, "id"), body.Notes)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, envelope{Data: map[string]any{
		"message": "Notes added successfully",
		"notes":   ua.Notes,
	}})
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request, filter storage.ArticleFilter) {
	var err error
	if filter.Page, err = intParam(r, "page", 1, 1, news.MaxPage); err != nil {
		respondErr(w, r, err)
		return
	}
	if filter.PageSize, err = intParam(r, "pageSize", storage.DefaultPageSize, 1, storage.MaxPageSize); err != nil {
		respondErr(w, r, err)
		return
	}
	if c := strings.TrimSpace(r.URL.Query().Get("category")); c != "" {
		filter.Category = news.Category(c)
		if !filter.Category.Valid() {
			respondErr(w, r, news.NewValidationError("category", "must be one of: "+categoryList()))
			return
		}
	}

	items, total, err := s.deps.Store.ListUserArticles(userID(r), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	views := make([]savedView, 0, len(items))
	for _, sa := range items {
		views = append(views, newSavedView(sa))
	}
	respondData(w, http.StatusOK, envelope{
		Data: map[string]any{
			"articles":   views,
			"totalCount": total,
		},
		Pagination: newPagination(filter.Page, filter.PageSize, total),
	})
}

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	s.listArticles(w, r, storage.ArticleFilter{
		Bookmarked: boolParam(r, "isBookmarked"),
		Read:       boolParam(r, "isRead"),
		SortBy:     storage.SortBySaved,
	})
}

func (s *Server) handleListBookmarked(w http.ResponseWriter, r *http.Request) {
	bookmarked := true
	s.listArticles(w, r, storage.ArticleFilter{
		Bookmarked: &bookmarked,
		SortBy:     storage.SortByUpdated,
	})
}

// handleSearchArticles runs a full-text search over the catalog and keeps
// only articles in the caller's collection.
func (s *Server) handleSearchArticles(w http.ResponseWriter, r *http.Request) {
	if s.deps.Search == nil {
		respondError(w, http.StatusServiceUnavailable, "Search unavailable", "The search index is not enabled", nil)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondErr(w, r, news.NewValidationError("q", "search query is required"))
		return
	}
	limit, err := intParam(r, "limit", defaultSearchLimit, 1, maxSearchLimit)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	// Over-fetch since hits outside the collection are dropped.
	hits, err := s.deps.Search.Search(q, limit*5)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	uid := userID(r)
	results := make([]map[string]any, 0, limit)
	for _, h := range hits {
		if len(results) == limit {
			break
		}
		ua, err := s.deps.Store.GetUserArticle(uid, h.Article.ID)
		if err != nil {
			continue
		}
		view := newSavedView(storage.SavedArticle{Article: h.Article, Interaction: ua})
		results = append(results, map[string]any{"article": view, "score": h.Score})
	}

	respondData(w, http.StatusOK, envelope{
		Data:        map[string]any{"results": results, "totalResults": len(results)},
		SearchQuery: q,
	})
}
