package storage

import (
	"time"

	"github.com/pders01/headlines/internal/news"
)

type User struct {
	ID          string               `json:"id"`
	Username    string               `json:"username"`
	Email       string               `json:"email"`
	Preferences news.UserPreferences `json:"preferences"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// Article is a catalog entry shared by every user that saved the same URL.
type Article struct {
	ID string `json:"id"`
	news.Article
	Category      news.Category `json:"category,omitempty"`
	Language      string        `json:"language,omitempty"`
	Country       string        `json:"country,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	ReadCount     int           `json:"readCount"`
	BookmarkCount int           `json:"bookmarkCount"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// UserArticle is one user's interaction state with a catalog article.
type UserArticle struct {
	UserID     string     `json:"userId"`
	ArticleID  string     `json:"articleId"`
	Bookmarked bool       `json:"isBookmarked"`
	Read       bool       `json:"isRead"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	Rating     int        `json:"rating,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type SavedArticle struct {
	Article     *Article     `json:"article"`
	Interaction *UserArticle `json:"interaction"`
}

// SaveInput carries the catalog metadata a client may attach when saving.
type SaveInput struct {
	news.Article
	Category news.Category `json:"category"`
	Language string        `json:"language"`
	Country  string        `json:"country"`
	Tags     []string      `json:"tags"`
}

// SortOrder selects the timestamp ListUserArticles orders by, newest first.
type SortOrder int

const (
	SortBySaved SortOrder = iota
	SortByUpdated
)

type ArticleFilter struct {
	Bookmarked *bool
	Read       *bool
	Category   news.Category
	Page       int
	PageSize   int
	SortBy     SortOrder
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxNotesLength  = 500
	MinRating       = 1
	MaxRating       = 5
)

func (f ArticleFilter) normalized() ArticleFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

func (f ArticleFilter) matches(a *Article, ua *UserArticle) bool {
	if f.Bookmarked != nil && ua.Bookmarked != *f.Bookmarked {
		return false
	}
	if f.Read != nil && ua.Read != *f.Read {
		return false
	}
	if f.Category != "" && a.Category != f.Category {
		return false
	}
	return true
}
