// Package search keeps a full-text index over the saved-article catalog.
package search

import "github.com/pders01/headlines/internal/storage"

// Searcher defines the search API used by the HTTP layer.
type Searcher interface {
	Search(query string, limit int) ([]*Result, error)
	DocCount() (int, error)
	Close() error
}

// Source is the catalog the index is built from.
type Source interface {
	GetAllArticles() ([]*storage.Article, error)
	GetArticle(id string) (*storage.Article, error)
}

type Result struct {
	Article *storage.Article `json:"article"`
	Score   float64          `json:"score"`
}
