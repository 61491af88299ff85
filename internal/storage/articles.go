package storage

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/pders01/headlines/internal/debuglog"
	"github.com/pders01/headlines/internal/news"
)

const (
	maxTags      = 10
	maxTagLength = 50
)

// SaveArticle adds the article to the user's collection. Articles are shared
// by URL: saving a URL already in the catalog reuses that entry.
func (s *Store) SaveArticle(userID string, in SaveInput) (*SavedArticle, error) {
	in, err := s.validateSaveInput(in)
	if err != nil {
		return nil, err
	}

	var saved SavedArticle
	err = s.db.Update(func(tx *bolt.Tx) error {
		articles := tx.Bucket(articlesBucket)
		index := tx.Bucket(articleURLsBucket)
		interactions := tx.Bucket(userArticlesBucket)
		now := s.now()

		var article Article
		if id := index.Get([]byte(in.URL)); id != nil {
			if err := getRecord(articles, string(id), &article); err != nil {
				return fmt.Errorf("loading catalog entry: %w", err)
			}
		} else {
			article = Article{
				ID:        uuid.NewString(),
				Article:   in.Article,
				Category:  in.Category,
				Language:  in.Language,
				Country:   in.Country,
				Tags:      in.Tags,
				CreatedAt: now,
			}
			if err := index.Put([]byte(in.URL), []byte(article.ID)); err != nil {
				return err
			}
		}

		key := userArticleKey(userID, article.ID)
		if interactions.Get(key) != nil {
			return ErrAlreadySaved
		}

		ua := UserArticle{
			UserID:    userID,
			ArticleID: article.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := putRecord(interactions, string(key), &ua); err != nil {
			return err
		}

		article.BookmarkCount++
		article.UpdatedAt = now
		if err := putRecord(articles, article.ID, &article); err != nil {
			return err
		}

		saved = SavedArticle{Article: &article, Interaction: &ua}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving article: %w", err)
	}

	s.notifySaved(saved.Article)
	return &saved, nil
}

func (s *Store) validateSaveInput(in SaveInput) (SaveInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.SourceName = strings.TrimSpace(in.SourceName)
	if in.Title == "" {
		return in, news.NewValidationError("title", "is required")
	}
	if in.SourceName == "" {
		return in, news.NewValidationError("source", "is required")
	}

	u, err := s.urls.ValidateAndNormalize(in.URL)
	if err != nil {
		return in, news.NewValidationError("url", "must be a valid http(s) URL")
	}
	in.URL = u

	img, err := s.urls.ValidateOptional(in.ImageURL)
	if err != nil {
		return in, news.NewValidationError("imageUrl", "must be a valid http(s) URL")
	}
	in.ImageURL = img

	if in.Category != "" && !in.Category.Valid() {
		return in, news.NewValidationError("category", "must be a known category")
	}
	in.Language = strings.ToLower(strings.TrimSpace(in.Language))
	if in.Language != "" && len(in.Language) != 2 {
		return in, news.NewValidationError("language", "must be a 2-character code")
	}
	in.Country = strings.ToLower(strings.TrimSpace(in.Country))
	if in.Country != "" && len(in.Country) != 2 {
		return in, news.NewValidationError("country", "must be a 2-character code")
	}
	if len(in.Tags) > maxTags {
		return in, news.NewValidationError("tags", fmt.Sprintf("must have at most %d entries", maxTags))
	}
	for _, tag := range in.Tags {
		if tag == "" || len(tag) > maxTagLength {
			return in, news.NewValidationError("tags", fmt.Sprintf("entries must be 1 to %d characters", maxTagLength))
		}
	}

	if in.PublishedAt.IsZero() {
		in.PublishedAt = s.now()
	}
	return in, nil
}

func (s *Store) GetArticle(id string) (*Article, error) {
	var article Article
	err := s.db.View(func(tx *bolt.Tx) error {
		return getRecord(tx.Bucket(articlesBucket), id, &article)
	})
	if err != nil {
		return nil, fmt.Errorf("getting article %s: %w", id, err)
	}
	return &article, nil
}

// GetAllArticles returns the whole catalog, newest first.
func (s *Store) GetAllArticles() ([]*Article, error) {
	var articles []*Article
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(articlesBucket).ForEach(func(k []byte, v []byte) error {
			var article Article
			if err := json.Unmarshal(v, &article); err != nil {
				debuglog.Warnf("skipping unreadable article %s: %v", k, err)
				return nil
			}
			articles = append(articles, &article)
			return nil
		})
	})
	sort.Slice(articles, func(i, j int) bool {
		return articles[i].CreatedAt.After(articles[j].CreatedAt)
	})
	return articles, err
}

func (s *Store) GetUserArticle(userID, articleID string) (*UserArticle, error) {
	var ua UserArticle
	err := s.db.View(func(tx *bolt.Tx) error {
		return getRecord(tx.Bucket(userArticlesBucket), string(userArticleKey(userID, articleID)), &ua)
	})
	if err != nil {
		return nil, fmt.Errorf("getting interaction: %w", err)
	}
	return &ua, nil
}

// ToggleBookmark flips the bookmark flag. The first interaction with an
// article bookmarks it.
func (s *Store) ToggleBookmark(userID, articleID string) (*UserArticle, error) {
	return s.interact(userID, articleID, func(a *Article, ua *UserArticle, created bool) error {
		if created {
			ua.Bookmarked = true
		} else {
			ua.Bookmarked = !ua.Bookmarked
		}
		if ua.Bookmarked {
			a.BookmarkCount++
		} else if a.BookmarkCount > 0 {
			a.BookmarkCount--
		}
		return nil
	})
}

// MarkRead records a read. ReadCount grows on every call.
func (s *Store) MarkRead(userID, articleID string) (*UserArticle, error) {
	return s.interact(userID, articleID, func(a *Article, ua *UserArticle, _ bool) error {
		readAt := s.now()
		ua.Read = true
		ua.ReadAt = &readAt
		a.ReadCount++
		return nil
	})
}

func (s *Store) Rate(userID, articleID string, rating int) (*UserArticle, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, ErrInvalidRating
	}
	return s.interact(userID, articleID, func(_ *Article, ua *UserArticle, _ bool) error {
		ua.Rating = rating
		return nil
	})
}

func (s *Store) SetNotes(userID, articleID, notes string) (*UserArticle, error) {
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return nil, ErrNotesTooLong
	}
	return s.interact(userID, articleID, func(_ *Article, ua *UserArticle, _ bool) error {
		ua.Notes = notes
		return nil
	})
}

// RemoveArticle drops the article from the user's collection. The catalog
// entry stays for other users.
func (s *Store) RemoveArticle(userID, articleID string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		interactions := tx.Bucket(userArticlesBucket)
		key := userArticleKey(userID, articleID)
		if interactions.Get(key) == nil {
			return ErrNotFound
		}
		if err := interactions.Delete(key); err != nil {
			return err
		}

		articles := tx.Bucket(articlesBucket)
		var article Article
		switch err := getRecord(articles, articleID, &article); {
		case errors.Is(err, ErrNotFound):
			return nil
		case err != nil:
			return err
		}
		if article.BookmarkCount > 0 {
			article.BookmarkCount--
		}
		article.UpdatedAt = s.now()
		return putRecord(articles, articleID, &article)
	})
	if err != nil {
		return fmt.Errorf("removing article: %w", err)
	}
	return nil
}

// interact loads the article and the user's interaction with it, creating
// the interaction when absent, applies fn and writes both back.
func (s *Store) interact(userID, articleID string, fn func(a *Article, ua *UserArticle, created bool) error) (*UserArticle, error) {
	var ua UserArticle
	err := s.db.Update(func(tx *bolt.Tx) error {
		articles := tx.Bucket(articlesBucket)
		interactions := tx.Bucket(userArticlesBucket)
		now := s.now()

		var article Article
		if err := getRecord(articles, articleID, &article); err != nil {
			return err
		}

		key := string(userArticleKey(userID, articleID))
		created := false
		switch err := getRecord(interactions, key, &ua); {
		case errors.Is(err, ErrNotFound):
			ua = UserArticle{UserID: userID, ArticleID: articleID, CreatedAt: now}
			created = true
		case err != nil:
			return err
		}

		if err := fn(&article, &ua, created); err != nil {
			return err
		}

		ua.UpdatedAt = now
		article.UpdatedAt = now
		if err := putRecord(interactions, key, &ua); err != nil {
			return err
		}
		return putRecord(articles, articleID, &article)
	})
	if err != nil {
		return nil, fmt.Errorf("updating article %s: %w", articleID, err)
	}
	return &ua, nil
}

// ListUserArticles returns one page of the user's collection, newest first,
// and the number of entries matching the filter.
func (s *Store) ListUserArticles(userID string, filter ArticleFilter) ([]SavedArticle, int, error) {
	f := filter.normalized()

	var matched []SavedArticle
	err := s.db.View(func(tx *bolt.Tx) error {
		articles := tx.Bucket(articlesBucket)
		prefix := []byte(userID + "/")

		c := tx.Bucket(userArticlesBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var ua UserArticle
			if err := json.Unmarshal(v, &ua); err != nil {
				debuglog.Warnf("skipping unreadable interaction %s: %v", k, err)
				continue
			}
			var article Article
			if err := getRecord(articles, ua.ArticleID, &article); err != nil {
				debuglog.Warnf("skipping interaction %s: %v", k, err)
				continue
			}
			if !f.matches(&article, &ua) {
				continue
			}
			matched = append(matched, SavedArticle{Article: &article, Interaction: &ua})
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("listing articles: %w", err)
	}

	stamp := func(sa SavedArticle) time.Time {
		if f.SortBy == SortByUpdated {
			return sa.Interaction.UpdatedAt
		}
		return sa.Interaction.CreatedAt
	}
	sort.SliceStable(matched, func(i, j int) bool {
		ti, tj := stamp(matched[i]), stamp(matched[j])
		if ti.Equal(tj) {
			return matched[i].Article.ID < matched[j].Article.ID
		}
		return ti.After(tj)
	})

	total := len(matched)
	start := (f.Page - 1) * f.PageSize
	if start >= total {
		return []SavedArticle{}, total, nil
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
