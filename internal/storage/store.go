package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/pders01/headlines/internal/debuglog"
	"github.com/pders01/headlines/internal/validation"
)

var (
	usersBucket        = []byte("users")
	usernamesBucket    = []byte("usernames")
	emailsBucket       = []byte("emails")
	articlesBucket     = []byte("articles")
	articleURLsBucket  = []byte("article_urls")
	userArticlesBucket = []byte("user_articles")
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadySaved  = errors.New("article already saved")
	ErrInvalidRating = fmt.Errorf("rating must be between %d and %d", MinRating, MaxRating)
	ErrNotesTooLong  = fmt.Errorf("notes cannot exceed %d characters", MaxNotesLength)
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already registered")
)

// UpdateListener is notified after a catalog article is created or changed.
// The search index implements it.
type UpdateListener interface {
	OnArticleSaved(article *Article)
}

type Store struct {
	db   *bolt.DB
	urls *validation.ArticleURLValidator
	now  func() time.Time

	mu        sync.RWMutex
	listeners []UpdateListener
}

// NewStore opens (or creates) the bbolt file at dbPath. timeout bounds the
// wait for the file lock held by another process.
func NewStore(dbPath string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = 1 * time.Second
	}
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{
			usersBucket, usernamesBucket, emailsBucket,
			articlesBucket, articleURLsBucket, userArticlesBucket,
		} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{
		db:   db,
		urls: validation.NewArticleURLValidator(),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SetURLValidator replaces the validator applied to saved article links.
func (s *Store) SetURLValidator(v *validation.ArticleURLValidator) {
	if v != nil {
		s.urls = v
	}
}

func (s *Store) AddListener(l UpdateListener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

func (s *Store) notifySaved(article *Article) {
	s.mu.RLock()
	listeners := append([]UpdateListener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					debuglog.Errorf("article listener panicked: %v", r)
				}
			}()
			l.OnArticleSaved(article)
		}()
	}
}

func getRecord(b *bolt.Bucket, key string, out any) error {
	data := b.Get([]byte(key))
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, out)
}

func putRecord(b *bolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func userArticleKey(userID, articleID string) []byte {
	return []byte(userID + "/" + articleID)
}
