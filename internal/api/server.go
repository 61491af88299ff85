// Package api exposes headlines, preferences and saved articles over HTTP.
//
// Callers are identified by the X-User-ID header, set by the authenticating
// proxy in front of the service. News routes work anonymously; user and
// article routes require the header.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pders01/headlines/internal/cache"
	"github.com/pders01/headlines/internal/config"
	"github.com/pders01/headlines/internal/debuglog"
	"github.com/pders01/headlines/internal/news"
	"github.com/pders01/headlines/internal/search"
	"github.com/pders01/headlines/internal/storage"
)

// HeadlineService serves (optionally personalized) aggregated headlines.
type HeadlineService interface {
	Headlines(ctx context.Context, userID string, q news.NewsQuery) (*news.AggregatedResult, error)
	Preferences(userID string) (news.UserPreferences, error)
	Invalidate(userID string)
}

// Store is the persistence the handlers need.
type Store interface {
	GetUser(id string) (*storage.User, error)
	UpdateProfile(userID, username, email string) (*storage.User, error)
	UpdatePreferences(userID string, prefs news.UserPreferences) (news.UserPreferences, error)

	SaveArticle(userID string, in storage.SaveInput) (*storage.SavedArticle, error)
	GetArticle(id string) (*storage.Article, error)
	GetUserArticle(userID, articleID string) (*storage.UserArticle, error)
	ToggleBookmark(userID, articleID string) (*storage.UserArticle, error)
	MarkRead(userID, articleID string) (*storage.UserArticle, error)
	Rate(userID, articleID string, rating int) (*storage.UserArticle, error)
	SetNotes(userID, articleID, notes string) (*storage.UserArticle, error)
	RemoveArticle(userID, articleID string) error
	ListUserArticles(userID string, filter storage.ArticleFilter) ([]storage.SavedArticle, int, error)
}

type ProviderLister interface {
	Names() []string
}

// Deps are the collaborators of a Server. Search, Cache and Providers are
// optional.
type Deps struct {
	News      HeadlineService
	Store     Store
	Search    search.Searcher
	Cache     *cache.Store
	Providers ProviderLister
	Version   string
}

type Server struct {
	cfg     config.ServerConfig
	deps    Deps
	handler http.Handler
	started time.Time
}

func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps, started: time.Now()}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		debuglog.Infof("listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	debuglog.Infof("shutting down (timeout %s)", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
