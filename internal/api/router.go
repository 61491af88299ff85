package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(recordMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found", "No route for "+r.Method+" "+r.URL.Path, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed", r.Method+" is not supported on "+r.URL.Path, nil)
	})

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimit())
		if s.cfg.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(s.cfg.RequestTimeout))
		}
		r.Use(identify)

		r.Route("/news", func(r chi.Router) {
			r.Get("/headlines", s.handleHeadlines)
			r.Get("/search", s.handleSearchNews)
			r.Get("/category/{category}", s.handleCategoryNews)
			r.Get("/trending", s.handleTrending)
			r.Get("/categories", handleCategories)
			r.Get("/countries", handleCountries)
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/", s.handleGetProfile)
			r.Put("/", s.handleUpdateProfile)
			r.Get("/preferences", s.handleGetPreferences)
			r.Put("/preferences", s.handleUpdatePreferences)
		})

		r.Route("/articles", func(r chi.Router) {
			r.Get("/{id}", s.handleGetArticle)

			r.Group(func(r chi.Router) {
				r.Use(requireUser)
				r.Post("/", s.handleSaveArticle)
				r.Get("/saved", s.handleListSaved)
				r.Get("/bookmarked", s.handleListBookmarked)
				r.Get("/search", s.handleSearchArticles)
				r.Delete("/{id}", s.handleRemoveArticle)
				r.Post("/{id}/bookmark", s.handleBookmark)
				r.Post("/{id}/read", s.handleMarkRead)
				r.Post("/{id}/rate", s.handleRate)
				r.Post("/{id}/notes", s.handleNotes)
			})
		})
	})

	return r
}

// rateLimit limits requests per client IP per minute. A non-positive limit
// disables it.
func (s *Server) rateLimit() func(http.Handler) http.Handler {
	if s.cfg.RateLimit <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		s.cfg.RateLimit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusTooManyRequests, "Too many requests", "Rate limit exceeded, try again later", nil)
		}),
	)
}
