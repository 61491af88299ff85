package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status          string    `json:"status"`
	Version         string    `json:"version,omitempty"`
	Uptime          string    `json:"uptime"`
	Providers       []string  `json:"providers"`
	CacheEntries    int       `json:"cacheEntries"`
	CacheHits       int64     `json:"cacheHits"`
	CacheMisses     int64     `json:"cacheMisses"`
	IndexedArticles *int      `json:"indexedArticles,omitempty"`
	Time            time.Time `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Version:   s.deps.Version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Providers: []string{},
		Time:      time.Now().UTC(),
	}
	if s.deps.Providers != nil {
		resp.Providers = s.deps.Providers.Names()
	}
	if s.deps.Cache != nil {
		st := s.deps.Cache.Stats()
		resp.CacheEntries = st.Entries
		resp.CacheHits = st.Hits
		resp.CacheMisses = st.Misses
	}
	if s.deps.Search != nil {
		if n, err := s.deps.Search.DocCount(); err == nil {
			resp.IndexedArticles = &n
		} else {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
