package api

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/pders01/headlines/internal/aggregator"
	"github.com/pders01/headlines/internal/debuglog"
	"github.com/pders01/headlines/internal/news"
	"github.com/pders01/headlines/internal/storage"
)

const maxBodyBytes = 1 << 20

type Pagination struct {
	Page         int `json:"page"`
	PageSize     int `json:"pageSize"`
	TotalResults int `json:"totalResults"`
	TotalPages   int `json:"totalPages"`
}

func newPagination(page, pageSize, total int) *Pagination {
	pages := 0
	if pageSize > 0 {
		pages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return &Pagination{Page: page, PageSize: pageSize, TotalResults: total, TotalPages: pages}
}

type envelope struct {
	Success     bool        `json:"success"`
	Data        any         `json:"data"`
	SearchQuery string      `json:"searchQuery,omitempty"`
	Category    string      `json:"category,omitempty"`
	Pagination  *Pagination `json:"pagination,omitempty"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		debuglog.Errorf("encoding response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		debuglog.Debugf("writing response: %v", err)
	}
}

func respondData(w http.ResponseWriter, status int, env envelope) {
	env.Success = true
	writeJSON(w, status, env)
}

func respondError(w http.ResponseWriter, status int, title, message string, details any) {
	writeJSON(w, status, errorBody{Error: title, Message: message, Details: details})
}

// respondErr maps domain errors onto HTTP statuses.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *news.ValidationError
		aerr *aggregator.AggregationError
	)

	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, "Invalid request", verr.Error(), verr.Violations)
	case errors.As(err, &aerr):
		status := http.StatusBadGateway
		if len(aerr.Attempted) == 0 {
			status = http.StatusServiceUnavailable
		}
		respondError(w, status, "Failed to fetch news", aerr.Error(), aerr.Causes)
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found", "The requested resource does not exist", nil)
	case errors.Is(err, storage.ErrAlreadySaved):
		respondError(w, http.StatusConflict, "Article already saved", "This article has already been saved to your collection", nil)
	case errors.Is(err, storage.ErrUsernameTaken):
		respondError(w, http.StatusConflict, "Username already taken", err.Error(), nil)
	case errors.Is(err, storage.ErrEmailTaken):
		respondError(w, http.StatusConflict, "Email already registered", err.Error(), nil)
	case errors.Is(err, storage.ErrInvalidRating), errors.Is(err, storage.ErrNotesTooLong):
		respondError(w, http.StatusBadRequest, "Invalid request", unwrapAll(err).Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "Request timed out", "The request took too long to complete", nil)
	case errors.Is(err, context.Canceled):
		debuglog.Debugf("%s %s: client went away", r.Method, sanitizeLogValue(r.URL.Path))
	default:
		debuglog.Errorf("%s %s: %v", r.Method, sanitizeLogValue(r.URL.Path), err)
		respondError(w, http.StatusInternalServerError, "Internal server error", "An unexpected error occurred", nil)
	}
}

func unwrapAll(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return news.NewValidationError("body", "is required")
		}
		return news.NewValidationError("body", "must be a valid JSON object")
	}
	return nil
}

// intParam parses an optional integer query parameter within [lo, hi].
func intParam(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, news.NewValidationError(key, "must be an integer between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi))
	}
	return n, nil
}

// boolParam returns nil unless the parameter is exactly "true" or "false".
func boolParam(r *http.Request, key string) *bool {
	switch r.URL.Query().Get(key) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}
