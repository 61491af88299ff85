package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pders01/headlines/internal/debuglog"
	"github.com/pders01/headlines/internal/metrics"
)

// UserIDHeader carries the authenticated user's ID.
const UserIDHeader = "X-User-ID"

const maxUserIDLength = 64

type ctxKey int

const userIDKey ctxKey = iota

// identify stores the caller's user ID in the request context. Malformed IDs
// are rejected rather than treated as anonymous.
func identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !validUserID(id) {
			respondError(w, http.StatusBadRequest, "Invalid user", UserIDHeader+" is malformed", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

func validUserID(id string) bool {
	if len(id) > maxUserIDLength {
		return false
	}
	for _, c := range id {
		if c <= 0x20 || c >= 0x7f || c == '/' {
			return false
		}
	}
	return true
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID(r) == "" {
			respondError(w, http.StatusUnauthorized, "Authentication required", "Missing "+UserIDHeader+" header", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		fields := map[string]interface{}{
			"request_id":  chimiddleware.GetReqID(r.Context()),
			"method":      r.Method,
			"path":        sanitizeLogValue(r.URL.Path),
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"remote":      r.RemoteAddr,
		}
		logger := debuglog.WithFields(fields)
		switch {
		case ww.Status() >= 500:
			logger.Errorf("request failed")
		case ww.Status() >= 400:
			logger.Infof("request rejected")
		default:
			logger.Debugf("request served")
		}
	})
}

// recordMetrics labels by route pattern so path parameters don't explode
// label cardinality.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, route, status, time.Since(start))
	})
}

// sanitizeLogValue escapes control characters so request data cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
