// Package api exposes the feed service over HTTP: JSON handlers, the route
// table, and the auth and rate-limit middleware.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/echo-social/echonet/internal/auth"
	"github.com/echo-social/echonet/internal/auth/ratelimit"
)

type contextKey string

const viewerKey contextKey = "viewer"

// Auth returns middleware that resolves an optional bearer session token to
// a viewer. Requests without a token proceed anonymously; requests with a
// bad token are rejected so clients notice expired sessions. Handlers that
// mutate check for a viewer themselves.
func Auth(validator *auth.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			viewer, err := validator.Validate(r.Context(), token)
			if err != nil {
				switch err {
				case auth.ErrInvalidToken:
					writeMiddlewareError(w, http.StatusUnauthorized, "invalid session token")
				case auth.ErrExpiredToken:
					writeMiddlewareError(w, http.StatusUnauthorized, "expired session token")
				default:
					writeMiddlewareError(w, http.StatusInternalServerError, "authentication error")
				}
				return
			}

			ctx := context.WithValue(r.Context(), viewerKey, viewer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ViewerFrom returns the authenticated viewer, or nil for anonymous requests.
func ViewerFrom(ctx context.Context) *auth.Viewer {
	viewer, _ := ctx.Value(viewerKey).(*auth.Viewer)
	return viewer
}

// RateLimit returns middleware that applies a per-viewer token bucket to
// mutations. Reads are not limited.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			key := r.RemoteAddr
			if viewer := ViewerFrom(r.Context()); viewer != nil {
				key = viewer.ID
			}
			if !limiter.Allow(key) {
				writeMiddlewareError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func writeMiddlewareError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
