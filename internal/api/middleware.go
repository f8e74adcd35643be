package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"notely/internal/broadcast"
	"notely/internal/services"
)

const (
	// OriginHeader names the caller's notifier context.
	OriginHeader    = "X-Notely-Origin"
	requestIDHeader = "X-Request-Id"
)

// authMiddleware validates bearer tokens. If token is empty, no
// authentication is required. Websocket clients that cannot set headers may
// pass ?token= instead.
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := ""
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				supplied = strings.TrimPrefix(auth, "Bearer ")
			} else if q := r.URL.Query().Get("token"); q != "" {
				supplied = q
			}
			if supplied != token {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// contextMiddleware attaches the request id and notifier origin.
func contextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, rid)
		ctx := services.WithRequestID(r.Context(), rid)
		if origin := strings.TrimSpace(r.Header.Get(OriginHeader)); origin != "" {
			ctx = broadcast.WithOrigin(ctx, origin)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
