package api

import (
	"net/http"
	"slices"

	"github.com/gorilla/mux"

	"github.com/tradechamp/tradechamp-server/internal/handler"
	"github.com/tradechamp/tradechamp-server/pkg/apperrors"
)

// CORSMiddleware gates API access by request origin. Requests without an
// Origin header (curl, mobile clients) pass through; origins outside the
// allow-list are rejected with a 403 envelope carrying the origin.
func CORSMiddleware(allowedOrigins []string, production bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if !slices.Contains(allowedOrigins, origin) {
				handler.WriteError(w, apperrors.OriginRejected(origin), production)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
