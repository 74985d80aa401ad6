package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS admits the configured storefront origins. Blank entries are ignored and
// an empty list falls back to the local dev storefront.
func CORS(origins []string) func(http.Handler) http.Handler {
	var allowed []string
	for _, origin := range origins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			allowed = append(allowed, origin)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{"http://localhost:3000"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			idempotencyHeader,
			sessionHeader,
			requestIDHeader,
		},
		ExposedHeaders:   []string{requestIDHeader, "Idempotent-Replayed", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
