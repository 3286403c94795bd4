package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
)

// CORS applies the configured origin policy. With no origins configured it
// passes requests through untouched.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           int(cfg.MaxAge.Seconds()),
	}).Handler
}
