package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/gebeya-market/gebeya-backend/pkg/config"
)

var (
	corsMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	corsRequestHeaders = []string{
		"Accept", "Accept-Language", "Authorization", "Content-Type",
		IdempotencyKeyHeader, requestIDHeader, "X-Requested-With",
	}
	corsExposedHeaders = []string{requestIDHeader, replayedHeader, "Retry-After"}
)

// CORS lets browser clients on the configured origins call the API and read
// the request id and idempotency replay headers.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   corsRequestHeaders,
		ExposedHeaders:   corsExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           int(cfg.MaxAge.Seconds()),
	})
}
