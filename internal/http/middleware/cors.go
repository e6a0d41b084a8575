package middleware

import (
	"net/http"
	"slices"

	"github.com/rs/cors"

	"github.com/davidbz/starray/internal/config"
)

// CORS lets browser clients call the chat API. The request id header is always
// accepted and exposed so a client can correlate its turns with the server log.
func CORS(cfg *config.CORSConfig) Middleware {
	if cfg == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   withHeader(cfg.AllowedHeaders, RequestIDHeader),
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})

	return c.Handler
}

func withHeader(headers []string, name string) []string {
	if slices.ContainsFunc(headers, func(h string) bool { return http.CanonicalHeaderKey(h) == name }) {
		return headers
	}
	return append(slices.Clone(headers), name)
}
