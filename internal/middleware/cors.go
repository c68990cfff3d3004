package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
)

// CORS returns middleware that handles Cross-Origin Resource Sharing for the
// configured plugin origin. Only the configured origin is allowed.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	origin := strings.TrimRight(frontendURL, "/")

	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           int((24 * time.Hour).Seconds()),
	})
}
