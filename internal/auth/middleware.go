package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"uploadflow/internal/response"
	"uploadflow/internal/upload"
)

type Config struct {
	APIKey string
}

// APIKeyMiddleware validates API key authentication
func APIKeyMiddleware(config *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if no API key configured (for development)
			if config.APIKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && matches(token, config.APIKey) {
				next.ServeHTTP(w, r)
				return
			}

			if matches(r.Header.Get("X-API-Key"), config.APIKey) {
				next.ServeHTTP(w, r)
				return
			}

			response.Error(w, http.StatusUnauthorized, upload.ErrUnauthorized,
				"Invalid or missing API key",
				"Provide API key via Authorization: Bearer <key> or X-API-Key: <key>")
		})
	}
}

func matches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
