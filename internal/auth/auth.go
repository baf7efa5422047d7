package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// Config holds the status server's bearer token settings.
type Config struct {
	Enabled bool
	Token   string
}

// exemptPaths stay public so orchestrators can probe a running generator.
var exemptPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

// Middleware returns an HTTP middleware that requires a Bearer token on
// non-probe paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearer(r.Header.Get("Authorization"))
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	return header[len(prefix):], true
}
