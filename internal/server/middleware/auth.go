package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AuthConfig selects how operator tokens are checked. APIKeyHash (bcrypt)
// wins over APIKey; with neither set authentication is disabled.
type AuthConfig struct {
	APIKey     string
	APIKeyHash string
	// PublicPaths skip authentication entirely.
	PublicPaths []string
}

// Enabled reports whether any credential is configured.
func (c AuthConfig) Enabled() bool {
	return c.APIKey != "" || c.APIKeyHash != ""
}

// Auth returns middleware that requires a Bearer token or X-API-Key header
// matching the configured key.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	public := make(map[string]bool, len(cfg.PublicPaths))
	for _, p := range cfg.PublicPaths {
		public[p] = true
	}

	verify := func(token string) bool {
		if cfg.APIKeyHash != "" {
			return bcrypt.CompareHashAndPassword([]byte(cfg.APIKeyHash), []byte(token)) == nil
		}
		return subtle.ConstantTimeCompare([]byte(token), []byte(cfg.APIKey)) == 1
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled() || public[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing authentication token")
				return
			}
			if !verify(token) {
				writeJSONError(w, http.StatusUnauthorized, "invalid authentication token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads "Authorization: Bearer <token>", then X-API-Key, then
// the api_key query parameter (browsers cannot set headers on WebSocket
// upgrades).
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	if r.URL.Path == "/ws" {
		return r.URL.Query().Get("api_key")
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
