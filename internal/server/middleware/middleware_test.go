package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gotest.tools/v3/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestAuth_PlainKey(t *testing.T) {
	h := Auth(AuthConfig{APIKey: "s3cret", PublicPaths: []string{"/api/health"}})(okHandler)

	r := httptest.NewRequest("GET", "/api/snapshot", nil)
	assert.Equal(t, serve(h, r).Code, http.StatusUnauthorized)

	r.Header.Set("Authorization", "Bearer s3cret")
	assert.Equal(t, serve(h, r).Code, http.StatusOK)

	r = httptest.NewRequest("GET", "/api/snapshot", nil)
	r.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, serve(h, r).Code, http.StatusUnauthorized)

	assert.Equal(t, serve(h, httptest.NewRequest("GET", "/api/health", nil)).Code, http.StatusOK)
}

func TestAuth_BcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("operator-key"), bcrypt.MinCost)
	assert.NilError(t, err)
	h := Auth(AuthConfig{APIKeyHash: string(hash)})(okHandler)

	r := httptest.NewRequest("POST", "/api/control/stop", nil)
	r.Header.Set("X-API-Key", "operator-key")
	assert.Equal(t, serve(h, r).Code, http.StatusOK)

	r.Header.Set("X-API-Key", "guess")
	assert.Equal(t, serve(h, r).Code, http.StatusUnauthorized)

	ws := httptest.NewRequest("GET", "/ws?api_key=operator-key", nil)
	assert.Equal(t, serve(h, ws).Code, http.StatusOK)
}

func TestAuth_Disabled(t *testing.T) {
	h := Auth(AuthConfig{})(okHandler)
	assert.Equal(t, serve(h, httptest.NewRequest("GET", "/api/snapshot", nil)).Code, http.StatusOK)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://ops.example.com"})(okHandler)

	r := httptest.NewRequest("OPTIONS", "/api/snapshot", nil)
	r.Header.Set("Origin", "https://ops.example.com")
	rec := serve(h, r)
	assert.Equal(t, rec.Code, http.StatusNoContent)
	assert.Equal(t, rec.Header().Get("Access-Control-Allow-Origin"), "https://ops.example.com")

	r = httptest.NewRequest("GET", "/api/snapshot", nil)
	r.Header.Set("Origin", "https://other.example.com")
	rec = serve(h, r)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Header().Get("Access-Control-Allow-Origin"), "")
}

func TestLogging_RequestID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen string
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	r := httptest.NewRequest("GET", "/api/health", nil)
	r.Header.Set("X-Request-ID", "abc-123")
	rec := serve(h, r)
	assert.Equal(t, seen, "abc-123")
	assert.Equal(t, rec.Header().Get("X-Request-ID"), "abc-123")

	serve(h, httptest.NewRequest("GET", "/api/health", nil))
	assert.Check(t, seen != "" && seen != "abc-123")
}

type countingLimiter struct {
	n   int
	err error
}

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.n++
	return l.n <= limit, l.err
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RateLimit(&countingLimiter{}, 2, time.Minute, logger)(okHandler)

	for i := 0; i < 2; i++ {
		assert.Equal(t, serve(h, httptest.NewRequest("GET", "/", nil)).Code, http.StatusOK)
	}
	rec := serve(h, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, rec.Code, http.StatusTooManyRequests)
	assert.Equal(t, rec.Header().Get("Retry-After"), "60")

	failing := RateLimit(&countingLimiter{n: 100, err: errors.New("redis down")}, 1, time.Second, logger)(okHandler)
	assert.Equal(t, serve(failing, httptest.NewRequest("GET", "/", nil)).Code, http.StatusOK)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, clientIP(r), "192.0.2.1")
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, clientIP(r), "203.0.113.9")
}
