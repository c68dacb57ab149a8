package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle-audit-analyzer/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	handler := newRateLimiter(config.RateLimitConfig{RequestsPerSecond: 100, Burst: 10}).Middleware(okHandler())

	for range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	handler := newRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2}).Middleware(okHandler())

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "rate limit exceeded", body.Error)
	assert.Equal(t, "RATE_LIMITED", body.Code)
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	handler := newRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2}).Middleware(okHandler())

	// Client A exhausts its burst.
	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestFrom("10.0.0.1:1234"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// Another port of the same host shares the bucket.
	recA := httptest.NewRecorder()
	handler.ServeHTTP(recA, requestFrom("10.0.0.1:5678"))
	assert.Equal(t, http.StatusTooManyRequests, recA.Code)

	recB := httptest.NewRecorder()
	handler.ServeHTTP(recB, requestFrom("10.0.0.2:1234"))
	assert.Equal(t, http.StatusOK, recB.Code)
}

func TestRateLimiter_IgnoresForwardedFor(t *testing.T) {
	handler := newRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1}).Middleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.1:1234"))
	require.Equal(t, http.StatusOK, rec.Code)

	req := requestFrom("10.0.0.1:1234")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimiter_SweepsStaleClients(t *testing.T) {
	rl := newRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.lastSweep = now

	rl.limiterFor("10.0.0.1")
	rl.limiterFor("10.0.0.2")
	require.Equal(t, 2, rl.size())

	// Within the sweep interval nothing is removed.
	now = now.Add(time.Minute)
	rl.limiterFor("10.0.0.2")
	assert.Equal(t, 2, rl.size())

	// 10.0.0.1 was last seen 11 minutes before this call.
	now = now.Add(staleAfter)
	rl.limiterFor("10.0.0.3")
	assert.Equal(t, 2, rl.size())

	_, ok := rl.clients["10.0.0.1"]
	assert.False(t, ok)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"no-port", "no-port"},
	}

	for _, tt := range tests {
		t.Run(tt.remoteAddr, func(t *testing.T) {
			assert.Equal(t, tt.want, clientIP(requestFrom(tt.remoteAddr)))
		})
	}
}
