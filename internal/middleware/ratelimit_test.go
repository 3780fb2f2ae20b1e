package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(rps float64, burst int) http.Handler {
	return RateLimiter(RateLimitConfig{
		RequestsPerSecond: rps,
		Burst:             burst,
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func geoRequest(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/geo/", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	return req
}

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	handler := limitedHandler(100, 10)

	for range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, geoRequest(""))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiterRejectsWhenBurstExhausted(t *testing.T) {
	handler := limitedHandler(1, 2)

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, geoRequest(""))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, geoRequest(""))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.InDelta(t, float64(429), body["code"], 0.001)
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	handler := limitedHandler(1, 2)

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, geoRequest("10.0.0.1:1234"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// Same host on a different port is still the same client.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, geoRequest("10.0.0.1:5678"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, geoRequest("10.0.0.2:1234"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIPIgnoresForwardedFor(t *testing.T) {
	// X-Forwarded-For is attacker-controlled; honoring it would let one
	// client dodge its bucket by rotating the header.
	req := geoRequest("10.0.0.1:1234")
	req.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	assert.Equal(t, "10.0.0.1", clientIP(req))
}

func TestClientIPStripsPort(t *testing.T) {
	assert.Equal(t, "192.168.1.1", clientIP(geoRequest("192.168.1.1:12345")))
	assert.Equal(t, "::1", clientIP(geoRequest("[::1]:12345")))
}
