package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idCapturingHandler(captured *string) http.Handler {
	return RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRequestIDGeneratesID(t *testing.T) {
	var captured string
	rec := httptest.NewRecorder()
	idCapturingHandler(&captured).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/geo/", nil))

	require.NotEmpty(t, captured)
	assert.Equal(t, captured, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDReusesWellFormedHeader(t *testing.T) {
	var captured string
	req := httptest.NewRequest(http.MethodGet, "/api/geo/", nil)
	req.Header.Set("X-Request-ID", "etl-run-42_a")

	rec := httptest.NewRecorder()
	idCapturingHandler(&captured).ServeHTTP(rec, req)

	assert.Equal(t, "etl-run-42_a", captured)
	assert.Equal(t, "etl-run-42_a", rec.Header().Get("X-Request-ID"))
}

func TestRequestIDReplacesMalformedHeader(t *testing.T) {
	// The id is written into log lines verbatim, so control characters and
	// markup must never pass through.
	malformed := []string{
		"id\nforged: line",
		"id\rforged: line",
		"id with spaces",
		"id<script>alert(1)</script>",
		strings.Repeat("a", maxRequestIDLength+1),
	}
	for _, header := range malformed {
		var captured string
		req := httptest.NewRequest(http.MethodGet, "/api/geo/", nil)
		req.Header.Set("X-Request-ID", header)

		rec := httptest.NewRecorder()
		idCapturingHandler(&captured).ServeHTTP(rec, req)

		require.NotEmpty(t, captured, header)
		assert.NotEqual(t, header, captured, header)
	}

	var captured string
	req := httptest.NewRequest(http.MethodGet, "/api/geo/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("a", maxRequestIDLength))

	rec := httptest.NewRecorder()
	idCapturingHandler(&captured).ServeHTTP(rec, req)
	assert.Equal(t, strings.Repeat("a", maxRequestIDLength), captured)
}

func TestRequestIDFromContextWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/geo/", nil)
	assert.Empty(t, RequestIDFromContext(req.Context()))
}
