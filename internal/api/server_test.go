package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoatlas/internal/config"
	"geoatlas/internal/geodata"
	"geoatlas/internal/query"
)

func testServer() *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(
		query.NewGeoService(nil, log),
		query.NewVG250Service(nil, log),
		query.NewPopulationService(nil, log),
		query.NewMetadataService(nil),
		log,
	)
}

func testRouter() http.Handler {
	cfg := &config.Config{
		RateLimitRPS:       100,
		RateLimitBurst:     200,
		CORSAllowedOrigins: []string{"*"},
	}
	return testServer().Router(cfg)
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doGet(t, testRouter(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestGeoRejectsPopulationOnADM1(t *testing.T) {
	rec := doGet(t, testRouter(),
		"/api/geo/?filter_aerial_level=adm1&feature_population=true&feature_geometries=false&feature_cities=false")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["message"], "ADM0")
}

func TestGeoRejectsMalformedZoom(t *testing.T) {
	rec := doGet(t, testRouter(), "/api/geo/?zoom_level=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVG250RequiresZoom(t *testing.T) {
	rec := doGet(t, testRouter(), "/api/geo/vg250?agg_level=land")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["message"], "zoom_level")
}

func TestVG250RejectsUnknownAggLevel(t *testing.T) {
	rec := doGet(t, testRouter(), "/api/geo/vg250?agg_level=bezirk&zoom_level=3")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPopulationRejectsInvertedRange(t *testing.T) {
	rec := doGet(t, testRouter(), "/api/geo/population?years_from=2020&years_to=2010")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPopulationRejectsMalformedYears(t *testing.T) {
	rec := doGet(t, testRouter(), "/api/geo/population?years=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitHeadersPresent(t *testing.T) {
	rec := doGet(t, testRouter(), "/healthz")
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestQueryList(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?c=DEU,FRA&c=USA&c=", nil)
	assert.Equal(t, []string{"DEU", "FRA", "USA"}, queryList(req, "c"))
	assert.Nil(t, queryList(req, "missing"))
}

func TestQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?a=true&b=0&c=maybe", nil)

	v, err := queryBool(req, "a", false)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = queryBool(req, "b", true)
	require.NoError(t, err)
	assert.False(t, v)

	v, err = queryBool(req, "missing", true)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = queryBool(req, "c", false)
	assert.Error(t, err)
}

func TestDecodeBBoxDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	b, err := decodeBBox(req, geodata.WorldBBox())
	require.NoError(t, err)
	assert.Equal(t, geodata.WorldBBox(), b)

	req = httptest.NewRequest(http.MethodGet,
		"/?filter_boundingbox_southwest_lng=5&filter_boundingbox_southwest_lat=47"+
			"&filter_boundingbox_northeast_lng=15&filter_boundingbox_northeast_lat=55", nil)
	b, err = decodeBBox(req, geodata.BBox{})
	require.NoError(t, err)
	assert.Equal(t, geodata.BBox{XMin: 5, YMin: 47, XMax: 15, YMax: 55}, b)
}
