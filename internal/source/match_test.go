package source

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractLocationName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"German Embassy Washington", "Washington"},
		{"German Consulate General Toronto", "Toronto"},
		{"Generalkonsulat New York", "New York"},
		{"Vertretungsbüro Ramallah", "Ramallah"},
		{"Paris", "Paris"},
		{"German Embassy", ""},
		{"  Oslo  ", "Oslo"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractLocationName(tt.in), "input %q", tt.in)
	}
}

func TestMatchRatio(t *testing.T) {
	assert.Equal(t, 100, matchRatio("Oslo", "Oslo"))
	assert.Equal(t, 100, matchRatio("", ""))
	assert.Equal(t, 0, matchRatio("abc", "xyz"))

	// One differing rune costs two edits over the combined length.
	assert.Equal(t, 50, matchRatio("ab", "ac"))

	// Symmetric.
	assert.Equal(t, matchRatio("Toronto", "Torontoo"), matchRatio("Torontoo", "Toronto"))
}

func TestMatchRatioPrefersCloserName(t *testing.T) {
	base := "Sao Paulo"
	closer := matchRatio("Sao Paulo", base)
	farther := matchRatio("San Pedro", base)
	assert.Greater(t, closer, farther)
}

func TestMergeConsulatesShallowMatch(t *testing.T) {
	places := []place{
		{attrs: map[string]string{"NAME_EN": "Oslo", "ADM0_A3": "NOR", "SOV_A3": "NOR"}, wkt: "POINT (10.7 59.9)"},
		{attrs: map[string]string{"NAME_EN": "Bergen", "ADM0_A3": "NOR", "SOV_A3": "NOR"}, wkt: "POINT (5.3 60.4)"},
	}
	consulates := []Consulate{{Code: "OSLO", NameEn: "Oslo", NameDe: "Oslo", URL: "https://oslo.example"}}

	rows := mergeConsulates(consulates, places, discardLogger())
	require.Len(t, rows, 1)
	assert.Equal(t, "NOR", rows[0].Adm0Code)
	assert.Equal(t, "OSLO", rows[0].ConsulateCode)
	assert.Equal(t, "POINT (10.7 59.9)", rows[0].WKT)
}

func TestMergeConsulatesDistinctiveAllocation(t *testing.T) {
	places := []place{
		{attrs: map[string]string{"NAME_EN": "Rome", "NAME": "Rome", "ADM0_A3": "ITA", "SOV_A3": "ITA"}, wkt: "POINT (12.5 41.9)"},
		{attrs: map[string]string{"NAME_EN": "Vatican City", "NAME": "Vatican City", "ADM0_A3": "VAT", "SOV_A3": "VAT"}, wkt: "POINT (12.45 41.9)"},
	}
	consulates := []Consulate{{Code: "VAT", NameEn: "The Holy See"}}

	rows := mergeConsulates(consulates, places, discardLogger())
	require.Len(t, rows, 1)
	assert.Equal(t, "VAT", rows[0].Adm0Code)
}

func TestMergeConsulatesInDepthMatch(t *testing.T) {
	// The English name column misses entirely, but an alternate name column
	// carries the right spelling.
	places := []place{
		{attrs: map[string]string{"NAME_EN": "Mumbai", "NAMEASCII": "Mumbai", "ADM0_A3": "IND", "SOV_A3": "IND"}},
		{attrs: map[string]string{"NAME_EN": "Kolkata", "NAME_DE": "Kalkutta", "ADM0_A3": "IND", "SOV_A3": "IND"}},
	}
	consulates := []Consulate{{Code: "KOL", NameEn: "Kalkutta"}}

	rows := mergeConsulates(consulates, places, discardLogger())
	require.Len(t, rows, 1)
	assert.Equal(t, "KOL", rows[0].ConsulateCode)
	assert.Equal(t, "IND", rows[0].Adm0Code)
}

func TestTransformConsulates(t *testing.T) {
	raw := []byte(`[
		{"code": "AA", "name_en": "Foreign Office", "name_de": "Auswärtiges Amt", "URL": "https://aa.example"},
		{"code": "OSL", "name_en": "German Embassy Oslo", "name_de": "Deutsche Botschaft Oslo", "URL": "https://oslo.example"},
		{"code": "NIL", "name_en": null, "name_de": "Botschaft", "URL": "https://nil.example"},
		{"code": "EMP", "name_en": "German Embassy", "name_de": "Deutsche Botschaft", "URL": "https://emp.example"}
	]`)

	got, err := transformConsulates(raw, discardLogger())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Consulate{Code: "OSL", NameEn: "Oslo", NameDe: "Oslo", URL: "https://oslo.example"}, got[0])
}

func TestTransformConsulatesRejectsMalformedFeed(t *testing.T) {
	_, err := transformConsulates([]byte(`{"not": "a list"}`), discardLogger())
	assert.Error(t, err)
}
