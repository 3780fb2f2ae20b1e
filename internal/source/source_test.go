package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllSourcesAreNamedAndOrdered(t *testing.T) {
	srcs := All()
	require.NotEmpty(t, srcs)

	var names []string
	for _, s := range srcs {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{
		"metadata", "naturalearth", "vg250", "population",
		"wahlkreise", "consulates", "populated_places", "nomenclature",
	}, names)
}

func TestByName(t *testing.T) {
	src := ByName("vg250")
	require.NotNil(t, src)
	assert.Equal(t, "vg250", src.Name())

	assert.Nil(t, ByName("bogus"))
}

func TestCustomFlowSources(t *testing.T) {
	_, ok := ByName("consulates").(CustomFlow)
	assert.True(t, ok)
	_, ok = ByName("nomenclature").(CustomFlow)
	assert.True(t, ok)
	_, ok = ByName("naturalearth").(CustomFlow)
	assert.False(t, ok)
}

func TestSQLString(t *testing.T) {
	assert.Equal(t, "'/tmp/a.gpkg'", sqlString("/tmp/a.gpkg"))
	assert.Equal(t, "'it''s'", sqlString("it's"))
}

func TestSTRead(t *testing.T) {
	assert.Equal(t, "ST_Read('/tmp/a.gpkg')", stRead(SourceFile{Path: "/tmp/a.gpkg"}))
	assert.Equal(t,
		"ST_Read('/tmp/a.gpkg', layer='vg250_gem')",
		stRead(SourceFile{Path: "/tmp/a.gpkg", Layer: "vg250_gem"}))
}

func TestPopulationRowFromRecord(t *testing.T) {
	cols := []string{"ISO3 Alpha-code", "Region", "Year", "0", "1", "100+", "Notes"}

	row, ok := populationRowFromRecord(cols, []any{"DEU", "Europe", int64(2021), 750.5, float64(800), "1,2", "x"})
	require.True(t, ok)
	assert.Equal(t, "DEU", row.Adm0Code)
	assert.Equal(t, 2021, row.Year)
	assert.Equal(t, int64(1562500), row.Value)

	// Aggregate rows carry no country code and are dropped.
	_, ok = populationRowFromRecord(cols, []any{nil, "World", int64(2021), 1.0, 2.0, 3.0, ""})
	assert.False(t, ok)
	_, ok = populationRowFromRecord(cols, []any{"", "World", int64(2021), 1.0, 2.0, 3.0, ""})
	assert.False(t, ok)
}

func TestIsAgeBracket(t *testing.T) {
	assert.True(t, isAgeBracket("0"))
	assert.True(t, isAgeBracket("42"))
	assert.True(t, isAgeBracket("100+"))
	assert.False(t, isAgeBracket("Year"))
	assert.False(t, isAgeBracket("+"))
	assert.False(t, isAgeBracket(""))
	assert.False(t, isAgeBracket("ISO3 Alpha-code"))
}

func TestBuildLinkRows(t *testing.T) {
	countries := []countryCode{
		{Name: "Germany", Alpha2: "DE", Alpha3: "DEU", Numeric: 276, Independent: "Yes"},
		{Name: "No Alpha3", Alpha2: "XX"},
	}
	subs := []subdivision{
		{CountryAlpha2: "DE", Name: "Bayern", Code: "DE-BY"},
		{CountryAlpha2: "ZZ", Name: "Orphan", Code: "ZZ-OR"},
		{CountryAlpha2: "DE", Name: "No Code"},
	}

	adm0, adm1 := buildLinkRows(countries, subs)

	require.Len(t, adm0, len(adm0LinkTargets))
	seen := map[string]bool{}
	for _, r := range adm0 {
		assert.Equal(t, "adm0", r.Level)
		assert.Equal(t, "DEU", r.Code)
		assert.Equal(t, "Germany", r.ISOName)
		seen[r.Source] = true
	}
	for _, target := range adm0LinkTargets {
		assert.True(t, seen[target], "missing adm0 rows for %s", target)
	}

	require.Len(t, adm1, 1)
	assert.Equal(t, linkRow{
		ISOName:     "Bayern",
		Alpha2:      "DE",
		Alpha3:      "DEU",
		Numeric:     276,
		Independent: "Yes",
		ISO3166_2:   "DE-BY",
		Level:       "adm1",
		Source:      "gadm",
		Code:        "DE-BY",
		LinkName:    "Bayern",
	}, adm1[0])
}

func TestParseMetadataDocument(t *testing.T) {
	plain := []byte(`{
		"title": "VG250",
		"abstract": "German administrative areas",
		"responsibleParty": "BKG",
		"crs": "EPSG:25832",
		"format": "GPKG",
		"datatype": "vector",
		"geoBox": [5.8, 47.2, 15.1, 55.1],
		"keywords": ["boundaries", "germany"],
		"origin": [{"originName": "BKG", "originLicence": "dl-de/by-2-0"}]
	}`)

	doc, err := parseMetadataDocument(plain, "vg250")
	require.NoError(t, err)
	assert.Equal(t, "vg250", doc.Source)
	assert.Equal(t, "VG250", doc.Title)
	assert.Equal(t, []float64{5.8, 47.2, 15.1, 55.1}, doc.GeoBox)
	require.Len(t, doc.Origins, 1)
	assert.Equal(t, "BKG", doc.Origins[0].Name)

	wrapped := []byte(`{"0": {"title": "Wrapped"}}`)
	doc, err = parseMetadataDocument(wrapped, "population")
	require.NoError(t, err)
	assert.Equal(t, "population", doc.Source)
	assert.Equal(t, "Wrapped", doc.Title)

	_, err = parseMetadataDocument([]byte(`[1, 2]`), "x")
	assert.Error(t, err)
}
