package query

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoatlas/internal/domain"
	"geoatlas/internal/geodata"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestGeoParamsEffectiveLevel(t *testing.T) {
	assert.Equal(t, "ADM0", GeoParams{}.effectiveLevel())
	assert.Equal(t, "ADM1", GeoParams{AerialLevel: "ADM1"}.effectiveLevel())
}

func TestGeoQueryRejectsPopulationOnADM1(t *testing.T) {
	svc := NewGeoService(nil, testLogger())
	_, err := svc.Query(context.Background(), GeoParams{
		AerialLevel: "ADM1",
		Population:  true,
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "ADM0")
}

func TestGeoQueryRejectsUnknownAerialLevel(t *testing.T) {
	svc := NewGeoService(nil, testLogger())
	_, err := svc.Query(context.Background(), GeoParams{AerialLevel: "ADM7"})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func validVG250Params() VG250Params {
	return VG250Params{AggLevel: "verwaltungsgemeinschaft", Zoom: 5, ZoomSet: true}
}

func TestVG250ParamsValidate(t *testing.T) {
	agg, err := validVG250Params().validate()
	require.NoError(t, err)
	assert.Equal(t, geodata.AggVerwaltungsgemeinschaft, agg)

	cases := []struct {
		name   string
		mutate func(*VG250Params)
		errSub string
	}{
		{"missing agg_level", func(p *VG250Params) { p.AggLevel = "" }, "agg_level required"},
		{"unknown agg_level", func(p *VG250Params) { p.AggLevel = "bezirk" }, "unknown agg_level"},
		{"missing zoom", func(p *VG250Params) { p.ZoomSet = false }, "zoom_level required"},
		{"negative zoom", func(p *VG250Params) { p.Zoom = -1; p.ZoomSet = true }, "zoom_level"},
		{"names without level", func(p *VG250Params) { p.FilterNames = []string{"Hannover"} }, "filter_level"},
		{"names and codes", func(p *VG250Params) {
			p.FilterLevel = "land"
			p.FilterNames = []string{"Niedersachsen"}
			p.FilterCodes = []string{"03"}
		}, "either filter_names or filter_codes"},
		{"unknown filter_level", func(p *VG250Params) {
			p.FilterLevel = "bezirk"
			p.FilterCodes = []string{"03"}
		}, "unknown filter_level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validVG250Params()
			tc.mutate(&p)
			_, err := p.validate()
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Message, tc.errSub)
		})
	}
}

func TestBuildVG250QueryNoFilters(t *testing.T) {
	p := validVG250Params()
	query, args, err := buildVG250Query(p, geodata.AggVerwaltungsgemeinschaft, 6)
	require.NoError(t, err)
	assert.Contains(t, query, "geometry_level = ? AND agg_level = ?")
	assert.NotContains(t, query, "vg250_attributes")
	assert.NotContains(t, query, "ST_Intersects")
	assert.Equal(t, []any{6, "verwaltungsgemeinschaft"}, args)
}

func TestBuildVG250QueryNameFilter(t *testing.T) {
	p := validVG250Params()
	p.AggLevel = "gemeinde"
	p.FilterLevel = "land"
	p.FilterNames = []string{"Niedersachsen", "Bremen"}

	query, args, err := buildVG250Query(p, geodata.AggGemeinde, 3)
	require.NoError(t, err)
	assert.Contains(t, query, "SELECT arsg FROM vg250_attributes WHERE genl IN (?, ?)")
	assert.Equal(t, []any{"Niedersachsen", "Bremen", 3}, args)
}

func TestBuildVG250QueryCodeFilterWithBBox(t *testing.T) {
	p := validVG250Params()
	p.FilterLevel = "kreis"
	p.FilterCodes = []string{"03241"}
	p.BBox = geodata.BBox{XMin: 9, YMin: 52, XMax: 10, YMax: 53}

	query, args, err := buildVG250Query(p, geodata.AggVerwaltungsgemeinschaft, 0)
	require.NoError(t, err)
	assert.Contains(t, query, "SELECT arsv FROM vg250_attributes WHERE arsk IN (?)")
	assert.Contains(t, query, "ST_Intersection(geometry, ST_GeomFromText(?))")
	assert.Contains(t, query, "ST_Intersects(geometry, ST_GeomFromText(?))")

	wkt := p.BBox.WKT()
	assert.Equal(t, []any{wkt, "03241", 0, wkt}, args)
}

func TestBuildVG250QueryIgnoresFilterLevelWithoutValues(t *testing.T) {
	p := validVG250Params()
	p.FilterLevel = "land"

	query, args, err := buildVG250Query(p, geodata.AggVerwaltungsgemeinschaft, 2)
	require.NoError(t, err)
	assert.NotContains(t, query, "vg250_attributes")
	assert.Equal(t, []any{2, "verwaltungsgemeinschaft"}, args)
}

func TestVG250ParamsHasBBox(t *testing.T) {
	p := validVG250Params()
	assert.False(t, p.hasBBox())
	p.BBox = geodata.BBox{XMin: 1}
	assert.True(t, p.hasBBox())
}

func TestPopulationQueryValidation(t *testing.T) {
	svc := NewPopulationService(nil, testLogger())

	_, err := svc.Query(context.Background(), PopulationParams{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "source required")

	from, to := 2020, 2010
	_, err = svc.Query(context.Background(), PopulationParams{
		Source:    "WPP2022",
		YearsFrom: &from,
		YearsTo:   &to,
	})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "years_to")
}

func TestResolveYearsClosedRange(t *testing.T) {
	svc := NewPopulationService(nil, testLogger())
	from, to := 2019, 2021

	years, err := svc.resolveYears(context.Background(), PopulationParams{
		Years:     []int{2025, 2020},
		YearsFrom: &from,
		YearsTo:   &to,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 2020, 2021, 2025}, years)
}

func TestResolveYearsNoRange(t *testing.T) {
	svc := NewPopulationService(nil, testLogger())
	years, err := svc.resolveYears(context.Background(), PopulationParams{
		Years: []int{2021, 2019, 2021},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 2021}, years)
}

func TestUniqueSorted(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, uniqueSorted([]int{3, 1, 2, 1, 3}))
	assert.Nil(t, uniqueSorted(nil))
}
