// Package geodata holds the shared geospatial domain types: administrative
// aggregation levels, bounding boxes and GeoJSON output structures.
package geodata

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// AggLevel is a German administrative aggregation level.
type AggLevel string

const (
	AggGemeinde                AggLevel = "gemeinde"
	AggLand                    AggLevel = "land"
	AggRegierungsbezirk        AggLevel = "regierungsbezirk"
	AggKreis                   AggLevel = "kreis"
	AggVerwaltungsgemeinschaft AggLevel = "verwaltungsgemeinschaft"
	AggNUTS1                   AggLevel = "nuts1"
	AggNUTS2                   AggLevel = "nuts2"
	AggNUTS3                   AggLevel = "nuts3"
)

// AggLevels lists all aggregation levels, gemeinde first.
func AggLevels() []AggLevel {
	return []AggLevel{
		AggGemeinde,
		AggLand,
		AggRegierungsbezirk,
		AggKreis,
		AggVerwaltungsgemeinschaft,
		AggNUTS1,
		AggNUTS2,
		AggNUTS3,
	}
}

// ParseAggLevel validates an aggregation level string.
func ParseAggLevel(s string) (AggLevel, error) {
	for _, lvl := range AggLevels() {
		if string(lvl) == s {
			return lvl, nil
		}
	}
	return "", fmt.Errorf("unknown aggregation level %q", s)
}

// AttributeColumns returns the code and name columns of the attributes
// table that carry this level's identifiers.
func (l AggLevel) AttributeColumns() (code, name string, err error) {
	switch l {
	case AggGemeinde:
		return "arsg", "geng", nil
	case AggLand:
		return "arsl", "genl", nil
	case AggRegierungsbezirk:
		return "arsr", "genr", nil
	case AggKreis:
		return "arsk", "genk", nil
	case AggVerwaltungsgemeinschaft:
		return "arsv", "genv", nil
	case AggNUTS1:
		return "nuts1code", "nuts1name", nil
	case AggNUTS2:
		return "nuts2code", "nuts2name", nil
	case AggNUTS3:
		return "nuts3code", "nuts3name", nil
	default:
		return "", "", fmt.Errorf("unknown aggregation level %q", l)
	}
}

// BBox is a geographic extent in EPSG:4326.
type BBox struct {
	XMin float64
	YMin float64
	XMax float64
	YMax float64
}

// WorldBBox covers the whole globe.
func WorldBBox() BBox {
	return BBox{XMin: -180, YMin: -90, XMax: 180, YMax: 90}
}

// WKT renders the extent as a closed polygon.
func (b BBox) WKT() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return "POLYGON((" +
		f(b.XMin) + " " + f(b.YMin) + ", " +
		f(b.XMax) + " " + f(b.YMin) + ", " +
		f(b.XMax) + " " + f(b.YMax) + ", " +
		f(b.XMin) + " " + f(b.YMax) + ", " +
		f(b.XMin) + " " + f(b.YMin) + "))"
}

// Slice returns [xmin, ymin, xmax, ymax].
func (b BBox) Slice() []float64 {
	return []float64{b.XMin, b.YMin, b.XMax, b.YMax}
}

// Feature is a GeoJSON feature with an opaque geometry.
type Feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// FeatureCollection is a GeoJSON feature collection. Features is never nil
// so an empty result serializes as an empty array.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection returns an empty collection.
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
}

// Append adds a feature built from a raw GeoJSON geometry and properties.
func (fc *FeatureCollection) Append(geometry json.RawMessage, properties map[string]any) {
	fc.Features = append(fc.Features, Feature{
		Type:       "Feature",
		Geometry:   geometry,
		Properties: properties,
	})
}
