package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"geoatlas/internal/domain"
	"geoatlas/internal/geodata"
	"geoatlas/internal/tier"
)

// GeoService answers the combined world geometry queries: country or
// province boundaries at the zoom-appropriate simplification tier, optionally
// joined with population figures, consulates and populated places. Every
// geometry is clipped to the requested bounding box.
type GeoService struct {
	db  *sql.DB
	log *slog.Logger
}

func NewGeoService(db *sql.DB, log *slog.Logger) *GeoService {
	return &GeoService{db: db, log: log.With("component", "geo-query")}
}

// GeoParams are the decoded query arguments. BBox defaults to the whole
// world; AerialLevel is empty when the caller did not filter by level.
type GeoParams struct {
	Source      string
	AerialLevel string   // "ADM0" or "ADM1"
	AerialCodes []string // ISO 3166-1 alpha-3
	Zoom        int
	BBox        geodata.BBox
	Geometries  bool
	Population  bool
	Consulates  bool
	Cities      bool
}

// effectiveLevel is the aerial level the geometry branch uses; an absent
// filter means countries.
func (p GeoParams) effectiveLevel() string {
	if p.AerialLevel == "" {
		return "ADM0"
	}
	return p.AerialLevel
}

func (s *GeoService) Query(ctx context.Context, p GeoParams) (*geodata.FeatureCollection, error) {
	if p.AerialLevel != "" && p.AerialLevel != "ADM0" && p.AerialLevel != "ADM1" {
		return nil, domain.ErrValidation("unknown filter_aerial_level %q: must be ADM0 or ADM1", p.AerialLevel)
	}
	if p.Population && p.effectiveLevel() == "ADM1" {
		return nil, domain.ErrValidation("feature_population only available for ADM0")
	}

	source := "gadm"
	if p.Source == "naturalearth" {
		source = "naturalearth"
	}
	level := tier.ForZoom(p.Zoom)
	bboxWKT := p.BBox.WKT()

	fc := geodata.NewFeatureCollection()

	if p.Geometries {
		codes, err := s.crosswalk(ctx, "adm0", source, p.AerialCodes)
		if err != nil {
			return nil, err
		}
		if p.effectiveLevel() == "ADM0" {
			if err := s.appendAdm0(ctx, fc, p, source, level, bboxWKT, codes); err != nil {
				return nil, err
			}
		} else {
			if err := s.appendAdm1(ctx, fc, source, level, bboxWKT, codes); err != nil {
				return nil, err
			}
		}
	}
	if p.Consulates {
		if err := s.appendConsulates(ctx, fc, p.AerialCodes, bboxWKT); err != nil {
			return nil, err
		}
	}
	if p.Cities {
		if err := s.appendCities(ctx, fc, p, bboxWKT); err != nil {
			return nil, err
		}
	}
	return fc, nil
}

// crosswalk resolves ISO alpha-3 codes to the codes a source keys its
// geometries by. An empty input yields no restriction.
func (s *GeoService) crosswalk(ctx context.Context, level, source string, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT link_to_code FROM link_table
		WHERE link_to_aerial_level = ? AND link_to_source = ? AND iso_3166_1_a3 IN (%s)`,
		placeholders(len(codes)))
	args := append([]any{level, source}, stringArgs(codes)...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("crosswalk codes: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan crosswalk code: %w", err)
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

func (s *GeoService) appendAdm0(ctx context.Context, fc *geodata.FeatureCollection, p GeoParams, source string, level int, bboxWKT string, codes []string) error {
	query := `
		SELECT a.adm0_code, ST_AsGeoJSON(ST_Intersection(a.geometry, ST_GeomFromText(?)))
		FROM adm0 a`
	args := []any{bboxWKT}

	if p.Population {
		popCodes, err := s.crosswalk(ctx, "adm0", "population", p.AerialCodes)
		if err != nil {
			return err
		}
		query = `
			SELECT a.adm0_code, ST_AsGeoJSON(ST_Intersection(a.geometry, ST_GeomFromText(?))), p.value
			FROM adm0 a
			JOIN population p ON p.adm0_code = a.adm0_code AND p.year = 2021`
		if len(popCodes) > 0 {
			query += fmt.Sprintf(" AND p.adm0_code IN (%s)", placeholders(len(popCodes)))
			args = append(args, stringArgs(popCodes)...)
		}
	}

	query += `
		WHERE a.geometry_level = ? AND a.source = ? AND ST_Intersects(a.geometry, ST_GeomFromText(?))`
	args = append(args, level, source, bboxWKT)
	if len(codes) > 0 {
		query += fmt.Sprintf(" AND a.adm0_code IN (%s)", placeholders(len(codes)))
		args = append(args, stringArgs(codes)...)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query adm0 geometries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var (
			code  string
			geom  sql.NullString
			value int64
		)
		dest := []any{&code, &geom}
		if p.Population {
			dest = append(dest, &value)
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan adm0 geometry: %w", err)
		}
		if !geom.Valid {
			continue
		}
		props := map[string]any{"adm0_code": code}
		if p.Population {
			props["population"] = value
		}
		fc.Append(json.RawMessage(geom.String), props)
	}
	return rows.Err()
}

func (s *GeoService) appendAdm1(ctx context.Context, fc *geodata.FeatureCollection, source string, level int, bboxWKT string, codes []string) error {
	query := `
		SELECT adm0_code, adm1_code, ST_AsGeoJSON(ST_Intersection(geometry, ST_GeomFromText(?)))
		FROM adm1
		WHERE geometry_level = ? AND source = ? AND ST_Intersects(geometry, ST_GeomFromText(?))`
	args := []any{bboxWKT, level, source, bboxWKT}
	if len(codes) > 0 {
		query += fmt.Sprintf(" AND adm0_code IN (%s)", placeholders(len(codes)))
		args = append(args, stringArgs(codes)...)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query adm1 geometries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var (
			adm0Code, adm1Code string
			geom               sql.NullString
		)
		if err := rows.Scan(&adm0Code, &adm1Code, &geom); err != nil {
			return fmt.Errorf("scan adm1 geometry: %w", err)
		}
		if !geom.Valid {
			continue
		}
		fc.Append(json.RawMessage(geom.String), map[string]any{
			"adm0_code": adm0Code,
			"adm1_code": adm1Code,
		})
	}
	return rows.Err()
}

// appendConsulates adds one point feature per mission, the mission details
// nested as a single consulate object. The code filter applies the raw ISO
// codes since consulates are keyed by alpha-3 directly.
func (s *GeoService) appendConsulates(ctx context.Context, fc *geodata.FeatureCollection, codes []string, bboxWKT string) error {
	query := `
		SELECT adm0_code, sovereign_code, consulate_code, name_de, url,
		       ST_AsGeoJSON(ST_Intersection(geometry, ST_GeomFromText(?)))
		FROM consulates
		WHERE ST_Intersects(geometry, ST_GeomFromText(?))`
	args := []any{bboxWKT, bboxWKT}
	if len(codes) > 0 {
		query += fmt.Sprintf(" AND adm0_code IN (%s)", placeholders(len(codes)))
		args = append(args, stringArgs(codes)...)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query consulates: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var (
			adm0Code, sovereign, code, nameDe, url string
			geom                                   sql.NullString
		)
		if err := rows.Scan(&adm0Code, &sovereign, &code, &nameDe, &url, &geom); err != nil {
			return fmt.Errorf("scan consulate: %w", err)
		}
		if !geom.Valid {
			continue
		}
		fc.Append(json.RawMessage(geom.String), map[string]any{
			"adm0_code": adm0Code,
			"consulate": map[string]any{
				"sovereign_code": sovereign,
				"code":           code,
				"name":           nameDe,
				"url":            url,
			},
		})
	}
	return rows.Err()
}

// appendCities adds the populated places. When the caller filtered by aerial
// level only the capitals of that level are returned.
func (s *GeoService) appendCities(ctx context.Context, fc *geodata.FeatureCollection, p GeoParams, bboxWKT string) error {
	query := `
		SELECT adm0_code, capital_level, nameascii, name_de, name_en, name_fr, population,
		       ST_AsGeoJSON(ST_Intersection(geometry, ST_GeomFromText(?)))
		FROM populated_places
		WHERE ST_Intersects(geometry, ST_GeomFromText(?))`
	args := []any{bboxWKT, bboxWKT}
	if p.AerialLevel != "" {
		query += ` AND capital_level = ?`
		args = append(args, strings.ToLower(p.AerialLevel))
	}
	if len(p.AerialCodes) > 0 {
		query += fmt.Sprintf(" AND adm0_code IN (%s)", placeholders(len(p.AerialCodes)))
		args = append(args, stringArgs(p.AerialCodes)...)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query populated places: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var (
			adm0Code, capitalLevel, nameASCII, nameDe, nameEn, nameFr string
			population                                                int64
			geom                                                      sql.NullString
		)
		if err := rows.Scan(&adm0Code, &capitalLevel, &nameASCII, &nameDe, &nameEn,
			&nameFr, &population, &geom); err != nil {
			return fmt.Errorf("scan populated place: %w", err)
		}
		if !geom.Valid {
			continue
		}
		fc.Append(json.RawMessage(geom.String), map[string]any{
			"adm0_code":     adm0Code,
			"capital_level": capitalLevel,
			"nameascii":     nameASCII,
			"name_de":       nameDe,
			"name_en":       nameEn,
			"name_fr":       nameFr,
			"population":    population,
		})
	}
	return rows.Err()
}
