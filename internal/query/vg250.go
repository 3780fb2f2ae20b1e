package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"geoatlas/internal/domain"
	"geoatlas/internal/geodata"
	"geoatlas/internal/tier"
)

// VG250Service answers queries over the German administrative areas at a
// chosen aggregation level and zoom, optionally filtered through the
// attribute table by the names or codes of another level.
type VG250Service struct {
	db  *sql.DB
	log *slog.Logger
}

func NewVG250Service(db *sql.DB, log *slog.Logger) *VG250Service {
	return &VG250Service{db: db, log: log.With("component", "vg250-query")}
}

// VG250Params are the decoded query arguments. A zero-valued BBox means no
// clipping; ZoomSet distinguishes a zero zoom from an absent one.
type VG250Params struct {
	AggLevel    string
	Zoom        int
	ZoomSet     bool
	FilterLevel string
	FilterNames []string
	FilterCodes []string
	BBox        geodata.BBox
}

func (p VG250Params) hasBBox() bool {
	return p.BBox.XMin+p.BBox.YMin+p.BBox.XMax+p.BBox.YMax != 0
}

func (p VG250Params) validate() (geodata.AggLevel, error) {
	if p.AggLevel == "" {
		return "", domain.ErrValidation("agg_level required for API call")
	}
	agg, err := geodata.ParseAggLevel(p.AggLevel)
	if err != nil {
		return "", domain.ErrValidation(
			"unknown agg_level %q: must be one of %v", p.AggLevel, geodata.AggLevels())
	}
	if !p.ZoomSet {
		return "", domain.ErrValidation("zoom_level required for API call")
	}
	if p.Zoom < 0 {
		return "", domain.ErrValidation("zoom_level %d must be larger or equal to 0", p.Zoom)
	}

	filtered := len(p.FilterNames) > 0 || len(p.FilterCodes) > 0
	if filtered && p.FilterLevel == "" {
		return "", domain.ErrValidation(
			"when a filter_name or a filter_code is selected a filter_level also must be defined")
	}
	if len(p.FilterNames) > 0 && len(p.FilterCodes) > 0 {
		return "", domain.ErrValidation("define either filter_names or filter_codes")
	}
	if p.FilterLevel != "" {
		if _, err := geodata.ParseAggLevel(p.FilterLevel); err != nil {
			return "", domain.ErrValidation(
				"unknown filter_level %q: must be one of %v", p.FilterLevel, geodata.AggLevels())
		}
	}
	return agg, nil
}

func (s *VG250Service) Query(ctx context.Context, p VG250Params) (*geodata.FeatureCollection, error) {
	agg, err := p.validate()
	if err != nil {
		return nil, err
	}
	level := tier.ForZoom(p.Zoom)

	query, args, err := buildVG250Query(p, agg, level)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vg250: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	fc := geodata.NewFeatureCollection()
	for rows.Next() {
		var (
			code, name, aggLevel, source string
			geometryLevel                int
			geom                         sql.NullString
		)
		if err := rows.Scan(&code, &name, &geometryLevel, &aggLevel, &source, &geom); err != nil {
			return nil, fmt.Errorf("scan vg250 row: %w", err)
		}
		if !geom.Valid {
			continue
		}
		fc.Append(json.RawMessage(geom.String), map[string]any{
			"code":           code,
			"name":           name,
			"geometry_level": geometryLevel,
			"agg_level":      aggLevel,
			"source":         source,
		})
	}
	return fc, rows.Err()
}

// buildVG250Query assembles the selection. Filters resolve the wanted codes
// through the attribute table: the filter level picks the match column, the
// aggregation level picks the code column the geometries are keyed by.
func buildVG250Query(p VG250Params, agg geodata.AggLevel, level int) (string, []any, error) {
	geomExpr := "geometry"
	where := ""
	var args []any

	filterNames := p.FilterNames
	filterCodes := p.FilterCodes
	if len(filterNames) == 0 && len(filterCodes) == 0 {
		// A filter level without names or codes filters nothing.
		p.FilterLevel = ""
	}

	switch {
	case p.FilterLevel == "":
		where = "geometry_level = ? AND agg_level = ?"
		args = append(args, level, string(agg))
	default:
		aggCode, _, err := agg.AttributeColumns()
		if err != nil {
			return "", nil, err
		}
		filterLevel, err := geodata.ParseAggLevel(p.FilterLevel)
		if err != nil {
			return "", nil, err
		}
		filterCode, filterName, err := filterLevel.AttributeColumns()
		if err != nil {
			return "", nil, err
		}

		matchCol := filterCode
		matchVals := filterCodes
		if len(filterNames) > 0 {
			matchCol = filterName
			matchVals = filterNames
		}
		where = fmt.Sprintf(`code IN (
			SELECT %s FROM vg250_attributes WHERE %s IN (%s)
		) AND geometry_level = ?`, aggCode, matchCol, placeholders(len(matchVals)))
		args = append(args, stringArgs(matchVals)...)
		args = append(args, level)
	}

	if p.hasBBox() {
		geomExpr = "ST_Intersection(geometry, ST_GeomFromText(?))"
		args = append([]any{p.BBox.WKT()}, args...)
		where += " AND ST_Intersects(geometry, ST_GeomFromText(?))"
		args = append(args, p.BBox.WKT())
	}

	query := fmt.Sprintf(`
		SELECT code, name, geometry_level, agg_level, source, ST_AsGeoJSON(%s)
		FROM vg250
		WHERE %s`, geomExpr, where)
	return query, args, nil
}
