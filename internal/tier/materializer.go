package tier

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"geoatlas/internal/db"
	"geoatlas/internal/domain"
	"geoatlas/internal/geodata"
)

// Materializer derives coarser simplification levels and aggregation levels
// from level-0 base geometry in the geodata store. Every replace operation
// deletes the previous rows of its scope and inserts the derived rows inside
// one transaction.
type Materializer struct {
	db  *sql.DB
	log *slog.Logger
}

// NewMaterializer creates a materializer over the geodata store.
func NewMaterializer(geo *sql.DB, log *slog.Logger) *Materializer {
	return &Materializer{db: geo, log: log.With("component", "materializer")}
}

// HasAdm reports whether the adm0 or adm1 table holds rows for the source at
// the given simplification level.
func (m *Materializer) HasAdm(ctx context.Context, table, source string, level int) (bool, error) {
	if table != "adm0" && table != "adm1" {
		return false, domain.ErrValidation("unknown adm table %q", table)
	}
	if level < 0 || level > MaxLevel {
		return false, domain.ErrValidation("simplification level %d outside 0..%d", level, MaxLevel)
	}

	var count int
	err := m.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE source = ? AND geometry_level = ?`, table),
		source, level).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check %s level %d for %s: %w", table, level, source, err)
	}
	return count > 0, nil
}

// HasVG250 reports whether the vg250 table holds rows at the given
// aggregation and simplification level.
func (m *Materializer) HasVG250(ctx context.Context, agg geodata.AggLevel, level int) (bool, error) {
	if _, err := geodata.ParseAggLevel(string(agg)); err != nil {
		return false, domain.ErrValidation("%v", err)
	}
	if level < 0 || level > MaxLevel {
		return false, domain.ErrValidation("simplification level %d outside 0..%d", level, MaxLevel)
	}

	var count int
	err := m.db.QueryRowContext(ctx,
		`SELECT count(*) FROM vg250 WHERE agg_level = ? AND geometry_level = ?`,
		string(agg), level).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check vg250 %s level %d: %w", agg, level, err)
	}
	return count > 0, nil
}

// Simplification statements run ST_CoverageSimplify as a window over every
// level-0 feature at once. Simplifying per row would let the shared border
// of two neighbouring polygons lose different vertices on each side, opening
// gaps and slivers between them; the coverage pass keeps shared borders
// coincident. ST_MakeValid is applied to the windowed result before insert.
const (
	adm1SimplifyStmt = `
		INSERT INTO adm1 (adm0_code, adm1_code, name, adm0_name, geometry_level, source, geometry)
		WITH simplified AS (
			SELECT adm0_code, adm1_code, name, adm0_name, source,
			       ST_CoverageSimplify(geometry, ?) OVER () AS geometry
			FROM adm1
			WHERE geometry_level = 0 AND source = ?
		)
		SELECT adm0_code, adm1_code, name, adm0_name, ?, source, ST_MakeValid(geometry)
		FROM simplified`

	adm0SimplifyStmt = `
		INSERT INTO adm0 (adm0_code, name, geometry_level, source, geometry)
		WITH simplified AS (
			SELECT adm0_code, adm0_name, source,
			       ST_CoverageSimplify(geometry, ?) OVER () AS geometry
			FROM adm1
			WHERE geometry_level = 0 AND source = ?
		)
		SELECT adm0_code, adm0_name, ?, source, ST_Union_Agg(ST_MakeValid(geometry))
		FROM simplified
		GROUP BY adm0_code, adm0_name, source`

	gemeindeSimplifyStmt = `
		INSERT INTO vg250 (code, name, geometry_level, agg_level, source, geometry)
		WITH simplified AS (
			SELECT code, name,
			       ST_CoverageSimplify(geometry, ?) OVER () AS geometry
			FROM vg250
			WHERE geometry_level = 0 AND agg_level = 'gemeinde'
		)
		SELECT code, name, ?, 'gemeinde', ?, ST_MakeValid(geometry)
		FROM simplified`
)

// vg250AggregateSimplifyStmt unions freshly simplified gemeinde geometry
// into a coarser aggregation level. The column pair comes from the
// aggregation level's attribute mapping, never from user input.
func vg250AggregateSimplifyStmt(codeCol, nameCol string) string {
	return fmt.Sprintf(`
		INSERT INTO vg250 (code, name, geometry_level, agg_level, source, geometry)
		WITH simplified AS (
			SELECT a.%s AS code, a.%s AS name,
			       ST_CoverageSimplify(v.geometry, ?) OVER () AS geometry
			FROM vg250 v
			JOIN vg250_attributes a ON v.code = a.arsg
			WHERE v.agg_level = 'gemeinde' AND v.geometry_level = 0
		)
		SELECT code, name, ?, ?, ?, ST_Union_Agg(ST_MakeValid(geometry))
		FROM simplified
		GROUP BY code, name`, codeCol, nameCol)
}

// ReplaceAdm1Simplified rebuilds adm1 level 1..10 for a source by
// simplifying its level-0 geometry in one coverage pass.
func (m *Materializer) ReplaceAdm1Simplified(ctx context.Context, source string, level int) error {
	tol, err := Tolerance(level)
	if err != nil {
		return domain.ErrValidation("%v", err)
	}

	ok, err := m.HasAdm(ctx, "adm1", source, 0)
	if err != nil {
		return err
	}
	if !ok {
		m.log.Warn("base geometry missing, skipping simplification",
			"table", "adm1", "source", source, "level", level)
		return nil
	}

	return db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM adm1 WHERE source = ? AND geometry_level = ?`, source, level); err != nil {
			return fmt.Errorf("delete adm1 level %d for %s: %w", level, source, err)
		}
		if _, err := tx.ExecContext(ctx, adm1SimplifyStmt, tol, source, level); err != nil {
			return fmt.Errorf("insert simplified adm1 level %d for %s: %w", level, source, err)
		}
		return nil
	})
}

// ReplaceAdm0Base rebuilds adm0 level 0 for a source as the union of its
// adm1 level-0 geometry per country.
func (m *Materializer) ReplaceAdm0Base(ctx context.Context, source string) error {
	ok, err := m.HasAdm(ctx, "adm1", source, 0)
	if err != nil {
		return err
	}
	if !ok {
		m.log.Warn("base geometry missing, skipping aggregation",
			"table", "adm0", "source", source, "level", 0)
		return nil
	}

	return db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM adm0 WHERE source = ? AND geometry_level = 0`, source); err != nil {
			return fmt.Errorf("delete adm0 level 0 for %s: %w", source, err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO adm0 (adm0_code, name, geometry_level, source, geometry)
			SELECT adm0_code, adm0_name, 0, source, ST_Union_Agg(ST_MakeValid(geometry))
			FROM adm1
			WHERE geometry_level = 0 AND source = ?
			GROUP BY adm0_code, adm0_name, source`,
			source)
		if err != nil {
			return fmt.Errorf("insert adm0 level 0 for %s: %w", source, err)
		}
		return nil
	})
}

// ReplaceAdm0Simplified rebuilds adm0 level 1..10 for a source. When adm1
// already holds the same level its geometry is unioned directly, which
// keeps adm0 and adm1 borders visually consistent at that level. Otherwise
// adm1 level 0 is simplified with the level's tolerance first.
func (m *Materializer) ReplaceAdm0Simplified(ctx context.Context, source string, level int) error {
	tol, err := Tolerance(level)
	if err != nil {
		return domain.ErrValidation("%v", err)
	}

	sameLevel, err := m.HasAdm(ctx, "adm1", source, level)
	if err != nil {
		return err
	}
	if !sameLevel {
		base, err := m.HasAdm(ctx, "adm1", source, 0)
		if err != nil {
			return err
		}
		if !base {
			m.log.Warn("base geometry missing, skipping aggregation",
				"table", "adm0", "source", source, "level", level)
			return nil
		}
	}

	return db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM adm0 WHERE source = ? AND geometry_level = ?`, source, level); err != nil {
			return fmt.Errorf("delete adm0 level %d for %s: %w", level, source, err)
		}

		if sameLevel {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO adm0 (adm0_code, name, geometry_level, source, geometry)
				SELECT adm0_code, adm0_name, ?, source, ST_Union_Agg(geometry)
				FROM adm1
				WHERE geometry_level = ? AND source = ?
				GROUP BY adm0_code, adm0_name, source`,
				level, level, source)
			if err != nil {
				return fmt.Errorf("insert adm0 level %d for %s: %w", level, source, err)
			}
			return nil
		}

		if _, err := tx.ExecContext(ctx, adm0SimplifyStmt, tol, source, level); err != nil {
			return fmt.Errorf("insert adm0 level %d for %s: %w", level, source, err)
		}
		return nil
	})
}

// ReplaceGemeindeSimplified rebuilds vg250 gemeinde level 1..10 by
// simplifying the gemeinde level-0 geometry in one coverage pass.
func (m *Materializer) ReplaceGemeindeSimplified(ctx context.Context, level int) error {
	tol, err := Tolerance(level)
	if err != nil {
		return domain.ErrValidation("%v", err)
	}

	ok, err := m.HasVG250(ctx, geodata.AggGemeinde, 0)
	if err != nil {
		return err
	}
	if !ok {
		m.log.Warn("base geometry missing, skipping simplification",
			"table", "vg250", "agg_level", "gemeinde", "level", level)
		return nil
	}

	sourceName := fmt.Sprintf("vg250_%s_%d", geodata.AggGemeinde, level)
	return db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vg250 WHERE agg_level = 'gemeinde' AND geometry_level = ?`, level); err != nil {
			return fmt.Errorf("delete vg250 gemeinde level %d: %w", level, err)
		}
		if _, err := tx.ExecContext(ctx, gemeindeSimplifyStmt, tol, level, sourceName); err != nil {
			return fmt.Errorf("insert vg250 gemeinde level %d: %w", level, err)
		}
		return nil
	})
}

// ReplaceVG250Aggregate rebuilds a coarser vg250 aggregation level at the
// given simplification level by unioning gemeinde geometry grouped through
// the attributes table. Gemeinde geometry of the same level is preferred;
// when absent, gemeinde level 0 is simplified with the level's tolerance
// before unioning.
func (m *Materializer) ReplaceVG250Aggregate(ctx context.Context, agg geodata.AggLevel, level int) error {
	if agg == geodata.AggGemeinde {
		return domain.ErrValidation("gemeinde is the base aggregation level, nothing to aggregate")
	}
	codeCol, nameCol, err := agg.AttributeColumns()
	if err != nil {
		return domain.ErrValidation("%v", err)
	}
	if level < 0 || level > MaxLevel {
		return domain.ErrValidation("simplification level %d outside 0..%d", level, MaxLevel)
	}

	sameLevel, err := m.HasVG250(ctx, geodata.AggGemeinde, level)
	if err != nil {
		return err
	}
	base := sameLevel
	if !sameLevel {
		base, err = m.HasVG250(ctx, geodata.AggGemeinde, 0)
		if err != nil {
			return err
		}
	}
	if !base || (!sameLevel && level == 0) {
		m.log.Warn("gemeinde geometry missing, skipping aggregation",
			"table", "vg250", "agg_level", agg, "level", level)
		return nil
	}

	sourceName := fmt.Sprintf("vg250_%s_%d", agg, level)
	return db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vg250 WHERE agg_level = ? AND geometry_level = ?`, string(agg), level); err != nil {
			return fmt.Errorf("delete vg250 %s level %d: %w", agg, level, err)
		}

		if sameLevel {
			_, err := tx.ExecContext(ctx, fmt.Sprintf(`
				INSERT INTO vg250 (code, name, geometry_level, agg_level, source, geometry)
				SELECT a.%s, a.%s, ?, ?, ?, ST_Union_Agg(ST_MakeValid(v.geometry))
				FROM vg250 v
				JOIN vg250_attributes a ON v.code = a.arsg
				WHERE v.agg_level = 'gemeinde' AND v.geometry_level = ?
				GROUP BY a.%s, a.%s`, codeCol, nameCol, codeCol, nameCol),
				level, string(agg), sourceName, level)
			if err != nil {
				return fmt.Errorf("insert vg250 %s level %d: %w", agg, level, err)
			}
			return nil
		}

		tol, err := Tolerance(level)
		if err != nil {
			return domain.ErrValidation("%v", err)
		}
		_, err = tx.ExecContext(ctx, vg250AggregateSimplifyStmt(codeCol, nameCol),
			tol, level, string(agg), sourceName)
		if err != nil {
			return fmt.Errorf("insert vg250 %s level %d: %w", agg, level, err)
		}
		return nil
	})
}

// bboxTables guards the table name interpolated into SourceBBox.
var bboxTables = map[string]bool{
	"adm0":             true,
	"adm1":             true,
	"vg250":            true,
	"wahlkreise":       true,
	"consulates":       true,
	"populated_places": true,
}

// SourceBBox computes the extent of a source's geometry in a table. Returns
// nil when the source has no geometry.
func (m *Materializer) SourceBBox(ctx context.Context, table, source string) (*geodata.BBox, error) {
	if !bboxTables[table] {
		return nil, domain.ErrValidation("unknown geometry table %q", table)
	}

	var xmin, ymin, xmax, ymax sql.NullFloat64
	err := m.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT min(ST_XMin(geometry)), min(ST_YMin(geometry)),
		       max(ST_XMax(geometry)), max(ST_YMax(geometry))
		FROM %s WHERE source = ? AND geometry IS NOT NULL`, table),
		source).Scan(&xmin, &ymin, &xmax, &ymax)
	if err != nil {
		return nil, fmt.Errorf("compute bbox of %s in %s: %w", source, table, err)
	}
	if !xmin.Valid {
		return nil, nil
	}
	return &geodata.BBox{
		XMin: xmin.Float64,
		YMin: ymin.Float64,
		XMax: xmax.Float64,
		YMax: ymax.Float64,
	}, nil
}
