package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"geoatlas/internal/db"
	"geoatlas/internal/geodata"
	"geoatlas/internal/qualities"
)

// VG250 loads the German administrative boundaries (Verwaltungsgebiete
// 1:250000) from the BKG GeoPackage. Municipalities at level 0 are the base;
// all other aggregation levels and simplification tiers are derived from them
// together with the per-municipality attribute table.
type VG250 struct{}

func (s *VG250) Name() string { return "vg250" }

func (s *VG250) Qualities() qualities.Space {
	levels := geodata.AggLevels()
	aggs := make([]string, len(levels))
	for i, l := range levels {
		aggs[i] = string(l)
	}
	return qualities.Space{
		{Name: "simplification_level", Values: qualities.IntRange(0, 10)},
		{Name: "agg_level", Values: aggs},
	}
}

func (s *VG250) needsBase(ctx context.Context, env *Env, combo *qualities.Combination) (bool, error) {
	has, err := env.Mat.HasVG250(ctx, geodata.AggGemeinde, 0)
	if err != nil {
		return false, err
	}
	level, err := combo.Int("simplification_level")
	if err != nil {
		return false, err
	}
	return !has || (level == 0 && combo.Value("agg_level") == string(geodata.AggGemeinde)), nil
}

func (s *VG250) Extract(ctx context.Context, env *Env, combo *qualities.Combination, mode Mode) (*Dataset, error) {
	need, err := s.needsBase(ctx, env, combo)
	if err != nil {
		return nil, err
	}
	if !need {
		return &Dataset{}, nil
	}

	path, err := env.File(ctx, FileRequest{
		Source: s.Name(),
		Local:  "vg/DE_VG250.gpkg",
	}, mode)
	if err != nil {
		return nil, err
	}
	if mode == ModeFetch {
		return &Dataset{}, nil
	}
	return &Dataset{Files: map[string]SourceFile{
		"geometry":   {Path: path, Layer: "vg250_gem"},
		"attributes": {Path: path, Layer: "vgtb_vz_gem"},
	}}, nil
}

// Transform builds the municipality base select. The source data is delivered
// in ETRS89/UTM32 and is reprojected to WGS84 on the way in.
func (s *VG250) Transform(_ context.Context, _ *Env, _ *qualities.Combination, ds *Dataset) error {
	if len(ds.Files) == 0 {
		return nil
	}
	ds.SelectSQL = fmt.Sprintf(`
		SELECT ARS AS code,
		       GEN AS name,
		       0 AS geometry_level,
		       'gemeinde' AS agg_level,
		       'vg250_gemeinde_0' AS source,
		       ST_Transform(geom, 'EPSG:25832', 'EPSG:4326', true) AS geometry
		FROM %s`, stRead(ds.Files["geometry"]))
	return nil
}

func (s *VG250) Persist(ctx context.Context, env *Env, combo *qualities.Combination, ds *Dataset) error {
	level, err := combo.Int("simplification_level")
	if err != nil {
		return err
	}
	agg, err := geodata.ParseAggLevel(combo.Value("agg_level"))
	if err != nil {
		return err
	}

	if ds.SelectSQL != "" {
		env.Log.Info("loading base geometry", "source", s.Name(), "agg_level", agg, "level", 0)
		attrSelect := fmt.Sprintf(`
			SELECT ARS_G, GEN_G, ARS_V, GEN_V, ARS_K, GEN_K, ARS_R, GEN_R,
			       ARS_L, GEN_L, NUTS1_CODE, NUTS1_NAME, NUTS2_CODE, NUTS2_NAME,
			       NUTS3_CODE, NUTS3_NAME, CAST(EWZ AS BIGINT), 'vg250'
			FROM %s`, stRead(ds.Files["attributes"]))

		err := db.WithTx(ctx, env.Geo, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vg250_attributes WHERE source = 'vg250'`); err != nil {
				return fmt.Errorf("delete vg250 attributes: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vg250_attributes (arsg, geng, arsv, genv, arsk, genk, arsr, genr,
				 arsl, genl, nuts1code, nuts1name, nuts2code, nuts2name, nuts3code, nuts3name,
				 ewz, source) `+attrSelect); err != nil {
				return fmt.Errorf("insert vg250 attributes: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vg250 WHERE agg_level = 'gemeinde' AND geometry_level = 0`); err != nil {
				return fmt.Errorf("delete vg250 base: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vg250 (code, name, geometry_level, agg_level, source, geometry) `+ds.SelectSQL); err != nil {
				return fmt.Errorf("insert vg250 base: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		if bbox, err := env.Mat.SourceBBox(ctx, "vg250", "vg250_gemeinde_0"); err != nil {
			return err
		} else if bbox != nil {
			if err := env.Meta.UpdateBBox(ctx, s.Name(), bbox.Slice()); err != nil {
				return err
			}
		}
		if err := env.Meta.UpdateCRS(ctx, s.Name(), "EPSG:4326"); err != nil {
			return err
		}
	}

	switch {
	case agg == geodata.AggGemeinde && level >= 1:
		if err := env.Mat.ReplaceGemeindeSimplified(ctx, level); err != nil {
			return err
		}
	case agg != geodata.AggGemeinde:
		if err := env.Mat.ReplaceVG250Aggregate(ctx, agg, level); err != nil {
			return err
		}
	}

	return env.Meta.TouchAdaptionDate(ctx, s.Name(), time.Now())
}
