package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"geoatlas/internal/db"
	"geoatlas/internal/qualities"
)

// NaturalEarth loads world country and province boundaries from the Natural
// Earth GeoPackages. Level 0 of adm1 is the base geometry; every other
// combination is derived from it in the geodata store.
type NaturalEarth struct{}

var neLayers = map[string]string{
	"adm0": "ne_10m_admin_0_countries",
	"adm1": "ne_10m_admin_1_states_provinces",
}

func (s *NaturalEarth) Name() string { return "naturalearth" }

func (s *NaturalEarth) Qualities() qualities.Space {
	return qualities.Space{
		{Name: "simplification_level", Values: qualities.IntRange(0, 10)},
		{Name: "adm_level", Values: []string{"adm1", "adm0"}},
	}
}

// needsBase reports whether this combination must (re)load the level-0 adm1
// geometry: either the base is absent, or the combination is the designated
// base reload (adm1, level 0).
func (s *NaturalEarth) needsBase(ctx context.Context, env *Env, combo *qualities.Combination) (bool, error) {
	has, err := env.Mat.HasAdm(ctx, "adm1", s.Name(), 0)
	if err != nil {
		return false, err
	}
	level, err := combo.Int("simplification_level")
	if err != nil {
		return false, err
	}
	return !has || (level == 0 && combo.Value("adm_level") == "adm1"), nil
}

func (s *NaturalEarth) Extract(ctx context.Context, env *Env, combo *qualities.Combination, mode Mode) (*Dataset, error) {
	need, err := s.needsBase(ctx, env, combo)
	if err != nil {
		return nil, err
	}
	if !need {
		return &Dataset{}, nil
	}

	files := make(map[string]SourceFile, 2)
	for _, adm := range []string{"adm0", "adm1"} {
		path, err := env.File(ctx, FileRequest{
			Source: s.Name(),
			Key:    adm,
			Local:  "naturalearth/" + adm + ".gpkg",
		}, mode)
		if err != nil {
			return nil, err
		}
		files[adm] = SourceFile{Path: path, Layer: neLayers[adm]}
	}
	if mode == ModeFetch {
		return &Dataset{}, nil
	}
	return &Dataset{Files: files}, nil
}

// Transform builds the canonical base select: provinces joined with their
// country names, tagged as level 0.
func (s *NaturalEarth) Transform(_ context.Context, _ *Env, _ *qualities.Combination, ds *Dataset) error {
	if len(ds.Files) == 0 {
		return nil
	}
	ds.SelectSQL = fmt.Sprintf(`
		SELECT a1.name AS name,
		       a1.adm0_a3 AS adm0_code,
		       a1.adm1_code AS adm1_code,
		       COALESCE(a0.NAME, '') AS adm0_name,
		       0 AS geometry_level,
		       'naturalearth' AS source,
		       a1.geom AS geometry
		FROM %s a1
		LEFT JOIN %s a0 ON a1.adm0_a3 = a0.GU_A3`,
		stRead(ds.Files["adm1"]), stRead(ds.Files["adm0"]))
	return nil
}

func (s *NaturalEarth) Persist(ctx context.Context, env *Env, combo *qualities.Combination, ds *Dataset) error {
	level, err := combo.Int("simplification_level")
	if err != nil {
		return err
	}
	adm := combo.Value("adm_level")

	if ds.SelectSQL != "" {
		env.Log.Info("loading base geometry", "source", s.Name(), "table", "adm1", "level", 0)
		err := db.WithTx(ctx, env.Geo, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM adm1 WHERE source = 'naturalearth' AND geometry_level = 0`); err != nil {
				return fmt.Errorf("delete adm1 base: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO adm1 (name, adm0_code, adm1_code, adm0_name, geometry_level, source, geometry) `+ds.SelectSQL); err != nil {
				return fmt.Errorf("insert adm1 base: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		if bbox, err := env.Mat.SourceBBox(ctx, "adm1", s.Name()); err != nil {
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
	case adm == "adm1" && level >= 1:
		if err := env.Mat.ReplaceAdm1Simplified(ctx, s.Name(), level); err != nil {
			return err
		}
	case adm == "adm0" && level == 0:
		if err := env.Mat.ReplaceAdm0Base(ctx, s.Name()); err != nil {
			return err
		}
	case adm == "adm0" && level >= 1:
		if err := env.Mat.ReplaceAdm0Simplified(ctx, s.Name(), level); err != nil {
			return err
		}
	}

	return env.Meta.TouchAdaptionDate(ctx, s.Name(), time.Now())
}
