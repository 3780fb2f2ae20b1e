package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"geoatlas/internal/db"
	"geoatlas/internal/qualities"
)

// PopulatedPlaces loads capitals and large cities from the Natural Earth
// populated places layer. Kept are national and regional capitals plus every
// place above one million inhabitants.
type PopulatedPlaces struct{}

func (s *PopulatedPlaces) Name() string { return "populated_places" }

func (s *PopulatedPlaces) Qualities() qualities.Space { return qualities.Space{} }

func (s *PopulatedPlaces) Extract(ctx context.Context, env *Env, _ *qualities.Combination, mode Mode) (*Dataset, error) {
	path, err := env.File(ctx, FileRequest{
		Source: s.Name(),
		Local:  "naturalearth/populated_places.gpkg",
	}, mode)
	if err != nil {
		return nil, err
	}
	if mode == ModeFetch {
		return &Dataset{}, nil
	}
	return &Dataset{Files: map[string]SourceFile{
		"places": {Path: path, Layer: "ne_10m_populated_places"},
	}}, nil
}

func (s *PopulatedPlaces) Transform(_ context.Context, _ *Env, _ *qualities.Combination, ds *Dataset) error {
	if len(ds.Files) == 0 {
		return nil
	}
	ds.SelectSQL = fmt.Sprintf(`
		SELECT CASE WHEN featurecla LIKE 'Admin-0%%' THEN 'adm0'
		            WHEN featurecla LIKE 'Admin-1%%' THEN 'adm1'
		            ELSE featurecla
		       END AS capital_level,
		       adm0_a3 AS adm0_code,
		       nameascii,
		       name_de,
		       name_en,
		       name_fr,
		       CAST(pop_min AS BIGINT) AS population,
		       'populated_places' AS source,
		       geom AS geometry
		FROM %s
		WHERE featurecla IN ('Admin-0 capital', 'Admin-0 region capital',
		                     'Admin-1 capital', 'Admin-1 region capital')
		   OR pop_min > 1000000`, stRead(ds.Files["places"]))
	return nil
}

func (s *PopulatedPlaces) Persist(ctx context.Context, env *Env, _ *qualities.Combination, ds *Dataset) error {
	if ds.SelectSQL == "" {
		return nil
	}

	err := db.WithTx(ctx, env.Geo, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM populated_places WHERE source = 'populated_places'`); err != nil {
			return fmt.Errorf("delete populated places: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO populated_places (capital_level, adm0_code, nameascii, name_de,
			 name_en, name_fr, population, source, geometry) `+ds.SelectSQL); err != nil {
			return fmt.Errorf("insert populated places: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if bbox, err := env.Mat.SourceBBox(ctx, "populated_places", "populated_places"); err != nil {
		return err
	} else if bbox != nil {
		if err := env.Meta.UpdateBBox(ctx, s.Name(), bbox.Slice()); err != nil {
			return err
		}
	}
	if err := env.Meta.UpdateCRS(ctx, s.Name(), "EPSG:4326"); err != nil {
		return err
	}
	return env.Meta.TouchAdaptionDate(ctx, s.Name(), time.Now())
}
