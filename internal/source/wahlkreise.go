package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"geoatlas/internal/db"
	"geoatlas/internal/qualities"
)

// Wahlkreise loads the German federal election districts and links each
// district to its federal state in the adm1 table by state name.
type Wahlkreise struct{}

func (s *Wahlkreise) Name() string { return "wahlkreise" }

func (s *Wahlkreise) Qualities() qualities.Space { return qualities.Space{} }

func (s *Wahlkreise) Extract(ctx context.Context, env *Env, _ *qualities.Combination, mode Mode) (*Dataset, error) {
	path, err := env.File(ctx, FileRequest{
		Source: s.Name(),
		Local:  "wahlkreise/wahlkreise_deu.gpkg",
	}, mode)
	if err != nil {
		return nil, err
	}
	if mode == ModeFetch {
		return &Dataset{}, nil
	}
	return &Dataset{Files: map[string]SourceFile{
		"wahlkreise": {Path: path},
	}}, nil
}

func (s *Wahlkreise) Transform(_ context.Context, _ *Env, _ *qualities.Combination, ds *Dataset) error {
	if len(ds.Files) == 0 {
		return nil
	}
	ds.SelectSQL = fmt.Sprintf(`
		SELECT wkr_name,
		       CAST(wkr_nr AS INTEGER) AS wkr_nr,
		       land_name,
		       CAST(land_nr AS INTEGER) AS land_nr,
		       geom AS geometry
		FROM %s`, stRead(ds.Files["wahlkreise"]))
	return nil
}

func (s *Wahlkreise) Persist(ctx context.Context, env *Env, _ *qualities.Combination, ds *Dataset) error {
	if ds.SelectSQL == "" {
		return nil
	}

	err := db.WithTx(ctx, env.Geo, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM wahlkreise WHERE source = 'wahlkreise'`); err != nil {
			return fmt.Errorf("delete wahlkreise: %w", err)
		}
		insert := fmt.Sprintf(`
			INSERT INTO wahlkreise (adm1_code, wkr_name, wkr_nr, land_name, land_nr, source, geometry)
			SELECT COALESCE(a.adm1_code, ''),
			       w.wkr_name, w.wkr_nr, w.land_name, w.land_nr,
			       'wahlkreise', w.geometry
			FROM (%s) w
			LEFT JOIN (
				SELECT DISTINCT name, adm1_code FROM adm1 WHERE source = 'gadm'
			) a ON w.land_name = a.name`, ds.SelectSQL)
		if _, err := tx.ExecContext(ctx, insert); err != nil {
			return fmt.Errorf("insert wahlkreise: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Districts whose state did not resolve keep an empty code; surface them
	// so a mismatch against the adm1 names is visible.
	rows, err := env.Geo.QueryContext(ctx,
		`SELECT DISTINCT land_name FROM wahlkreise WHERE source = 'wahlkreise' AND adm1_code = ''`)
	if err != nil {
		return fmt.Errorf("query unlinked wahlkreise: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var land string
		if err := rows.Scan(&land); err != nil {
			return fmt.Errorf("scan unlinked wahlkreise: %w", err)
		}
		env.Log.Debug("no adm1 match for election district state", "land_name", land)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if bbox, err := env.Mat.SourceBBox(ctx, "wahlkreise", "wahlkreise"); err != nil {
		return err
	} else if bbox != nil {
		if err := env.Meta.UpdateBBox(ctx, s.Name(), bbox.Slice()); err != nil {
			return err
		}
	}
	return env.Meta.TouchAdaptionDate(ctx, s.Name(), time.Now())
}
