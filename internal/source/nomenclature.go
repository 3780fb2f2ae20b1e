package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"geoatlas/internal/db"
	"geoatlas/internal/qualities"
)

// Nomenclature builds the crosswalk between ISO 3166 codes and the source
// specific codes in the geometry tables, from the ISO code list CSVs.
type Nomenclature struct{}

// countryCode is one ISO 3166-1 entry.
type countryCode struct {
	Name        string
	Alpha2      string
	Alpha3      string
	Numeric     int
	Independent string
}

// subdivision is one ISO 3166-2 entry.
type subdivision struct {
	CountryAlpha2 string
	Name          string
	Code          string
}

// linkRow is one crosswalk record of the link table.
type linkRow struct {
	ISOName     string
	Alpha2      string
	Alpha3      string
	Numeric     int
	Independent string
	ISO3166_2   string
	Level       string
	Source      string
	Code        string
	LinkName    string
}

// adm0LinkTargets are the sources whose country geometries are keyed by the
// ISO alpha-3 code.
var adm0LinkTargets = []string{"gadm", "naturalearth", "population", "consulates"}

func (s *Nomenclature) Name() string { return "nomenclature" }

func (s *Nomenclature) Qualities() qualities.Space { return qualities.Space{} }

// Extract, Transform and Persist are unused; the source runs as a custom
// flow because it builds both aerial levels from three files at once.
func (s *Nomenclature) Extract(context.Context, *Env, *qualities.Combination, Mode) (*Dataset, error) {
	return &Dataset{}, nil
}

func (s *Nomenclature) Transform(context.Context, *Env, *qualities.Combination, *Dataset) error {
	return nil
}

func (s *Nomenclature) Persist(context.Context, *Env, *qualities.Combination, *Dataset) error {
	return nil
}

func (s *Nomenclature) files(ctx context.Context, env *Env, mode Mode) (map[string]string, error) {
	paths := make(map[string]string, 3)
	for _, key := range []string{"country-codes", "subdivision-names", "subdivision-categories"} {
		path, err := env.File(ctx, FileRequest{
			Source: s.Name(),
			Key:    key,
			Local:  "nomenclature/" + key + ".csv",
		}, mode)
		if err != nil {
			return nil, err
		}
		paths[key] = path
	}
	return paths, nil
}

func (s *Nomenclature) FetchCustom(ctx context.Context, env *Env) error {
	_, err := s.files(ctx, env, ModeFetch)
	return err
}

func (s *Nomenclature) RunCustom(ctx context.Context, env *Env) error {
	paths, err := s.files(ctx, env, ModeLoad)
	if err != nil {
		return err
	}

	countries, err := loadCountryCodes(ctx, env.Geo, paths["country-codes"])
	if err != nil {
		return err
	}
	subs, err := loadSubdivisions(ctx, env.Geo, paths["subdivision-names"])
	if err != nil {
		return err
	}

	adm0, adm1 := buildLinkRows(countries, subs)
	env.Log.Info("built crosswalk records", "adm0", len(adm0), "adm1", len(adm1))

	for level, rows := range map[string][]linkRow{"adm0": adm0, "adm1": adm1} {
		if err := s.persistLevel(ctx, env, level, rows); err != nil {
			return err
		}
	}
	return env.Meta.TouchAdaptionDate(ctx, s.Name(), time.Now())
}

func (s *Nomenclature) persistLevel(ctx context.Context, env *Env, level string, rows []linkRow) error {
	return db.WithTx(ctx, env.Geo, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM link_table WHERE link_to_aerial_level = ?`, level); err != nil {
			return fmt.Errorf("delete %s crosswalk: %w", level, err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO link_table (iso_name, iso_3166_1_a2, iso_3166_1_a3, iso_3166_1_n3,
			 independent, iso_3166_2, link_to_aerial_level, link_to_source, link_to_code, link_to_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare crosswalk insert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.ISOName, r.Alpha2, r.Alpha3, r.Numeric,
				r.Independent, r.ISO3166_2, r.Level, r.Source, r.Code, r.LinkName); err != nil {
				return fmt.Errorf("insert crosswalk %s/%s: %w", r.Source, r.Code, err)
			}
		}
		return nil
	})
}

func loadCountryCodes(ctx context.Context, geo *sql.DB, path string) ([]countryCode, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(official_name_en, ''),
		       COALESCE("ISO3166-1-Alpha-2", ''),
		       COALESCE("ISO3166-1-Alpha-3", ''),
		       COALESCE(CAST("ISO3166-1-numeric" AS INTEGER), 0),
		       COALESCE(is_independent, '')
		FROM read_csv(%s, header = true)`, sqlString(path))
	rows, err := geo.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read country codes: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []countryCode
	for rows.Next() {
		var c countryCode
		if err := rows.Scan(&c.Name, &c.Alpha2, &c.Alpha3, &c.Numeric, &c.Independent); err != nil {
			return nil, fmt.Errorf("scan country code: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadSubdivisions(ctx context.Context, geo *sql.DB, path string) ([]subdivision, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(country_code, ''),
		       COALESCE(subdivision_name, ''),
		       COALESCE(code, '')
		FROM read_csv(%s, header = true)`, sqlString(path))
	rows, err := geo.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read subdivisions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []subdivision
	for rows.Next() {
		var s subdivision
		if err := rows.Scan(&s.CountryAlpha2, &s.Name, &s.Code); err != nil {
			return nil, fmt.Errorf("scan subdivision: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// buildLinkRows expands the ISO lists into crosswalk records. Countries get
// one record per geometry source keyed by the alpha-3 code; subdivisions
// link to the gadm provinces keyed by the ISO 3166-2 code.
func buildLinkRows(countries []countryCode, subs []subdivision) (adm0, adm1 []linkRow) {
	byAlpha2 := make(map[string]countryCode, len(countries))
	for _, c := range countries {
		if c.Alpha2 != "" {
			byAlpha2[c.Alpha2] = c
		}
		if c.Alpha3 == "" {
			continue
		}
		for _, target := range adm0LinkTargets {
			adm0 = append(adm0, linkRow{
				ISOName:     c.Name,
				Alpha2:      c.Alpha2,
				Alpha3:      c.Alpha3,
				Numeric:     c.Numeric,
				Independent: c.Independent,
				Level:       "adm0",
				Source:      target,
				Code:        c.Alpha3,
				LinkName:    c.Name,
			})
		}
	}
	for _, sub := range subs {
		parent, ok := byAlpha2[sub.CountryAlpha2]
		if !ok || sub.Code == "" {
			continue
		}
		adm1 = append(adm1, linkRow{
			ISOName:     sub.Name,
			Alpha2:      parent.Alpha2,
			Alpha3:      parent.Alpha3,
			Numeric:     parent.Numeric,
			Independent: parent.Independent,
			ISO3166_2:   sub.Code,
			Level:       "adm1",
			Source:      "gadm",
			Code:        sub.Code,
			LinkName:    sub.Name,
		})
	}
	return adm0, adm1
}
