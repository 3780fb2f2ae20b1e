package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"geoatlas/internal/db"
	"geoatlas/internal/qualities"
)

// Consulates loads the German diplomatic missions from the Federal Foreign
// Office JSON feed and geolocates each mission by fuzzy-matching its place
// name against the Natural Earth populated places layer.
type Consulates struct{}

// Consulate is one mission after name extraction.
type Consulate struct {
	Code   string
	NameEn string
	NameDe string
	URL    string
}

// place is one gazetteer row with its attributes flattened to strings.
type place struct {
	attrs map[string]string
	wkt   string
}

// consulateRow is one geolocated mission ready for persistence.
type consulateRow struct {
	Adm0Code      string
	SovereignCode string
	ConsulateCode string
	NameDe        string
	NameEn        string
	URL           string
	WKT           string
}

func (s *Consulates) Name() string { return "consulates" }

func (s *Consulates) Qualities() qualities.Space { return qualities.Space{} }

// Extract, Transform and Persist are unused; the source runs as a custom
// flow because it joins two datasets outside the database.
func (s *Consulates) Extract(context.Context, *Env, *qualities.Combination, Mode) (*Dataset, error) {
	return &Dataset{}, nil
}

func (s *Consulates) Transform(context.Context, *Env, *qualities.Combination, *Dataset) error {
	return nil
}

func (s *Consulates) Persist(context.Context, *Env, *qualities.Combination, *Dataset) error {
	return nil
}

func (s *Consulates) files(ctx context.Context, env *Env, mode Mode) (jsonPath, placesPath string, err error) {
	jsonPath, err = env.File(ctx, FileRequest{
		Source: s.Name(),
		Key:    "consulates",
		Local:  "consulates/consulates.json",
	}, mode)
	if err != nil {
		return "", "", err
	}
	placesPath, err = env.File(ctx, FileRequest{
		Source: s.Name(),
		Key:    "populated_places",
		Local:  "naturalearth/populated_places.gpkg",
	}, mode)
	if err != nil {
		return "", "", err
	}
	return jsonPath, placesPath, nil
}

func (s *Consulates) FetchCustom(ctx context.Context, env *Env) error {
	_, _, err := s.files(ctx, env, ModeFetch)
	return err
}

func (s *Consulates) RunCustom(ctx context.Context, env *Env) error {
	jsonPath, placesPath, err := s.files(ctx, env, ModeLoad)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("read consulates feed: %w", err)
	}
	consulates, err := transformConsulates(raw, env.Log)
	if err != nil {
		return err
	}

	places, err := loadPlaces(ctx, env, placesPath)
	if err != nil {
		return err
	}

	matched := mergeConsulates(consulates, places, env.Log)
	env.Log.Info("geolocated consulates", "matched", len(matched), "total", len(consulates))

	err = db.WithTx(ctx, env.Geo, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM consulates WHERE source = 'consulates'`); err != nil {
			return fmt.Errorf("delete consulates: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO consulates (adm0_code, sovereign_code, consulate_code,
			 name_de, name_en, url, source, geometry)
			VALUES (?, ?, ?, ?, ?, ?, 'consulates', ST_GeomFromText(?))`)
		if err != nil {
			return fmt.Errorf("prepare consulates insert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck
		for _, r := range matched {
			if _, err := stmt.ExecContext(ctx, r.Adm0Code, r.SovereignCode,
				r.ConsulateCode, r.NameDe, r.NameEn, r.URL, r.WKT); err != nil {
				return fmt.Errorf("insert consulate %s: %w", r.ConsulateCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if bbox, err := env.Mat.SourceBBox(ctx, "consulates", "consulates"); err != nil {
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

// transformConsulates parses the feed and strips the mission epithets from
// both names. The head-office record "AA", records with missing fields and
// records whose English name is all epithets are dropped.
func transformConsulates(raw []byte, log *slog.Logger) ([]Consulate, error) {
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse consulates feed: %w", err)
	}

	var out []Consulate
	for _, entry := range entries {
		code := asString(entry["code"])
		if code == "AA" {
			continue
		}
		incomplete := false
		for _, v := range entry {
			if v == nil {
				incomplete = true
				break
			}
		}
		if incomplete {
			continue
		}

		nameEn := extractLocationName(asString(entry["name_en"]))
		if nameEn == "" {
			log.Info("no place name found for consulate, dropping it",
				"name_en", asString(entry["name_en"]))
			continue
		}
		out = append(out, Consulate{
			Code:   code,
			NameEn: nameEn,
			NameDe: extractLocationName(asString(entry["name_de"])),
			URL:    asString(entry["URL"]),
		})
	}
	return out, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// loadPlaces reads the populated places layer with all attribute columns
// flattened to strings, plus the point geometry as WKT.
func loadPlaces(ctx context.Context, env *Env, path string) ([]place, error) {
	query := fmt.Sprintf(
		`SELECT * EXCLUDE (geom), ST_AsText(geom) AS geom_wkt FROM %s`,
		stRead(SourceFile{Path: path, Layer: "ne_10m_populated_places"}))
	rows, err := env.Geo.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read populated places: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("populated places columns: %w", err)
	}

	var out []place
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan populated place: %w", err)
		}
		p := place{attrs: make(map[string]string, len(cols))}
		for i, col := range cols {
			if vals[i] == nil {
				continue
			}
			if col == "geom_wkt" {
				p.wkt = fmt.Sprint(vals[i])
				continue
			}
			p.attrs[strings.ToUpper(col)] = fmt.Sprint(vals[i])
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate populated places: %w", err)
	}
	return out, nil
}

// mergeConsulates resolves each mission to a gazetteer place. Pinned
// allocations win outright; otherwise a shallow pass over NAME_EN runs
// first, and a score at or below 90 triggers an in-depth pass over every
// name variant column.
func mergeConsulates(consulates []Consulate, places []place, log *slog.Logger) []consulateRow {
	var out []consulateRow
	for _, c := range consulates {
		var (
			best      int
			bestPlace *place
		)
		if da := distinctiveFor(c.NameEn); da != nil {
			for i := range places {
				if places[i].attrs[da.attr] == da.value {
					bestPlace = &places[i]
					best = 100
					break
				}
			}
		} else {
			for i := range places {
				score := matchRatio(places[i].attrs["NAME_EN"], c.NameEn)
				if score > best {
					best = score
					bestPlace = &places[i]
				}
				if best == 100 {
					break
				}
			}
			if best <= 90 {
				log.Debug("shallow match inconclusive, running in-depth match",
					"name_en", c.NameEn, "score", best)
				best, bestPlace = inDepthMatch(c, places, best, bestPlace)
			}
		}
		if bestPlace == nil {
			continue
		}
		log.Debug("consulate geolocated", "name_en", c.NameEn, "score", best)
		out = append(out, consulateRow{
			Adm0Code:      bestPlace.attrs["ADM0_A3"],
			SovereignCode: bestPlace.attrs["SOV_A3"],
			ConsulateCode: c.Code,
			NameDe:        c.NameDe,
			NameEn:        c.NameEn,
			URL:           c.URL,
			WKT:           bestPlace.wkt,
		})
	}
	return out
}

func inDepthMatch(c Consulate, places []place, best int, bestPlace *place) (int, *place) {
	for i := range places {
		for name, value := range places[i].attrs {
			if !strings.Contains(name, "NAME_") && !strings.Contains(name, "NAMEASCII") {
				continue
			}
			score := matchRatio(value, c.NameEn)
			if score > best {
				best = score
				bestPlace = &places[i]
			}
			if best == 100 {
				return best, bestPlace
			}
		}
	}
	return best, bestPlace
}
