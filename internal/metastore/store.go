// Package metastore persists dataset metadata and ETL run records in SQLite.
package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"geoatlas/internal/db"
)

// Origin describes one upstream provider of a dataset.
type Origin struct {
	Name          string `json:"originName"`
	Source        string `json:"originSource"`
	Attribution   string `json:"originAttribution"`
	Licence       string `json:"originLicence"`
	LicenceSource string `json:"originLicenceSource"`
	Version       string `json:"originVersion"`
}

// Document is the full metadata record of one data source.
type Document struct {
	Source           string     `json:"source"`
	Title            string     `json:"title"`
	Abstract         string     `json:"abstract"`
	Lineage          string     `json:"lineage"`
	ResponsibleParty string     `json:"responsibleParty"`
	CRS              string     `json:"crs"`
	Format           string     `json:"format"`
	DataType         string     `json:"datatype"`
	GeoBox           []float64  `json:"geoBox,omitempty"` // [xmin, ymin, xmax, ymax]
	AdaptionDate     *time.Time `json:"adaptionDate,omitempty"`
	Keywords         []string   `json:"keywords,omitempty"`
	Origins          []Origin   `json:"origins,omitempty"`
}

// SourceInfo is the short listing form of a metadata record.
type SourceInfo struct {
	Source string `json:"source"`
	Title  string `json:"title"`
}

// Filter narrows a metadata query. Zero-valued fields do not filter.
type Filter struct {
	Sources []string
	Keyword string    // substring match against any keyword
	BBox    []float64 // [xmin, ymin, xmax, ymax]; matches overlapping extents
}

// Store provides access to the SQLite metadata database.
type Store struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// Open opens the metadata store at path and applies pending migrations.
func Open(path string, readMaxOpen int) (*Store, error) {
	writeDB, readDB, err := db.OpenSQLitePair(path, readMaxOpen)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(writeDB); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("migrate metastore: %w", err)
	}
	return &Store{writeDB: writeDB, readDB: readDB}, nil
}

// Close closes both connection pools.
func (s *Store) Close() error {
	werr := s.writeDB.Close()
	rerr := s.readDB.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// ReplaceDocument upserts the full metadata record of a source, replacing
// its keywords and origins.
func (s *Store) ReplaceDocument(ctx context.Context, doc Document) error {
	if doc.Source == "" {
		return fmt.Errorf("metadata document without source")
	}
	return db.WithTx(ctx, s.writeDB, func(tx *sql.Tx) error {
		geoBox, err := marshalGeoBox(doc.GeoBox)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO metadata (source, title, abstract, lineage, responsible_party, crs, format, datatype, geo_box, adaption_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source) DO UPDATE SET
				title = excluded.title,
				abstract = excluded.abstract,
				lineage = excluded.lineage,
				responsible_party = excluded.responsible_party,
				crs = excluded.crs,
				format = excluded.format,
				datatype = excluded.datatype,
				geo_box = excluded.geo_box,
				adaption_date = excluded.adaption_date`,
			doc.Source, doc.Title, doc.Abstract, doc.Lineage, doc.ResponsibleParty,
			doc.CRS, doc.Format, doc.DataType, geoBox, doc.AdaptionDate)
		if err != nil {
			return fmt.Errorf("upsert metadata for %s: %w", doc.Source, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM metadata_keywords WHERE source = ?`, doc.Source); err != nil {
			return fmt.Errorf("clear keywords for %s: %w", doc.Source, err)
		}
		for _, kw := range doc.Keywords {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO metadata_keywords (source, keyword) VALUES (?, ?)`, doc.Source, kw); err != nil {
				return fmt.Errorf("insert keyword for %s: %w", doc.Source, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM metadata_origin WHERE source = ?`, doc.Source); err != nil {
			return fmt.Errorf("clear origins for %s: %w", doc.Source, err)
		}
		for _, o := range doc.Origins {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO metadata_origin (source, origin_name, origin_source, origin_attribution, origin_licence, origin_licence_source, origin_version)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				doc.Source, o.Name, o.Source, o.Attribution, o.Licence, o.LicenceSource, o.Version); err != nil {
				return fmt.Errorf("insert origin for %s: %w", doc.Source, err)
			}
		}
		return nil
	})
}

// UpdateBBox records the spatial extent of a source, creating the metadata
// row when absent. bbox is [xmin, ymin, xmax, ymax].
func (s *Store) UpdateBBox(ctx context.Context, source string, bbox []float64) error {
	geoBox, err := marshalGeoBox(bbox)
	if err != nil {
		return err
	}
	_, err = s.writeDB.ExecContext(ctx, `
		INSERT INTO metadata (source, geo_box, adaption_date) VALUES (?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET geo_box = excluded.geo_box`,
		source, geoBox, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update bbox for %s: %w", source, err)
	}
	return nil
}

// UpdateCRS records the coordinate reference system of a source.
func (s *Store) UpdateCRS(ctx context.Context, source, crs string) error {
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO metadata (source, crs, adaption_date) VALUES (?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET crs = excluded.crs`,
		source, crs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update crs for %s: %w", source, err)
	}
	return nil
}

// TouchAdaptionDate stamps a source as refreshed at the given time.
func (s *Store) TouchAdaptionDate(ctx context.Context, source string, t time.Time) error {
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO metadata (source, adaption_date) VALUES (?, ?)
		ON CONFLICT(source) DO UPDATE SET adaption_date = excluded.adaption_date`,
		source, t.UTC())
	if err != nil {
		return fmt.Errorf("touch adaption date for %s: %w", source, err)
	}
	return nil
}

// Sources lists all sources with a metadata record in their short form.
func (s *Store) Sources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := s.readDB.QueryContext(ctx, `SELECT source, title FROM metadata ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("list metadata sources: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []SourceInfo
	for rows.Next() {
		var info SourceInfo
		if err := rows.Scan(&info.Source, &info.Title); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Query returns the full metadata documents matching the filter, keywords
// and origins included.
func (s *Store) Query(ctx context.Context, f Filter) ([]Document, error) {
	query := `SELECT source, title, abstract, lineage, responsible_party, crs, format, datatype, geo_box, adaption_date FROM metadata`
	var args []any
	if len(f.Sources) > 0 {
		placeholders := strings.Repeat("?,", len(f.Sources))
		query += ` WHERE source IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, src := range f.Sources {
			args = append(args, src)
		}
	}
	query += ` ORDER BY source`

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var docs []Document
	for rows.Next() {
		var doc Document
		var geoBox sql.NullString
		var adaption sql.NullTime
		if err := rows.Scan(&doc.Source, &doc.Title, &doc.Abstract, &doc.Lineage,
			&doc.ResponsibleParty, &doc.CRS, &doc.Format, &doc.DataType, &geoBox, &adaption); err != nil {
			return nil, err
		}
		if geoBox.Valid && geoBox.String != "" {
			if err := json.Unmarshal([]byte(geoBox.String), &doc.GeoBox); err != nil {
				return nil, fmt.Errorf("decode geo_box for %s: %w", doc.Source, err)
			}
		}
		if adaption.Valid {
			t := adaption.Time
			doc.AdaptionDate = &t
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range docs {
		if err := s.loadKeywords(ctx, &docs[i]); err != nil {
			return nil, err
		}
		if err := s.loadOrigins(ctx, &docs[i]); err != nil {
			return nil, err
		}
	}

	filtered := docs[:0]
	for _, doc := range docs {
		if f.Keyword != "" && !matchesKeyword(doc.Keywords, f.Keyword) {
			continue
		}
		if len(f.BBox) == 4 && !boxesOverlap(doc.GeoBox, f.BBox) {
			continue
		}
		filtered = append(filtered, doc)
	}
	return filtered, nil
}

// StartRun records the start of an ETL run and returns its id.
func (s *Store) StartRun(ctx context.Context, sources []string) (string, error) {
	id := uuid.NewString()
	_, err := s.writeDB.ExecContext(ctx,
		`INSERT INTO etl_runs (id, sources, status, started_at) VALUES (?, ?, 'running', ?)`,
		id, strings.Join(sources, ","), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("start etl run: %w", err)
	}
	return id, nil
}

// FinishRun closes an ETL run record. status is "succeeded" or "failed".
func (s *Store) FinishRun(ctx context.Context, id, status, errMsg string) error {
	_, err := s.writeDB.ExecContext(ctx,
		`UPDATE etl_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finish etl run %s: %w", id, err)
	}
	return nil
}

func (s *Store) loadKeywords(ctx context.Context, doc *Document) error {
	rows, err := s.readDB.QueryContext(ctx,
		`SELECT keyword FROM metadata_keywords WHERE source = ? ORDER BY id`, doc.Source)
	if err != nil {
		return fmt.Errorf("load keywords for %s: %w", doc.Source, err)
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return err
		}
		doc.Keywords = append(doc.Keywords, kw)
	}
	return rows.Err()
}

func (s *Store) loadOrigins(ctx context.Context, doc *Document) error {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT origin_name, origin_source, origin_attribution, origin_licence, origin_licence_source, origin_version
		FROM metadata_origin WHERE source = ? ORDER BY id`, doc.Source)
	if err != nil {
		return fmt.Errorf("load origins for %s: %w", doc.Source, err)
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var o Origin
		if err := rows.Scan(&o.Name, &o.Source, &o.Attribution, &o.Licence, &o.LicenceSource, &o.Version); err != nil {
			return err
		}
		doc.Origins = append(doc.Origins, o)
	}
	return rows.Err()
}

func marshalGeoBox(bbox []float64) (any, error) {
	if len(bbox) == 0 {
		return nil, nil
	}
	if len(bbox) != 4 {
		return nil, fmt.Errorf("geo box must have 4 elements, got %d", len(bbox))
	}
	data, err := json.Marshal(bbox)
	if err != nil {
		return nil, fmt.Errorf("encode geo box: %w", err)
	}
	return string(data), nil
}

func matchesKeyword(keywords []string, needle string) bool {
	needle = strings.ToLower(needle)
	for _, kw := range keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	return false
}

// boxesOverlap reports whether two [xmin, ymin, xmax, ymax] extents
// intersect. A document without an extent never matches a bbox filter.
func boxesOverlap(a, b []float64) bool {
	if len(a) != 4 || len(b) != 4 {
		return false
	}
	return a[0] <= b[2] && b[0] <= a[2] && a[1] <= b[3] && b[1] <= a[3]
}
