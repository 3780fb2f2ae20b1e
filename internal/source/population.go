package source

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"geoatlas/internal/db"
	"geoatlas/internal/qualities"
)

// Population loads the UN World Population Prospects estimates from a parquet
// export. The file carries one row per country and year with population per
// age bracket in thousands; the brackets are summed into a single total.
type Population struct{}

// PopulationRow is one country-year total, persons (not thousands).
type PopulationRow struct {
	Adm0Code string
	Year     int
	Value    int64
}

const populationSourceTag = "WPP2022"

func (s *Population) Name() string { return "population" }

func (s *Population) Qualities() qualities.Space { return qualities.Space{} }

func (s *Population) Extract(ctx context.Context, env *Env, _ *qualities.Combination, mode Mode) (*Dataset, error) {
	path, err := env.File(ctx, FileRequest{
		Source: s.Name(),
		Local:  "population/population.parquet",
	}, mode)
	if err != nil {
		return nil, err
	}
	if mode == ModeFetch {
		return &Dataset{}, nil
	}
	return &Dataset{Files: map[string]SourceFile{
		"population": {Path: path},
	}}, nil
}

// Transform scans the parquet file and folds the age brackets into totals.
// The bracket columns are not fixed across releases, so they are detected by
// name instead of being listed.
func (s *Population) Transform(ctx context.Context, env *Env, _ *qualities.Combination, ds *Dataset) error {
	if len(ds.Files) == 0 {
		return nil
	}

	query := "SELECT * FROM read_parquet(" + sqlString(ds.Files["population"].Path) + ")"
	rows, err := env.Geo.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("read population parquet: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("population columns: %w", err)
	}

	var (
		out     []PopulationRow
		skipped int
	)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan population row: %w", err)
		}
		row, ok := populationRowFromRecord(cols, vals)
		if !ok {
			skipped++
			continue
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate population rows: %w", err)
	}
	if skipped > 0 {
		env.Log.Debug("dropped population rows without country code", "rows", skipped)
	}

	ds.Rows = out
	return nil
}

// populationRowFromRecord folds one raw record into a country-year total.
// Rows without an ISO3 country code are aggregates and are dropped.
func populationRowFromRecord(cols []string, vals []any) (PopulationRow, bool) {
	var row PopulationRow
	var sum float64
	for i, col := range cols {
		switch {
		case col == "ISO3 Alpha-code":
			code, ok := stringValue(vals[i])
			if !ok || code == "" {
				return PopulationRow{}, false
			}
			row.Adm0Code = code
		case col == "Year":
			n, ok := numericValue(vals[i])
			if !ok {
				return PopulationRow{}, false
			}
			row.Year = int(n)
		case isAgeBracket(col):
			if n, ok := numericValue(vals[i]); ok {
				sum += n
			}
		}
	}
	if row.Adm0Code == "" {
		return PopulationRow{}, false
	}
	// Source values are in thousands.
	row.Value = int64(sum * 1000)
	return row, true
}

// isAgeBracket reports whether a column holds a population age bracket, such
// as "0", "42" or "100+".
func isAgeBracket(col string) bool {
	if col == "" {
		return false
	}
	digits := col
	if digits[len(digits)-1] == '+' {
		digits = digits[:len(digits)-1]
	}
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// numericValue normalizes the numeric representations the driver may hand
// back, including localized strings with a thousands separator.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		clean := ""
		for _, r := range n {
			if r != ',' && r != ' ' {
				clean += string(r)
			}
		}
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (s *Population) Persist(ctx context.Context, env *Env, _ *qualities.Combination, ds *Dataset) error {
	recs, _ := ds.Rows.([]PopulationRow)
	if len(recs) == 0 {
		return nil
	}

	err := db.WithTx(ctx, env.Geo, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM population WHERE source = ?`, populationSourceTag); err != nil {
			return fmt.Errorf("delete population: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO population (adm0_code, value, year, source) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare population insert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck
		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx, r.Adm0Code, r.Value, r.Year, populationSourceTag); err != nil {
				return fmt.Errorf("insert population %s/%d: %w", r.Adm0Code, r.Year, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	env.Log.Info("persisted population records", "rows", len(recs))
	return env.Meta.TouchAdaptionDate(ctx, s.Name(), time.Now())
}
