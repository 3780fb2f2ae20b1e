package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"geoatlas/internal/domain"
)

// PopulationService answers queries over the population time series.
type PopulationService struct {
	db  *sql.DB
	log *slog.Logger
}

func NewPopulationService(db *sql.DB, log *slog.Logger) *PopulationService {
	return &PopulationService{db: db, log: log.With("component", "population-query")}
}

// PopulationParams are the decoded query arguments. Years and the inclusive
// YearsFrom/YearsTo range combine; an open bound is resolved against the
// years present in the data.
type PopulationParams struct {
	Codes     []string
	Years     []int
	YearsFrom *int
	YearsTo   *int
	Source    string
}

// PopulationRecord is one country-year value.
type PopulationRecord struct {
	Adm0Code string `json:"adm0_code"`
	Value    int64  `json:"value"`
	Year     int    `json:"year"`
}

func (s *PopulationService) Query(ctx context.Context, p PopulationParams) ([]PopulationRecord, error) {
	if p.Source == "" {
		return nil, domain.ErrValidation("source required for API call")
	}
	if p.YearsFrom != nil && p.YearsTo != nil && *p.YearsTo < *p.YearsFrom {
		return nil, domain.ErrValidation("years_to must be larger or equal to years_from")
	}

	years, err := s.resolveYears(ctx, p)
	if err != nil {
		return nil, err
	}

	query := `SELECT adm0_code, value, year FROM population WHERE source = ?`
	args := []any{p.Source}
	if len(p.Codes) > 0 {
		query += fmt.Sprintf(" AND adm0_code IN (%s)", placeholders(len(p.Codes)))
		args = append(args, stringArgs(p.Codes)...)
	}
	if len(years) > 0 {
		query += fmt.Sprintf(" AND year IN (%s)", placeholders(len(years)))
		for _, y := range years {
			args = append(args, y)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query population: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := []PopulationRecord{}
	for rows.Next() {
		var r PopulationRecord
		if err := rows.Scan(&r.Adm0Code, &r.Value, &r.Year); err != nil {
			return nil, fmt.Errorf("scan population record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// resolveYears unions the explicit year list with the requested range. An
// open bound falls back to the earliest or latest year of the source.
func (s *PopulationService) resolveYears(ctx context.Context, p PopulationParams) ([]int, error) {
	if p.YearsFrom == nil && p.YearsTo == nil {
		return uniqueSorted(p.Years), nil
	}

	from, to := 0, 0
	switch {
	case p.YearsFrom != nil && p.YearsTo != nil:
		from, to = *p.YearsFrom, *p.YearsTo
	default:
		minYear, maxYear, err := s.yearLimits(ctx, p.Source)
		if err != nil {
			return nil, err
		}
		if p.YearsFrom != nil {
			from, to = *p.YearsFrom, maxYear
		} else {
			from, to = minYear, *p.YearsTo
		}
	}

	years := append([]int(nil), p.Years...)
	for y := from; y <= to; y++ {
		years = append(years, y)
	}
	return uniqueSorted(years), nil
}

func (s *PopulationService) yearLimits(ctx context.Context, source string) (minYear, maxYear int, err error) {
	var lo, hi sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT MIN(year), MAX(year) FROM population WHERE source = ?`, source).
		Scan(&lo, &hi)
	if err != nil {
		return 0, 0, fmt.Errorf("query year limits: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return 0, 0, domain.ErrNotFound("no population data for source %q", source)
	}
	return int(lo.Int64), int(hi.Int64), nil
}

func uniqueSorted(years []int) []int {
	seen := make(map[int]bool, len(years))
	var out []int
	for _, y := range years {
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	sort.Ints(out)
	return out
}
