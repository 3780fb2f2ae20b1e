package tier

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoatlas/internal/geodata"
)

// openGeomDB opens a plain SQLite database with the geometry-bearing tables.
// It is enough for the existence predicates and the skip paths; statements
// that reach the spatial functions would fail loudly, which the gating tests
// rely on.
func openGeomDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	for _, ddl := range []string{
		`CREATE TABLE adm0 (adm0_code TEXT, name TEXT, geometry_level INTEGER, source TEXT, geometry TEXT)`,
		`CREATE TABLE adm1 (adm0_code TEXT, adm1_code TEXT, name TEXT, adm0_name TEXT, geometry_level INTEGER, source TEXT, geometry TEXT)`,
		`CREATE TABLE vg250 (code TEXT, name TEXT, geometry_level INTEGER, agg_level TEXT, source TEXT, geometry TEXT)`,
		`CREATE TABLE vg250_attributes (arsg TEXT, nuts1 TEXT, nuts1_name TEXT)`,
	} {
		_, err := conn.Exec(ddl)
		require.NoError(t, err)
	}
	return conn
}

func testMaterializer(t *testing.T) (*Materializer, *sql.DB) {
	t.Helper()
	conn := openGeomDB(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMaterializer(conn, log), conn
}

func countRows(t *testing.T, conn *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(query, args...).Scan(&n))
	return n
}

func TestReplaceAdm1SimplifiedSkipsWithoutBase(t *testing.T) {
	m, conn := testMaterializer(t)
	ctx := context.Background()

	// A stale row at the target level must survive the skip: without base
	// geometry neither the delete nor the insert may run.
	_, err := conn.Exec(
		`INSERT INTO adm1 (adm0_code, geometry_level, source) VALUES ('DEU', 3, 'naturalearth')`)
	require.NoError(t, err)

	require.NoError(t, m.ReplaceAdm1Simplified(ctx, "naturalearth", 3))
	assert.Equal(t, 1, countRows(t, conn,
		`SELECT count(*) FROM adm1 WHERE geometry_level = 3`))
}

func TestReplaceAdm0SimplifiedSkipsWithoutBase(t *testing.T) {
	m, conn := testMaterializer(t)
	ctx := context.Background()

	_, err := conn.Exec(
		`INSERT INTO adm0 (adm0_code, geometry_level, source) VALUES ('DEU', 5, 'naturalearth')`)
	require.NoError(t, err)

	require.NoError(t, m.ReplaceAdm0Simplified(ctx, "naturalearth", 5))
	assert.Equal(t, 1, countRows(t, conn,
		`SELECT count(*) FROM adm0 WHERE geometry_level = 5`))
}

func TestReplaceAdm0BaseSkipsWithoutBase(t *testing.T) {
	m, conn := testMaterializer(t)

	require.NoError(t, m.ReplaceAdm0Base(context.Background(), "naturalearth"))
	assert.Equal(t, 0, countRows(t, conn, `SELECT count(*) FROM adm0`))
}

func TestReplaceGemeindeSimplifiedSkipsWithoutBase(t *testing.T) {
	m, conn := testMaterializer(t)

	require.NoError(t, m.ReplaceGemeindeSimplified(context.Background(), 2))
	assert.Equal(t, 0, countRows(t, conn, `SELECT count(*) FROM vg250`))
}

func TestReplaceVG250AggregateSkipsWithoutGemeinde(t *testing.T) {
	m, conn := testMaterializer(t)

	require.NoError(t, m.ReplaceVG250Aggregate(context.Background(), geodata.AggNUTS1, 4))
	assert.Equal(t, 0, countRows(t, conn, `SELECT count(*) FROM vg250`))
}

func TestReplaceVG250AggregateRejectsGemeinde(t *testing.T) {
	m, _ := testMaterializer(t)

	err := m.ReplaceVG250Aggregate(context.Background(), geodata.AggGemeinde, 4)
	assert.Error(t, err)
}

func TestHasAdmValidatesInput(t *testing.T) {
	m, _ := testMaterializer(t)
	ctx := context.Background()

	_, err := m.HasAdm(ctx, "vg250", "naturalearth", 0)
	assert.Error(t, err)

	_, err = m.HasAdm(ctx, "adm1", "naturalearth", 11)
	assert.Error(t, err)

	ok, err := m.HasAdm(ctx, "adm1", "naturalearth", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSimplifyStatementsRunOneCoveragePass(t *testing.T) {
	stmts := map[string]string{
		"adm1":            adm1SimplifyStmt,
		"adm0":            adm0SimplifyStmt,
		"gemeinde":        gemeindeSimplifyStmt,
		"vg250 aggregate": vg250AggregateSimplifyStmt("nuts1", "nuts1_name"),
	}
	for name, stmt := range stmts {
		// All level-0 features must pass through one windowed coverage
		// simplification so shared borders stay coincident. A per-row
		// simplification here would reopen gaps between neighbours.
		assert.Contains(t, stmt, "ST_CoverageSimplify", name)
		assert.Contains(t, stmt, "OVER ()", name)
		assert.NotContains(t, stmt, "ST_SimplifyPreserveTopology", name)
		assert.True(t,
			strings.Index(stmt, "ST_CoverageSimplify") < strings.Index(stmt, "ST_MakeValid"),
			"%s: validity repair must follow the coverage pass", name)
	}
}
