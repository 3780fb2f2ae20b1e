package source

import "strings"

// sqlString renders a Go string as a single-quoted SQL literal. Table
// functions like ST_Read and read_csv cannot take bound parameters, so file
// paths are embedded as escaped literals.
func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// stRead builds an ST_Read table-function expression for a file, with an
// optional layer for multi-layer formats.
func stRead(f SourceFile) string {
	if f.Layer == "" {
		return "ST_Read(" + sqlString(f.Path) + ")"
	}
	return "ST_Read(" + sqlString(f.Path) + ", layer=" + sqlString(f.Layer) + ")"
}
