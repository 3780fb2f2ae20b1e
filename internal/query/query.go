// Package query implements the read-side services behind the HTTP API:
// combined world geometry queries, the German administrative areas, the
// population time series and the metadata catalogue.
package query

import "strings"

// placeholders renders n comma-separated bind markers for an IN list.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
