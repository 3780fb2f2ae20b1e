// Package qualities enumerates the quality space of a data source: the
// cross-product of named, ordered dimensions (simplification level,
// administrative level, per-source knobs) that an ETL run iterates over.
package qualities

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Dimension is one named axis of a quality space with its ordered values.
type Dimension struct {
	Name   string
	Values []string
}

// Space is an ordered list of dimensions. The first dimension is the
// outermost (slowest-varying) axis of the enumeration.
type Space []Dimension

// Combination is one concrete allocation of the space: a value for every
// dimension. A nil *Combination represents the single run of a source that
// declares no qualities.
type Combination struct {
	dims   []string
	values map[string]string
}

// Combinations enumerates the full cross-product of the space in
// deterministic order, the outer dimension varying slowest. An empty space
// yields exactly one nil combination.
func (s Space) Combinations() []*Combination {
	if len(s) == 0 {
		return []*Combination{nil}
	}

	total := 1
	for _, d := range s {
		total *= len(d.Values)
	}

	out := make([]*Combination, 0, total)
	idx := make([]int, len(s))
	for {
		c := &Combination{
			dims:   make([]string, len(s)),
			values: make(map[string]string, len(s)),
		}
		for i, d := range s {
			c.dims[i] = d.Name
			c.values[d.Name] = d.Values[idx[i]]
		}
		out = append(out, c)

		// Advance like an odometer, innermost dimension first.
		i := len(s) - 1
		for i >= 0 {
			idx[i]++
			if idx[i] < len(s[i].Values) {
				break
			}
			idx[i] = 0
			i--
		}
		if i < 0 {
			return out
		}
	}
}

// Dimensions returns the dimension names of the space in declaration order.
func (s Space) Dimensions() []string {
	names := make([]string, len(s))
	for i, d := range s {
		names[i] = d.Name
	}
	return names
}

// Get returns the value of the named dimension and whether it is present.
func (c *Combination) Get(dim string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.values[dim]
	return v, ok
}

// Value returns the value of the named dimension, or "" when absent.
func (c *Combination) Value(dim string) string {
	v, _ := c.Get(dim)
	return v
}

// Int returns the value of the named dimension parsed as an integer.
func (c *Combination) Int(dim string) (int, error) {
	v, ok := c.Get(dim)
	if !ok {
		return 0, fmt.Errorf("quality dimension %q not present", dim)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("quality dimension %q: %w", dim, err)
	}
	return n, nil
}

// With returns a copy of the combination with the named dimension replaced.
// Sources use this to re-address a sibling allocation (e.g. the same
// simplification level at a different administrative level).
func (c *Combination) With(dim, value string) *Combination {
	if c == nil {
		return &Combination{dims: []string{dim}, values: map[string]string{dim: value}}
	}
	out := &Combination{
		dims:   append([]string(nil), c.dims...),
		values: make(map[string]string, len(c.values)+1),
	}
	for k, v := range c.values {
		out.values[k] = v
	}
	if _, ok := out.values[dim]; !ok {
		out.dims = append(out.dims, dim)
	}
	out.values[dim] = value
	return out
}

// String renders the combination as "dim=value" pairs in dimension order,
// for log lines.
func (c *Combination) String() string {
	if c == nil {
		return "{}"
	}
	parts := make([]string, 0, len(c.dims))
	for _, d := range c.dims {
		parts = append(parts, d+"="+c.values[d])
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Restrictions narrows an ETL run to combinations whose values match on
// every restricted dimension. Dimensions a combination does not declare are
// ignored.
type Restrictions map[string]string

// Matches reports whether the combination passes the restrictions.
// A nil combination always matches: restrictions cannot exclude a source
// that declares no qualities.
func (r Restrictions) Matches(c *Combination) bool {
	if len(r) == 0 || c == nil {
		return true
	}
	for dim, want := range r {
		if got, ok := c.Get(dim); ok && got != want {
			return false
		}
	}
	return true
}

// Dimensions returns the restricted dimension names, sorted.
func (r Restrictions) Dimensions() []string {
	names := make([]string, 0, len(r))
	for d := range r {
		names = append(names, d)
	}
	sort.Strings(names)
	return names
}

// IntRange returns the decimal string values lo..hi inclusive, for numeric
// dimensions like the simplification level.
func IntRange(lo, hi int) []string {
	out := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}
