// Package tier maps simplification levels to geometric tolerances and map
// zoom levels to simplification levels.
package tier

import (
	"fmt"
	"math"
)

// MaxLevel is the coarsest simplification level. Level 0 is the unmodified
// base geometry.
const MaxLevel = 10

// tolerances[i] is the simplification tolerance of level i+1, in degrees.
var tolerances = [MaxLevel]float64{
	0.00001,
	0.00005,
	0.0001,
	0.0005,
	0.001,
	0.005,
	0.01,
	0.05,
	0.1,
	0.5,
}

// Tolerance returns the simplification tolerance of a level in 1..10.
// Level 0 has no tolerance: it is never simplified.
func Tolerance(level int) (float64, error) {
	if level < 1 || level > MaxLevel {
		return 0, fmt.Errorf("simplification level %d outside 1..%d", level, MaxLevel)
	}
	return tolerances[level-1], nil
}

// Levels enumerates all simplification levels, 0..10.
func Levels() []int {
	out := make([]int, MaxLevel+1)
	for i := range out {
		out[i] = i
	}
	return out
}

// ForZoom maps a web-map zoom level to a simplification level: high zooms
// get detailed geometry, low zooms get coarse geometry. The result is
// clamped to 0..10.
//
// The epsilon compensates for the float64 representation of zoom/1.1 so
// that exact multiples (zoom 12 gives 11/1.1 = 10) land on the intended
// level instead of one below.
func ForZoom(zoom int) int {
	level := MaxLevel - int(math.Floor(float64(zoom-1)/1.1+1e-9))
	if level < 0 {
		return 0
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
