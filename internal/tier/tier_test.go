package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTolerance(t *testing.T) {
	tol, err := Tolerance(1)
	require.NoError(t, err)
	assert.Equal(t, 0.00001, tol)

	tol, err = Tolerance(10)
	require.NoError(t, err)
	assert.Equal(t, 0.5, tol)

	_, err = Tolerance(0)
	assert.Error(t, err)
	_, err = Tolerance(11)
	assert.Error(t, err)
}

func TestToleranceMonotonic(t *testing.T) {
	prev := 0.0
	for level := 1; level <= MaxLevel; level++ {
		tol, err := Tolerance(level)
		require.NoError(t, err)
		assert.Greater(t, tol, prev, "level %d", level)
		prev = tol
	}
}

func TestLevels(t *testing.T) {
	levels := Levels()
	require.Len(t, levels, 11)
	assert.Equal(t, 0, levels[0])
	assert.Equal(t, 10, levels[10])
}

func TestForZoom(t *testing.T) {
	tests := []struct {
		zoom int
		want int
	}{
		{1, 10},
		{2, 10},
		{3, 9},
		{4, 8},
		{5, 7},
		{6, 6},
		{7, 5},
		{8, 4},
		{9, 3},
		{10, 2},
		{11, 1},
		{12, 0},
		{13, 0},
		{20, 0},
		{0, 10},
		{-3, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ForZoom(tt.zoom), "zoom %d", tt.zoom)
	}
}
