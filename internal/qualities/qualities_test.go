package qualities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinationsOrder(t *testing.T) {
	space := Space{
		{Name: "simplification_level", Values: []string{"0", "1", "2"}},
		{Name: "adm_level", Values: []string{"adm1", "adm0"}},
	}

	combos := space.Combinations()
	require.Len(t, combos, 6)

	// Outer dimension varies slowest.
	expected := [][2]string{
		{"0", "adm1"}, {"0", "adm0"},
		{"1", "adm1"}, {"1", "adm0"},
		{"2", "adm1"}, {"2", "adm0"},
	}
	for i, want := range expected {
		assert.Equal(t, want[0], combos[i].Value("simplification_level"), "combination %d", i)
		assert.Equal(t, want[1], combos[i].Value("adm_level"), "combination %d", i)
	}
}

func TestCombinationsDeterministic(t *testing.T) {
	space := Space{
		{Name: "a", Values: []string{"x", "y"}},
		{Name: "b", Values: []string{"1", "2", "3"}},
	}

	first := space.Combinations()
	second := space.Combinations()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].String(), second[i].String())
	}
}

func TestEmptySpaceYieldsSingleNilCombination(t *testing.T) {
	combos := Space{}.Combinations()
	require.Len(t, combos, 1)
	assert.Nil(t, combos[0])
}

func TestCombinationAccessors(t *testing.T) {
	space := Space{
		{Name: "simplification_level", Values: []string{"7"}},
		{Name: "adm_level", Values: []string{"adm0"}},
	}
	c := space.Combinations()[0]

	lvl, err := c.Int("simplification_level")
	require.NoError(t, err)
	assert.Equal(t, 7, lvl)

	_, err = c.Int("adm_level")
	assert.Error(t, err)

	_, err = c.Int("missing")
	assert.Error(t, err)

	v, ok := c.Get("adm_level")
	assert.True(t, ok)
	assert.Equal(t, "adm0", v)

	assert.Equal(t, "", c.Value("missing"))
	assert.Equal(t, "{simplification_level=7 adm_level=adm0}", c.String())
}

func TestCombinationWith(t *testing.T) {
	space := Space{
		{Name: "simplification_level", Values: []string{"3"}},
		{Name: "adm_level", Values: []string{"adm1"}},
	}
	c := space.Combinations()[0]

	replaced := c.With("adm_level", "adm0")
	assert.Equal(t, "adm0", replaced.Value("adm_level"))
	assert.Equal(t, "3", replaced.Value("simplification_level"))

	// Original is untouched.
	assert.Equal(t, "adm1", c.Value("adm_level"))
}

func TestRestrictionsMatches(t *testing.T) {
	space := Space{
		{Name: "simplification_level", Values: []string{"0", "5"}},
		{Name: "adm_level", Values: []string{"adm1", "adm0"}},
	}
	combos := space.Combinations()
	byKey := func(lvl, adm string) *Combination {
		for _, c := range combos {
			if c.Value("simplification_level") == lvl && c.Value("adm_level") == adm {
				return c
			}
		}
		t.Fatalf("no combination %s/%s", lvl, adm)
		return nil
	}

	tests := []struct {
		name  string
		r     Restrictions
		combo *Combination
		want  bool
	}{
		{"empty restrictions match everything", Restrictions{}, byKey("5", "adm0"), true},
		{"matching value", Restrictions{"adm_level": "adm0"}, byKey("0", "adm0"), true},
		{"mismatching value", Restrictions{"adm_level": "adm0"}, byKey("0", "adm1"), false},
		{"all intersecting dims must match", Restrictions{"adm_level": "adm0", "simplification_level": "5"}, byKey("0", "adm0"), false},
		{"foreign dimension is ignored", Restrictions{"source": "vg250"}, byKey("0", "adm1"), true},
		{"nil combination always matches", Restrictions{"adm_level": "adm0"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Matches(tt.combo))
		})
	}
}

func TestIntRange(t *testing.T) {
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}, IntRange(0, 10))
	assert.Equal(t, []string{"4"}, IntRange(4, 4))
}
