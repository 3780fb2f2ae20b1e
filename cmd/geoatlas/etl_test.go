package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoatlas/internal/qualities"
)

func TestParseRestrictions(t *testing.T) {
	r, err := parseRestrictions([]string{"simplification_level=3", "adm_level=adm0"})
	require.NoError(t, err)
	assert.Equal(t, qualities.Restrictions{
		"simplification_level": "3",
		"adm_level":            "adm0",
	}, r)
}

func TestParseRestrictionsEmpty(t *testing.T) {
	r, err := parseRestrictions(nil)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestParseRestrictionsRejectsMalformed(t *testing.T) {
	for _, pair := range []string{"simplification_level", "=3", "adm_level="} {
		_, err := parseRestrictions([]string{pair})
		assert.Error(t, err, pair)
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "etl")
	assert.Contains(t, names, "migrate")
}

func TestSourceNamesNotEmpty(t *testing.T) {
	assert.NotEmpty(t, sourceNames())
}
