package storage

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoatlas/internal/config"
)

func TestCacheStoreAndHas(t *testing.T) {
	cache := NewCache(t.TempDir())

	assert.False(t, cache.Has("vg/DE_VG250.gpkg"))

	path, err := cache.Store("vg/DE_VG250.gpkg", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.True(t, cache.Has("vg/DE_VG250.gpkg"))
	assert.Equal(t, cache.Path("vg/DE_VG250.gpkg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestCacheStoreOverwrites(t *testing.T) {
	cache := NewCache(t.TempDir())

	_, err := cache.Store("a/b.txt", strings.NewReader("one"))
	require.NoError(t, err)
	path, err := cache.Store("a/b.txt", strings.NewReader("two"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestCacheHasRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir)
	require.NoError(t, os.MkdirAll(cache.Path("subdir"), 0o750))
	assert.False(t, cache.Has("subdir"))
}

func TestNewGatewayDispatch(t *testing.T) {
	useTLS := true

	t.Run("default backend is s3", func(t *testing.T) {
		gw, err := NewGateway(config.SourceRemote{
			Server: "minio:9000",
			Bucket: "geodata",
			UseTLS: &useTLS,
		})
		require.NoError(t, err)
		assert.IsType(t, &S3Gateway{}, gw)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewGateway(config.SourceRemote{Backend: "ftp"})
		assert.Error(t, err)
	})

	t.Run("azure requires credentials", func(t *testing.T) {
		_, err := NewGateway(config.SourceRemote{Backend: "azure", Bucket: "c"})
		assert.Error(t, err)
	})
}
