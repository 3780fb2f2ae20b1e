package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Cache is the local dataset cache rooted at the resources directory.
// Cached files are addressed by their slash-separated relative path.
type Cache struct {
	root string
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{root: dir}
}

// Path resolves a relative cache path to an absolute file path.
func (c *Cache) Path(rel string) string {
	return filepath.Join(c.root, filepath.FromSlash(rel))
}

// Has reports whether the cache holds a regular file at rel.
func (c *Cache) Has(rel string) bool {
	info, err := os.Stat(c.Path(rel))
	return err == nil && info.Mode().IsRegular()
}

// Store writes the content of r to the cache at rel. The write goes to a
// temp file first and is renamed into place so readers never observe a
// partial file.
func (c *Cache) Store(rel string, r io.Reader) (string, error) {
	dst := c.Path(rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("write cache file %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close cache file %s: %w", rel, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("finalize cache file %s: %w", rel, err)
	}
	return dst, nil
}
