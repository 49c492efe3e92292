package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DirStore keeps thumbnails as files in a local directory.
type DirStore struct {
	dir string
	ttl time.Duration
}

// NewDirStore creates a directory-backed store. ttl <= 0 keeps files forever.
// The directory is created on first write.
func NewDirStore(dir string, ttl time.Duration) *DirStore {
	return &DirStore{dir: dir, ttl: ttl}
}

// Dir returns the cache directory.
func (s *DirStore) Dir() string {
	return s.dir
}

// Get reads a thumbnail file.
func (s *DirStore) Get(ctx context.Context, key CacheKey) (*Entry, error) {
	if !key.Valid() {
		return nil, ErrInvalidKey
	}

	path := filepath.Join(s.dir, key.FileName())
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			CacheMisses.WithLabelValues(layerDir).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(layerDir, "get").Inc()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	entry := &Entry{CachedAt: info.ModTime()}
	if entry.IsExpired(s.ttl) {
		_ = os.Remove(path)
		CacheMisses.WithLabelValues(layerDir).Inc()
		return nil, ErrCacheMiss
	}

	data, err := os.ReadFile(path)
	if err != nil {
		CacheErrors.WithLabelValues(layerDir, "get").Inc()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		CacheMisses.WithLabelValues(layerDir).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(layerDir).Inc()
	entry = NewEntry(data, "", "")
	entry.CachedAt = info.ModTime()
	return entry, nil
}

// Set writes a thumbnail file atomically.
func (s *DirStore) Set(ctx context.Context, key CacheKey, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if !key.Valid() {
		return ErrInvalidKey
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		CacheErrors.WithLabelValues(layerDir, "set").Inc()
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".thumb-*")
	if err != nil {
		CacheErrors.WithLabelValues(layerDir, "set").Inc()
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(entry.Data); err != nil {
		tmp.Close()
		CacheErrors.WithLabelValues(layerDir, "set").Inc()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		CacheErrors.WithLabelValues(layerDir, "set").Inc()
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key.FileName())); err != nil {
		CacheErrors.WithLabelValues(layerDir, "set").Inc()
		return fmt.Errorf("rename cache file: %w", err)
	}

	CacheBytesWritten.WithLabelValues(layerDir).Add(float64(len(entry.Data)))
	return nil
}
