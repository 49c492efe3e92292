package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrInvalidKey indicates a key without a card reference
	ErrInvalidKey = errors.New("invalid cache key")
)

// Store persists thumbnails between runs.
type Store interface {
	// Get returns ErrCacheMiss if the key doesn't exist or has expired.
	Get(ctx context.Context, key CacheKey) (*Entry, error)

	Set(ctx context.Context, key CacheKey, entry *Entry) error
}
