package cache

import (
	"regexp"
	"strings"
)

// unsafeFileChars matches characters not allowed in cache file names.
var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// CacheKey identifies one cached card thumbnail.
type CacheKey struct {
	// Reference is the card's stable reference (e.g. "ALT_CORE_B_AX_04_C").
	Reference string

	// Variant distinguishes image flavours of the same card, usually the locale.
	Variant string
}

// String generates the Redis key.
// Format: altered:thumb[:variant]:reference
//
// Example:
//
//	altered:thumb:en-us:ALT_CORE_B_AX_04_C
func (k CacheKey) String() string {
	parts := []string{"altered", "thumb"}
	if v := strings.TrimSpace(k.Variant); v != "" {
		parts = append(parts, v)
	}
	parts = append(parts, strings.TrimSpace(k.Reference))
	return strings.Join(parts, ":")
}

// FileName generates a file name safe for any filesystem.
func (k CacheKey) FileName() string {
	name := unsafeFileChars.ReplaceAllString(strings.TrimSpace(k.Reference), "_")
	if v := unsafeFileChars.ReplaceAllString(strings.TrimSpace(k.Variant), "_"); v != "" {
		name = v + "_" + name
	}
	return name + ".img"
}

// Valid reports whether the key names a card.
func (k CacheKey) Valid() bool {
	return strings.TrimSpace(k.Reference) != ""
}
