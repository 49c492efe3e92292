// Package cache stores downloaded card thumbnails so repeated exports do not
// download the same image twice.
package cache

import (
	"net/http"
	"strings"
	"time"
)

// Entry is one cached image.
type Entry struct {
	// Data is the raw image body
	Data []byte `json:"data"`

	// ContentType as reported by the image host (or sniffed when absent)
	ContentType string `json:"content_type"`

	// SourceURL the image was downloaded from
	SourceURL string `json:"source_url"`

	// CachedAt is when we cached this image
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry builds an entry, sniffing the content type when none is given.
func NewEntry(data []byte, contentType, sourceURL string) *Entry {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &Entry{
		Data:        data,
		ContentType: contentType,
		SourceURL:   sourceURL,
		CachedAt:    time.Now(),
	}
}

// Age returns how long ago the entry was cached.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}

// IsExpired reports whether the entry is older than ttl. ttl <= 0 never expires.
func (e *Entry) IsExpired(ttl time.Duration) bool {
	return ttl > 0 && e.Age() > ttl
}

// Extension returns the file extension matching the content type,
// or "" for formats a workbook cannot embed.
func (e *Entry) Extension() string {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(e.ContentType, ";", 2)[0]))
	switch mediaType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
