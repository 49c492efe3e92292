package cache

import (
	"testing"
	"time"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNewEntry_SniffsContentType(t *testing.T) {
	entry := NewEntry(pngHeader, "", "https://cdn.example/x.png")
	if entry.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", entry.ContentType)
	}
	if entry.SourceURL != "https://cdn.example/x.png" {
		t.Errorf("SourceURL = %q", entry.SourceURL)
	}
	if entry.CachedAt.IsZero() {
		t.Error("CachedAt should be set")
	}

	entry = NewEntry(pngHeader, "image/jpeg", "")
	if entry.ContentType != "image/jpeg" {
		t.Errorf("explicit ContentType overwritten: %q", entry.ContentType)
	}
}

func TestEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name     string
		cachedAt time.Time
		ttl      time.Duration
		want     bool
	}{
		{name: "expired entry", cachedAt: time.Now().Add(-2 * time.Hour), ttl: time.Hour, want: true},
		{name: "valid entry", cachedAt: time.Now().Add(-time.Minute), ttl: time.Hour, want: false},
		{name: "no ttl", cachedAt: time.Now().Add(-24 * 365 * time.Hour), ttl: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{CachedAt: tt.cachedAt}
			if got := entry.IsExpired(tt.ttl); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Extension(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{contentType: "image/jpeg", want: ".jpg"},
		{contentType: "image/png", want: ".png"},
		{contentType: "IMAGE/PNG; charset=binary", want: ".png"},
		{contentType: "image/gif", want: ".gif"},
		{contentType: "image/webp", want: ""},
		{contentType: "text/html; charset=utf-8", want: ""},
		{contentType: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			entry := &Entry{ContentType: tt.contentType}
			if got := entry.Extension(); got != tt.want {
				t.Errorf("Extension() = %q, want %q", got, tt.want)
			}
		})
	}
}
