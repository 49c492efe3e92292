package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sternrassler/altered-catalogue/pkg/cache"
	"github.com/Sternrassler/altered-catalogue/pkg/normalize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxImageBytes caps a single image download.
const maxImageBytes = 16 << 20

var (
	thumbnailsDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "altered_thumbnails_downloaded_total",
		Help: "Total card images downloaded from the image host",
	})

	thumbnailsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "altered_thumbnails_skipped_total",
		Help: "Rows rendered without a thumbnail, by reason",
	}, []string{"reason"})
)

// ThumbnailSource resolves the image for a row.
// ok is false when the row has no usable image; rendering continues without it.
type ThumbnailSource interface {
	Thumbnail(ctx context.Context, row normalize.Row) (entry *cache.Entry, ok bool)
}

// Thumbnailer downloads card images once and serves later requests from a cache.Store.
type Thumbnailer struct {
	store      cache.Store
	httpClient *http.Client
	variant    string
	logger     zerolog.Logger
}

// NewThumbnailer creates a thumbnailer. store may be nil to disable caching.
// variant separates cache entries of different image flavours (usually the locale).
func NewThumbnailer(store cache.Store, timeout time.Duration, variant string) *Thumbnailer {
	return &Thumbnailer{
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
		variant:    variant,
		logger:     log.With().Str("component", "thumbnail").Logger(),
	}
}

// SetHTTPClient replaces the download client (useful for testing).
func (t *Thumbnailer) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

// Thumbnail returns the cached image for row, downloading it on a miss.
// Download failures are logged and reported as ok=false.
func (t *Thumbnailer) Thumbnail(ctx context.Context, row normalize.Row) (*cache.Entry, bool) {
	if row.ImageURL == "" {
		thumbnailsSkipped.WithLabelValues("no_url").Inc()
		return nil, false
	}

	key := cache.CacheKey{Reference: row.Reference, Variant: t.variant}
	cacheable := t.store != nil && key.Valid()

	if cacheable {
		entry, err := t.store.Get(ctx, key)
		if err == nil {
			return entry, true
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			t.logger.Warn().Err(err).Str("reference", row.Reference).Msg("Thumbnail cache read failed")
		}
	}

	entry, err := t.download(ctx, row.ImageURL)
	if err != nil {
		thumbnailsSkipped.WithLabelValues("download").Inc()
		t.logger.Warn().
			Err(err).
			Str("reference", row.Reference).
			Str("url", row.ImageURL).
			Msg("Thumbnail skipped")
		return nil, false
	}
	thumbnailsDownloaded.Inc()

	if cacheable {
		if err := t.store.Set(ctx, key, entry); err != nil {
			t.logger.Warn().Err(err).Str("reference", row.Reference).Msg("Thumbnail cache write failed")
		}
	}

	return entry, true
}

func (t *Thumbnailer) download(ctx context.Context, url string) (*cache.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download: empty body")
	}

	return cache.NewEntry(data, resp.Header.Get("Content-Type"), url), nil
}
