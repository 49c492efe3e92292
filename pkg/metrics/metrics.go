// Package metrics provides the Prometheus registry shared by the catalogue
// exporter and writes it out at the end of a run.
// All metrics are defined in their respective packages (client, pagination,
// normalize, cache, render, ratelimit) to maintain modularity and avoid
// circular dependencies.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the exporter.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// WriteTextfile writes every registered metric to path in the text exposition
// format, for collection by the node exporter textfile collector.
func WriteTextfile(path string) error {
	return WriteTextfileFrom(path, prometheus.DefaultGatherer)
}

// WriteTextfileFrom writes the metrics gathered from g to path.
// The file is replaced atomically.
func WriteTextfileFrom(path string, g prometheus.Gatherer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - altered_requests_total{faction, status} (Counter): Page requests by faction and HTTP status
//   - altered_request_duration_seconds{faction} (Histogram): Page request duration by faction
//   - altered_errors_total{class} (Counter): Failed attempts by class (client, server, network, malformed)
//
// Retry Metrics (pkg/client):
//   - altered_retries_total{error_class} (Counter): Retry attempts by error class
//   - altered_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - altered_retry_exhausted_total{error_class} (Counter): Page requests that exhausted max attempts
//
// Rate Limit Metrics (pkg/ratelimit):
//   - altered_rate_limit_throttles_total (Counter): Requests delayed by the politeness limiter
//   - altered_rate_limit_wait_seconds (Histogram): Time spent waiting for the limiter
//
// Pagination Metrics (pkg/pagination):
//   - altered_pages_fetched_total{faction} (Counter): Pages fetched by faction
//   - altered_records_fetched{faction} (Gauge): Records in the last completed faction walk
//
// Normalization Metrics (pkg/normalize):
//   - altered_rows_normalized_total (Counter): Raw records flattened into rows
//
// Thumbnail Metrics (pkg/cache, pkg/render):
//   - altered_thumbnail_cache_hits_total{layer} (Counter): Cache hits by layer (redis, dir)
//   - altered_thumbnail_cache_misses_total{layer} (Counter): Cache misses by layer
//   - altered_thumbnail_cache_written_bytes_total{layer} (Counter): Bytes written to the cache
//   - altered_thumbnail_cache_errors_total{layer, operation} (Counter): Cache operation errors
//   - altered_thumbnails_downloaded_total (Counter): Images downloaded from the image host
//   - altered_thumbnails_skipped_total{reason} (Counter): Rows rendered without a thumbnail
//
// Example Prometheus Queries:
//
//   # Cards exported per faction
//   altered_records_fetched
//
//   # Thumbnail cache hit rate
//   sum(altered_thumbnail_cache_hits_total) /
//   (sum(altered_thumbnail_cache_hits_total) + sum(altered_thumbnail_cache_misses_total))
//
//   # Retries per run by class
//   sum by (error_class) (altered_retries_total)
