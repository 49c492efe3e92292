// Package cache provides thumbnail caching with Redis or local directory backends.
//
// Card images are large and rarely change, so every export downloads each
// image at most once per cache lifetime. Two backends implement Store:
//
//   - RedisStore keeps JSON-encoded entries under "altered:thumb:..." keys and
//     lets Redis expire them after the configured TTL.
//   - DirStore writes one file per card to a directory (default "temp").
//
// # Basic Usage
//
//	store := cache.NewDirStore("temp", 0)
//
//	key := cache.CacheKey{Reference: "ALT_CORE_B_AX_04_C", Variant: "en-us"}
//
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// download, then
//		_ = store.Set(ctx, key, cache.NewEntry(body, resp.Header.Get("Content-Type"), url))
//	}
//
// # Metrics
//
//   - altered_thumbnail_cache_hits_total{layer} - Cache hits
//   - altered_thumbnail_cache_misses_total{layer} - Cache misses
//   - altered_thumbnail_cache_written_bytes_total{layer} - Bytes stored
//   - altered_thumbnail_cache_errors_total{layer,operation} - Cache operation errors
package cache
