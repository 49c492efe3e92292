package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis, dir)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altered_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks cache misses by layer
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altered_thumbnail_cache_misses_total",
			Help: "Total number of thumbnail cache misses",
		},
		[]string{"layer"},
	)

	// CacheBytesWritten tracks bytes stored by layer
	CacheBytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altered_thumbnail_cache_written_bytes_total",
			Help: "Total bytes written to the thumbnail cache",
		},
		[]string{"layer"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altered_thumbnail_cache_errors_total",
			Help: "Total number of thumbnail cache operation errors",
		},
		[]string{"layer", "operation"}, // "get", "set", "delete"
	)
)

const (
	layerRedis = "redis"
	layerDir   = "dir"
)
