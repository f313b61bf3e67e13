package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks record cache hits by provider and layer
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citegraph_cache_hits_total",
			Help: "Total number of record cache hits",
		},
		[]string{"provider", "layer"}, // layer: "memory", "store"
	)

	// cacheMisses tracks record cache misses by provider
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citegraph_cache_misses_total",
			Help: "Total number of record cache misses",
		},
		[]string{"provider"},
	)

	// negativeHits tracks lookups answered from a cached not-found
	negativeHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citegraph_cache_negative_hits_total",
			Help: "Total number of lookups answered from a cached not-found",
		},
		[]string{"provider"},
	)

	// storeErrors tracks persistent store operation errors
	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citegraph_store_errors_total",
			Help: "Total number of persistent store operation errors",
		},
		[]string{"operation"}, // "get", "set"
	)
)
