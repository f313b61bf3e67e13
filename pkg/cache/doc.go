// Package cache provides session-scoped memoization of provider records
// with an optional Redis-backed persistent store.
//
// The record cache guarantees each (provider, DOI) pair is fetched at most
// once per session:
//
// - Positive results are memoized for the lifetime of the cache
// - Not-found answers are memoized with a bounded TTL
// - Concurrent lookups of the same key collapse into one provider call
// - Citing-work lists are memoized per seed DOI
// - Transient provider failures are never cached
// - An optional Store persists raw payloads across sessions
//
// # Basic Usage
//
//	registry := crossref.New(fetcher)
//	metadata := openalex.New(fetcher)
//
//	rc := cache.New(registry, metadata)
//
//	// Resolve a DOI against both providers at once.
//	u, err := rc.Unified(ctx, "10.1038/s41586-020-2649-2")
//	if errors.Is(err, client.ErrNotFound) {
//		// Neither provider knows this DOI.
//	}
//
// # Persistent Store
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	rc := cache.New(registry, metadata,
//		cache.WithStore(cache.NewRedisStore(redisClient, 0)),
//	)
//
// Raw provider payloads are written through on every network fetch and
// consulted on memory misses, so repeated analyses of the same corpus skip
// the network entirely.
//
// # Metrics
//
// The record cache exports Prometheus metrics:
//
//   - citegraph_cache_hits_total{provider,layer} - Cache hits
//   - citegraph_cache_misses_total{provider} - Cache misses
//   - citegraph_cache_negative_hits_total{provider} - Cached not-founds served
//   - citegraph_store_errors_total{operation} - Persistent store errors
package cache
