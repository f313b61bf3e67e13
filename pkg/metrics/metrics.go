// Package metrics provides the centralized Prometheus metrics reference for
// the acquisition pipeline. All metrics are defined in their respective
// packages (client, cache, ratelimit, dispatch, graph) to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the pipeline.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - citegraph_rate_limit_waits_total (Counter): Calls that slept at the window ceiling
//   - citegraph_rate_limit_wait_seconds (Histogram): Time spent waiting for window slots
//   - citegraph_backoff_tier (Gauge): Current adaptive backoff tier index
//   - citegraph_backoff_penalties_total (Counter): Backoff escalations after provider errors
//   - citegraph_backoff_sleep_seconds (Histogram): Time slept in adaptive backoff
//
// Request Metrics (pkg/client):
//   - citegraph_requests_total{provider, status} (Counter): Requests by provider and HTTP status
//   - citegraph_request_duration_seconds{provider} (Histogram): Request duration by provider
//   - citegraph_errors_total{provider, class} (Counter): Errors by class (transient, not_found, malformed)
//   - citegraph_retries_total{provider} (Counter): Retry attempts by provider
//   - citegraph_retry_exhausted_total{provider} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - citegraph_cache_hits_total{provider, layer} (Counter): Record cache hits by layer (memory, store)
//   - citegraph_cache_misses_total{provider} (Counter): Record cache misses
//   - citegraph_cache_negative_hits_total{provider} (Counter): Lookups answered from a cached not-found
//   - citegraph_store_errors_total{operation} (Counter): Persistent store operation errors
//
// Dispatch Metrics (pkg/dispatch):
//   - citegraph_dispatch_items_total (Counter): Items dispatched to the worker pool
//   - citegraph_dispatch_failures_total (Counter): Dispatched items that failed
//
// Graph Metrics (pkg/graph):
//   - citegraph_seeds_resolved_total (Counter): Seed DOIs successfully resolved
//   - citegraph_seeds_skipped_total{reason} (Counter): Seed DOIs skipped by reason
//   - citegraph_edges_total (Counter): Citation edges built
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(citegraph_cache_hits_total[5m])) /
//   (sum(rate(citegraph_cache_hits_total[5m])) + sum(rate(citegraph_cache_misses_total[5m])))
//
//   # Backoff Pressure
//   citegraph_backoff_tier > 0
//
//   # Provider Error Rate
//   sum by (provider) (rate(citegraph_errors_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(citegraph_request_duration_seconds_bucket[5m]))
//
//   # Seed Skip Rate
//   sum(rate(citegraph_seeds_skipped_total[5m])) / rate(citegraph_seeds_resolved_total[5m])
