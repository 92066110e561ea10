// Package metrics exposes the Prometheus metrics of the offline cache.
// All metrics are defined in their respective packages (store, fetch,
// precache, router, lifecycle) and registered via promauto.
//
// This package provides the HTTP handler and documentation for all metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the offline cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves all registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Store Metrics (pkg/store):
//   - offline_cache_store_ops_total{backend, op} (Counter): Store operations by backend
//   - offline_cache_store_errors_total{backend, op} (Counter): Failed store operations
//   - offline_cache_store_misses_total{backend} (Counter): Lookups that found no entry
//   - offline_cache_stored_bytes_total{backend} (Counter): Encoded entry bytes written
//
// Fetch Metrics (pkg/fetch):
//   - offline_cache_fetch_requests_total{status} (Counter): Network fetches by status or error class
//   - offline_cache_fetch_duration_seconds (Histogram): Network fetch duration
//   - offline_cache_fetch_retries_total{error_class} (Counter): Retry attempts
//   - offline_cache_fetch_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - offline_cache_fetch_retry_exhausted_total{error_class} (Counter): Fetches that exhausted retries
//
// Precache Metrics (pkg/precache):
//   - offline_cache_precache_assets_total{result} (Counter): Manifest assets fetched, by result
//   - offline_cache_precache_duration_seconds (Histogram): Duration of a complete populate
//
// Router Metrics (pkg/router):
//   - offline_cache_route_total{category, source} (Counter): Routed requests
//   - offline_cache_route_failures_total{category} (Counter): Requests that produced no response
//   - offline_cache_writeback_errors_total (Counter): Failed write-backs into the store
//
// Lifecycle Metrics (pkg/lifecycle):
//   - offline_cache_generation_state{generation, state} (Gauge): 1 for the current state
//   - offline_cache_install_attempts_total{result} (Counter): Install attempts
//   - offline_cache_reaped_stores_total{result} (Counter): Stale stores deleted or failed
//
// Example Prometheus Queries:
//
//   # Offline fallback rate
//   sum(rate(offline_cache_route_total{source="fallback"}[5m])) /
//   sum(rate(offline_cache_route_total{category="navigation"}[5m]))
//
//   # Cache hit rate for subresources
//   sum(rate(offline_cache_route_total{category="subordinate",source="cache"}[5m])) /
//   sum(rate(offline_cache_route_total{category="subordinate"}[5m]))
//
//   # Active generation
//   offline_cache_generation_state{state="active"} == 1
//
//   # P95 fetch latency
//   histogram_quantile(0.95, rate(offline_cache_fetch_duration_seconds_bucket[5m]))
