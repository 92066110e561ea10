package store

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOps tracks storage operations by backend and operation
	StoreOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_store_ops_total",
			Help: "Total number of store operations",
		},
		[]string{"backend", "op"}, // "get", "put", "put_all", "keys", "open", "names", "drop"
	)

	// StoreErrors tracks failed storage operations
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_store_errors_total",
			Help: "Total number of failed store operations",
		},
		[]string{"backend", "op"},
	)

	// StoreMisses tracks lookups of absent keys
	StoreMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_store_misses_total",
			Help: "Total number of store lookups that found no entry",
		},
		[]string{"backend"},
	)

	// StoredBytes tracks bytes written to stores
	StoredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_stored_bytes_total",
			Help: "Total number of encoded entry bytes written",
		},
		[]string{"backend"},
	)
)

func observe(backend, op string, err error) {
	StoreOps.WithLabelValues(backend, op).Inc()
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		StoreMisses.WithLabelValues(backend).Inc()
	default:
		StoreErrors.WithLabelValues(backend, op).Inc()
	}
}
