// Package store provides named response stores with pluggable backends.
//
// A Backend manages a set of named stores. Each store maps a request Key
// (method and normalized URL) to an Entry, an immutable snapshot of a
// response. Stores are opened by name, created on first use, and dropped as
// a whole. One store exists per application generation.
//
// Backends:
//
//   - memory: process-local maps, used by tests and single-process setups
//   - redis: one hash per store plus a set of store names
//   - leveldb: prefixed keys in a single LevelDB database
//   - sqlite: a stores table and an entries table
//
// Every backend commits PutAll atomically. Put writes only into a store that
// is still registered: after Drop, Put through an old Handle fails with
// ErrNotFound while PutAll registers the store again.
//
// # Basic Usage
//
//	backend, err := store.New(ctx, store.Config{Driver: store.DriverRedis, RedisAddr: "localhost:6379"})
//	if err != nil {
//		return err
//	}
//	defer backend.Close()
//
//	// Server-side request URLs are relative; KeyFor resolves them against origin
//	origin, _ := url.Parse("https://app.example.com")
//
//	handle, err := backend.Open(ctx, "v3")
//	if err != nil {
//		return err
//	}
//
//	entry, err := handle.Get(ctx, store.KeyFor(origin, req))
//	if errors.Is(err, store.ErrNotFound) {
//		// Not stored yet
//	}
//
// # Capturing Responses
//
//	entry, err := store.ResponseToEntry(resp, store.TypeBasic)
//	if err != nil {
//		return err
//	}
//	if err := handle.Put(ctx, store.KeyFor(origin, req), entry); err != nil {
//		return err
//	}
//
//	// resp.Body is still readable; entry.Response(req) returns an independent copy
//
// # Metrics
//
//   - offline_cache_store_ops_total{backend, op}
//   - offline_cache_store_errors_total{backend, op}
//   - offline_cache_store_misses_total{backend}
//   - offline_cache_stored_bytes_total{backend}
package store
