// Package cache provides generic, thread-safe in-process caches.
//
// Two eviction policies are implemented: size-bounded LRU for immutable
// records and TTL expiry for values that go stale against external writers.
// Both always collect statistics and can optionally export them as
// Prometheus metrics through the platform metrics registry:
//
//	records, err := cache.NewLRU[*Record](256,
//		cache.WithMetrics[*Record](registry, "runstore_records"))
//
// TTL caches run a background sweep goroutine scoped to the constructor
// context; call Close (or cancel the context) to stop it.
package cache
