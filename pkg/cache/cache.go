package cache

import (
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
)

// Cache is the contract every cache implementation satisfies. Values are
// keyed by non-empty strings; the zero value of V is returned on a miss.
type Cache[V any] interface {
	// Get retrieves a value by key.
	Get(key string) (V, bool)

	// Set stores a value under key, reporting whether a new entry was
	// created (false means an existing entry was updated).
	Set(key string, value V) (bool, error)

	// Delete removes an entry, reporting whether the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of entries.
	Size() int

	// Keys returns the keys currently held. Ordering is policy-specific:
	// LRU caches list most recently used first.
	Keys() []string

	// Stats returns the cache's always-on statistics.
	Stats() *Statistics

	// Close releases cache resources, stopping any background goroutines.
	Close() error
}

// EvictCallback is invoked with the key and value of every entry the cache
// evicts or deletes. Callbacks run outside the cache lock.
type EvictCallback[V any] func(key string, value V)

// validateKey rejects keys the cache cannot hold.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "accept empty key")
	}
	return nil
}
