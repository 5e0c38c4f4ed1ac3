package cache

import (
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
)

// Option configures a cache at construction time.
type Option[V any] func(*cacheOptions[V])

type cacheOptions[V any] struct {
	metricsReg *metric.MetricsRegistry
	metricsID  string
	evictFn    EvictCallback[V]
}

// WithMetrics exports the cache's hit/miss/set/delete/eviction counters and
// size gauge as Prometheus metrics, labeled with the given cache name. A nil
// registry or empty name leaves metrics off.
func WithMetrics[V any](registry *metric.MetricsRegistry, name string) Option[V] {
	return func(o *cacheOptions[V]) {
		if registry != nil && name != "" {
			o.metricsReg = registry
			o.metricsID = name
		}
	}
}

// WithEvictionCallback registers a callback invoked for every evicted or
// deleted entry.
func WithEvictionCallback[V any](fn EvictCallback[V]) Option[V] {
	return func(o *cacheOptions[V]) {
		o.evictFn = fn
	}
}

func applyOptions[V any](opts ...Option[V]) *cacheOptions[V] {
	o := &cacheOptions[V]{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// newMetrics registers the optional Prometheus collectors for a cache.
func (o *cacheOptions[V]) newMetrics() (*cacheMetrics, error) {
	if o.metricsReg == nil {
		return nil, nil
	}
	return newCacheMetrics(o.metricsReg, o.metricsID)
}
