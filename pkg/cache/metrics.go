package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
)

// cacheMetrics mirrors a cache's statistics into Prometheus collectors. All
// record methods are nil-safe so call sites need no metrics-enabled branch.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	sets      prometheus.Counter
	deletes   prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func newCacheMetrics(registry *metric.MetricsRegistry, name string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"cache": name}
	m := &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "hits_total",
			ConstLabels: labels,
			Help:        "Total cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "misses_total",
			ConstLabels: labels,
			Help:        "Total cache misses, expired entries included",
		}),
		sets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "sets_total",
			ConstLabels: labels,
			Help:        "Total cache set operations",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "deletes_total",
			ConstLabels: labels,
			Help:        "Total explicit cache deletions",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "evictions_total",
			ConstLabels: labels,
			Help:        "Total entries evicted by LRU spill or TTL expiry",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of cached entries",
		}),
	}

	if err := registry.RegisterCounter(name, "hits_total", m.hits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "misses_total", m.misses); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "sets_total", m.sets); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "deletes_total", m.deletes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "evictions_total", m.evictions); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(name, "size", m.size); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *cacheMetrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *cacheMetrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *cacheMetrics) recordSet() {
	if m != nil {
		m.sets.Inc()
	}
}

func (m *cacheMetrics) recordDelete() {
	if m != nil {
		m.deletes.Inc()
	}
}

func (m *cacheMetrics) recordEviction() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *cacheMetrics) updateSize(n int) {
	if m != nil {
		m.size.Set(float64(n))
	}
}
