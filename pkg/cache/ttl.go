package cache

import (
	"context"
	"sync"
	"time"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
)

// NewTTL creates a cache whose entries expire ttl after they were set. A
// background sweep removes expired entries every sweepInterval; lookups also
// expire entries lazily, so a long interval only delays reclaiming memory,
// never serves stale values. The goroutine stops when ctx is cancelled or
// the cache is closed.
func NewTTL[V any](ctx context.Context, ttl, sweepInterval time.Duration, opts ...Option[V]) (Cache[V], error) {
	if ttl <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "cache", "NewTTL",
			"accept non-positive ttl")
	}
	if sweepInterval <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "cache", "NewTTL",
			"accept non-positive sweep interval")
	}

	o := applyOptions(opts...)
	metrics, err := o.newMetrics()
	if err != nil {
		return nil, errors.WrapTransient(err, "cache", "NewTTL", "register metrics")
	}

	c := &ttlCache[V]{
		ttl:      ttl,
		items:    make(map[string]*ttlEntry[V]),
		stats:    &Statistics{},
		metrics:  metrics,
		evictFn:  o.evictFn,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.sweep(ctx, sweepInterval)
	return c, nil
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *ttlEntry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

type ttlCache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	items   map[string]*ttlEntry[V]
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]

	closeOnce sync.Once
	shutdown  chan struct{}
	done      chan struct{}
}

func (c *ttlCache[V]) Get(key string) (V, bool) {
	var zero V
	now := time.Now()

	c.mu.Lock()
	entry, ok := c.items[key]
	if ok && entry.expired(now) {
		// Expire lazily so a stale value is never served between sweeps.
		delete(c.items, key)
		c.stats.evicted()
		c.stats.resize(len(c.items))
		c.metrics.recordEviction()
		c.metrics.updateSize(len(c.items))
		if c.evictFn != nil {
			value := entry.value
			c.mu.Unlock()
			c.evictFn(key, value)
			c.mu.Lock()
		}
		ok = false
	}
	if !ok {
		c.stats.miss()
		c.metrics.recordMiss()
		c.mu.Unlock()
		return zero, false
	}
	value := entry.value
	c.stats.hit()
	c.metrics.recordHit()
	c.mu.Unlock()
	return value, true
}

func (c *ttlCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	_, existed := c.items[key]
	c.items[key] = &ttlEntry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
	c.stats.set()
	c.stats.resize(len(c.items))
	c.metrics.recordSet()
	c.metrics.updateSize(len(c.items))
	c.mu.Unlock()

	return !existed, nil
}

func (c *ttlCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	entry, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}
	delete(c.items, key)
	c.stats.deleted()
	c.stats.resize(len(c.items))
	c.metrics.recordDelete()
	c.metrics.updateSize(len(c.items))
	c.mu.Unlock()

	if c.evictFn != nil {
		c.evictFn(key, entry.value)
	}
	return true, nil
}

func (c *ttlCache[V]) Clear() error {
	c.mu.Lock()
	old := c.items
	c.items = make(map[string]*ttlEntry[V])
	c.stats.resize(0)
	c.metrics.updateSize(0)
	c.mu.Unlock()

	if c.evictFn != nil {
		for key, entry := range old {
			c.evictFn(key, entry.value)
		}
	}
	return nil
}

func (c *ttlCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys lists the keys of entries that have not expired yet.
func (c *ttlCache[V]) Keys() []string {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for key, entry := range c.items {
		if !entry.expired(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (c *ttlCache[V]) Stats() *Statistics {
	return c.stats
}

// Close stops the sweep goroutine and waits for it to exit.
func (c *ttlCache[V]) Close() error {
	c.closeOnce.Do(func() { close(c.shutdown) })

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		return errors.WrapTransient(errors.ErrConnectionTimeout, "cache", "Close",
			"wait for sweep goroutine")
	}
}

func (c *ttlCache[V]) sweep(ctx context.Context, interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *ttlCache[V]) removeExpired() {
	now := time.Now()
	type expired struct {
		key   string
		value V
	}
	var dropped []expired

	c.mu.Lock()
	for key, entry := range c.items {
		if entry.expired(now) {
			dropped = append(dropped, expired{key: key, value: entry.value})
			delete(c.items, key)
		}
	}
	if len(dropped) > 0 {
		for range dropped {
			c.stats.evicted()
			c.metrics.recordEviction()
		}
		c.stats.resize(len(c.items))
		c.metrics.updateSize(len(c.items))
	}
	c.mu.Unlock()

	if c.evictFn != nil {
		for _, e := range dropped {
			c.evictFn(e.key, e.value)
		}
	}
}
