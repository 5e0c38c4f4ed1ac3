package cache

import (
	"container/list"
	"sync"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
)

// NewLRU creates a cache bounded to maxSize entries, evicting the least
// recently used entry when the bound is exceeded. A non-positive size is an
// error: an unbounded "LRU" would never evict and silently grow.
func NewLRU[V any](maxSize int, opts ...Option[V]) (Cache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "cache", "NewLRU",
			"accept non-positive max size")
	}

	o := applyOptions(opts...)
	metrics, err := o.newMetrics()
	if err != nil {
		return nil, errors.WrapTransient(err, "cache", "NewLRU", "register metrics")
	}

	return &lruCache[V]{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		stats:   &Statistics{},
		metrics: metrics,
		evictFn: o.evictFn,
	}, nil
}

type lruEntry[V any] struct {
	key   string
	value V
}

// lruCache keeps a doubly-linked recency list alongside the key map; the
// back of the list is always the next eviction candidate.
type lruCache[V any] struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		c.stats.miss()
		c.metrics.recordMiss()
		var zero V
		return zero, false
	}

	c.order.MoveToFront(element)
	c.stats.hit()
	c.metrics.recordHit()
	return element.Value.(*lruEntry[V]).value, true
}

func (c *lruCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var evicted *lruEntry[V]

	c.mu.Lock()
	if element, ok := c.items[key]; ok {
		element.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(element)
		c.stats.set()
		c.metrics.recordSet()
		c.mu.Unlock()
		return false, nil
	}

	c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})
	if len(c.items) > c.maxSize {
		evicted = c.removeLocked(c.order.Back())
		c.stats.evicted()
		c.metrics.recordEviction()
	}
	c.stats.set()
	c.stats.resize(len(c.items))
	c.metrics.recordSet()
	c.metrics.updateSize(len(c.items))
	c.mu.Unlock()

	if evicted != nil && c.evictFn != nil {
		c.evictFn(evicted.key, evicted.value)
	}
	return true, nil
}

func (c *lruCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}
	removed := c.removeLocked(element)
	c.stats.deleted()
	c.stats.resize(len(c.items))
	c.metrics.recordDelete()
	c.metrics.updateSize(len(c.items))
	c.mu.Unlock()

	if c.evictFn != nil {
		c.evictFn(removed.key, removed.value)
	}
	return true, nil
}

func (c *lruCache[V]) Clear() error {
	c.mu.Lock()
	var dropped []*lruEntry[V]
	if c.evictFn != nil {
		dropped = make([]*lruEntry[V], 0, len(c.items))
		for element := c.order.Front(); element != nil; element = element.Next() {
			dropped = append(dropped, element.Value.(*lruEntry[V]))
		}
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.stats.resize(0)
	c.metrics.updateSize(0)
	c.mu.Unlock()

	for _, entry := range dropped {
		c.evictFn(entry.key, entry.value)
	}
	return nil
}

func (c *lruCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys lists keys most recently used first.
func (c *lruCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*lruEntry[V]).key)
	}
	return keys
}

func (c *lruCache[V]) Stats() *Statistics {
	return c.stats
}

// Close is a no-op: LRU caches run no background goroutines.
func (c *lruCache[V]) Close() error {
	return nil
}

// removeLocked unlinks an element from the list and map and returns its
// entry. Caller holds the lock.
func (c *lruCache[V]) removeLocked(element *list.Element) *lruEntry[V] {
	entry := element.Value.(*lruEntry[V])
	delete(c.items, entry.key)
	c.order.Remove(element)
	return entry
}
