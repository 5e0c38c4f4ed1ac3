package cache

import (
	"sync/atomic"
)

// Statistics tracks cache activity. All counters are monotonic except the
// size gauge. Statistics are always collected; Prometheus export is the
// optional layer on top.
type Statistics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
	size      atomic.Int64
}

func (s *Statistics) hit()      { s.hits.Add(1) }
func (s *Statistics) miss()     { s.misses.Add(1) }
func (s *Statistics) set()      { s.sets.Add(1) }
func (s *Statistics) deleted()  { s.deletes.Add(1) }
func (s *Statistics) evicted()  { s.evictions.Add(1) }
func (s *Statistics) resize(n int) { s.size.Store(int64(n)) }

// Hits returns the number of successful lookups.
func (s *Statistics) Hits() int64 { return s.hits.Load() }

// Misses returns the number of failed lookups, expired entries included.
func (s *Statistics) Misses() int64 { return s.misses.Load() }

// Sets returns the number of Set calls that stored a value.
func (s *Statistics) Sets() int64 { return s.sets.Load() }

// Deletes returns the number of explicit deletions.
func (s *Statistics) Deletes() int64 { return s.deletes.Load() }

// Evictions returns the number of entries removed by policy (LRU spill or
// TTL expiry) rather than by Delete.
func (s *Statistics) Evictions() int64 { return s.evictions.Load() }

// CurrentSize returns the entry count as of the last mutation.
func (s *Statistics) CurrentSize() int64 { return s.size.Load() }

// HitRatio returns hits over total lookups, zero when nothing was looked up.
func (s *Statistics) HitRatio() float64 {
	hits := s.hits.Load()
	total := hits + s.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
