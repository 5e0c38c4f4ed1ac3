package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/config"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/natsclient"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/pkg/cache"
)

const (
	// runPrefix namespaces record keys so the index key can share the bucket.
	runPrefix = "run."

	// indexKey holds the JSON run index, newest first, bounded by MaxRuns.
	indexKey = "index"

	// recentKey is the single cache key for the in-process index copy.
	recentKey = "recent"

	defaultMaxRuns         = 200
	defaultRecordCacheSize = 256
	defaultIndexTTL        = 2 * time.Second
)

// KV is the slice of the KV client the store uses. Tests substitute an
// in-memory implementation through NewStoreWithKV.
type KV interface {
	Get(ctx context.Context, key string) (*natsclient.KVEntry, error)
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string) error
	UpdateWithRetry(ctx context.Context, key string, updateFn func(current []byte) ([]byte, error)) error
	Keys(ctx context.Context) ([]string, error)
}

// Store persists simulation run records in a NATS KV bucket. Alongside the
// records it maintains a bounded index of recent runs under one key, so
// listing history is a single read instead of a key scan. Many runs can
// finish at once; index updates go through CAS with retry.
//
// Records handed out by Get are shared with the in-process cache and must
// not be modified.
type Store struct {
	kv      KV
	maxRuns int

	records cache.Cache[*Record]
	index   cache.Cache[[]IndexEntry]
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	recordCacheSize int
	indexTTL        time.Duration
	metrics         *metric.MetricsRegistry
}

// WithRecordCacheSize bounds the in-process cache of run records. Records
// are immutable, so the cache never serves stale data; size is the only
// knob.
func WithRecordCacheSize(n int) Option {
	return func(o *storeOptions) {
		if n > 0 {
			o.recordCacheSize = n
		}
	}
}

// WithIndexCacheTTL sets how long a listed index is served from memory
// before re-reading the bucket. Saves invalidate it immediately, so the TTL
// only bounds staleness against writers on other instruments.
func WithIndexCacheTTL(ttl time.Duration) Option {
	return func(o *storeOptions) {
		if ttl > 0 {
			o.indexTTL = ttl
		}
	}
}

// WithMetrics exports cache hit/miss/eviction counters for the store's
// caches under the runstore component labels.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *storeOptions) {
		o.metrics = registry
	}
}

// NewStore creates or binds the run history bucket and returns a store over
// it. The context also scopes the index cache's cleanup goroutine; cancel
// it or call Close to stop the store.
func NewStore(ctx context.Context, client *natsclient.Client, cfg config.RunStoreConfig, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "RunStore", "New", "require nats client")
	}
	if cfg.Bucket == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "RunStore", "New", "require bucket name")
	}

	history := cfg.History
	if history < 1 {
		history = 1
	}
	if history > 64 {
		history = 64
	}

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "GC simulation run history",
		History:     uint8(history),
		TTL:         cfg.TTL,
		Replicas:    cfg.Replicas,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "RunStore", "New", "create KV bucket")
	}

	return NewStoreWithKV(ctx, client.NewKVStore(bucket), cfg.MaxRuns, opts...)
}

// NewStoreWithKV wires the caches over any KV. Split from NewStore so tests
// and embedders can run against an in-memory KV.
func NewStoreWithKV(ctx context.Context, kv KV, maxRuns int, opts ...Option) (*Store, error) {
	o := storeOptions{
		recordCacheSize: defaultRecordCacheSize,
		indexTTL:        defaultIndexTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if maxRuns < 1 {
		maxRuns = defaultMaxRuns
	}

	var recordOpts []cache.Option[*Record]
	var indexOpts []cache.Option[[]IndexEntry]
	if o.metrics != nil {
		recordOpts = append(recordOpts, cache.WithMetrics[*Record](o.metrics, "runstore_records"))
		indexOpts = append(indexOpts, cache.WithMetrics[[]IndexEntry](o.metrics, "runstore_index"))
	}

	records, err := cache.NewLRU[*Record](o.recordCacheSize, recordOpts...)
	if err != nil {
		return nil, errors.WrapTransient(err, "RunStore", "New", "create record cache")
	}
	index, err := cache.NewTTL[[]IndexEntry](ctx, o.indexTTL, 30*time.Second, indexOpts...)
	if err != nil {
		return nil, errors.WrapTransient(err, "RunStore", "New", "create index cache")
	}

	return &Store{
		kv:      kv,
		maxRuns: maxRuns,
		records: records,
		index:   index,
	}, nil
}

// Save stores a finished run and adds it to the index. Records are created,
// never overwritten; saving the same run ID twice is an error. When the
// index grows past its bound the oldest entries spill out and their records
// are deleted best-effort.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "RunStore", "Save", "require record")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.WrapFatal(err, "RunStore", "Save", "marshal record")
	}

	if _, err := s.kv.Create(ctx, runKey(rec.ID), data); err != nil {
		if natsclient.IsKVConflictError(err) {
			return errors.WrapInvalid(err, "RunStore", "Save",
				fmt.Sprintf("record run %s (already recorded)", rec.ID))
		}
		return errors.WrapTransient(err, "RunStore", "Save", "create run record")
	}

	spilled, err := s.addToIndex(ctx, rec.Summary())
	if err != nil {
		return errors.WrapTransient(err, "RunStore", "Save", "update run index")
	}
	// Spilled records are past the retention bound; failures here leave
	// orphans that the bucket TTL or a later spill cleans up.
	for _, id := range spilled {
		_ = s.kv.Delete(ctx, runKey(id))
		_, _ = s.records.Delete(id)
	}

	_, _ = s.records.Set(rec.ID, rec)
	_, _ = s.index.Delete(recentKey)
	return nil
}

// addToIndex prepends the entry under CAS and trims to maxRuns, returning
// the IDs trimmed off. A lost ack makes the retry see its own write, so an
// entry already present is left alone.
func (s *Store) addToIndex(ctx context.Context, entry IndexEntry) ([]string, error) {
	var spilled []string
	err := s.kv.UpdateWithRetry(ctx, indexKey, func(current []byte) ([]byte, error) {
		spilled = spilled[:0]

		var entries []IndexEntry
		if len(current) > 0 {
			if err := json.Unmarshal(current, &entries); err != nil {
				// A corrupt index must not wedge every save. Start over
				// with this entry; RebuildIndex restores the rest.
				entries = nil
			}
		}

		for _, e := range entries {
			if e.ID == entry.ID {
				return json.Marshal(entries)
			}
		}

		entries = append([]IndexEntry{entry}, entries...)
		if len(entries) > s.maxRuns {
			for _, e := range entries[s.maxRuns:] {
				spilled = append(spilled, e.ID)
			}
			entries = entries[:s.maxRuns]
		}
		return json.Marshal(entries)
	})
	if err != nil {
		return nil, err
	}
	return spilled, nil
}

// Get retrieves a run record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "RunStore", "Get", "require run id")
	}

	if rec, ok := s.records.Get(id); ok {
		return rec, nil
	}

	entry, err := s.kv.Get(ctx, runKey(id))
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, errors.WrapInvalid(errors.ErrRunNotFound, "RunStore", "Get",
				fmt.Sprintf("find run %s", id))
		}
		return nil, errors.WrapTransient(err, "RunStore", "Get", "get run record")
	}

	var rec Record
	if err := json.Unmarshal(entry.Value, &rec); err != nil {
		return nil, errors.WrapFatal(err, "RunStore", "Get", "unmarshal record")
	}

	_, _ = s.records.Set(id, &rec)
	return &rec, nil
}

// List returns the run index, newest first. The result is served from
// memory within the index cache TTL; an instrument that has never saved a
// run lists empty.
func (s *Store) List(ctx context.Context) ([]IndexEntry, error) {
	if entries, ok := s.index.Get(recentKey); ok {
		return entries, nil
	}

	entry, err := s.kv.Get(ctx, indexKey)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return []IndexEntry{}, nil
		}
		return nil, errors.WrapTransient(err, "RunStore", "List", "get run index")
	}

	var entries []IndexEntry
	if err := json.Unmarshal(entry.Value, &entries); err != nil {
		return nil, errors.WrapFatal(err, "RunStore", "List", "unmarshal run index")
	}

	_, _ = s.index.Set(recentKey, entries)
	return entries, nil
}

// Delete removes a run record and its index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "RunStore", "Delete", "require run id")
	}

	if err := s.kv.Delete(ctx, runKey(id)); err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return errors.WrapInvalid(errors.ErrRunNotFound, "RunStore", "Delete",
				fmt.Sprintf("find run %s", id))
		}
		return errors.WrapTransient(err, "RunStore", "Delete", "delete run record")
	}

	err := s.kv.UpdateWithRetry(ctx, indexKey, func(current []byte) ([]byte, error) {
		var entries []IndexEntry
		if len(current) > 0 {
			if err := json.Unmarshal(current, &entries); err != nil {
				entries = nil
			}
		}
		kept := entries[:0]
		for _, e := range entries {
			if e.ID != id {
				kept = append(kept, e)
			}
		}
		return json.Marshal(kept)
	})
	if err != nil {
		return errors.WrapTransient(err, "RunStore", "Delete", "update run index")
	}

	_, _ = s.records.Delete(id)
	_, _ = s.index.Delete(recentKey)
	return nil
}

// RebuildIndex reconstructs the run index by scanning every record in the
// bucket, for recovery after the index key is lost or damaged. It rewrites
// the index outright and never deletes records. Returns the number of runs
// indexed.
func (s *Store) RebuildIndex(ctx context.Context) (int, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return 0, errors.WrapTransient(err, "RunStore", "RebuildIndex", "list bucket keys")
	}

	entries := make([]IndexEntry, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, runPrefix) {
			continue
		}
		kvEntry, err := s.kv.Get(ctx, key)
		if err != nil {
			if natsclient.IsKVNotFoundError(err) {
				continue
			}
			return 0, errors.WrapTransient(err, "RunStore", "RebuildIndex",
				fmt.Sprintf("get record %s", key))
		}
		var rec Record
		if err := json.Unmarshal(kvEntry.Value, &rec); err != nil {
			// Skip undecodable records instead of failing the recovery.
			continue
		}
		entries = append(entries, rec.Summary())
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > s.maxRuns {
		entries = entries[:s.maxRuns]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return 0, errors.WrapFatal(err, "RunStore", "RebuildIndex", "marshal run index")
	}
	err = s.kv.UpdateWithRetry(ctx, indexKey, func([]byte) ([]byte, error) {
		return data, nil
	})
	if err != nil {
		return 0, errors.WrapTransient(err, "RunStore", "RebuildIndex", "write run index")
	}

	_, _ = s.index.Delete(recentKey)
	return len(entries), nil
}

// Close releases the store's caches. The KV bucket belongs to the NATS
// client and stays open.
func (s *Store) Close() error {
	if err := s.records.Close(); err != nil {
		return errors.WrapTransient(err, "RunStore", "Close", "close record cache")
	}
	if err := s.index.Close(); err != nil {
		return errors.WrapTransient(err, "RunStore", "Close", "close index cache")
	}
	return nil
}

func runKey(id string) string {
	return runPrefix + id
}
