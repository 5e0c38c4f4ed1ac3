package runstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/natsclient"
)

// fakeKV is an in-memory KV. It returns the same sentinel errors the
// real KV store maps to, and counts reads so tests can assert cache hits.
type fakeKV struct {
	mu   sync.Mutex
	data map[string][]byte
	gets map[string]int
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		data: make(map[string][]byte),
		gets: make(map[string]int),
	}
}

func (f *fakeKV) Get(_ context.Context, key string) (*natsclient.KVEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gets[key]++
	value, ok := f.data[key]
	if !ok {
		return nil, natsclient.ErrKVKeyNotFound
	}
	return &natsclient.KVEntry{Key: key, Value: value, Revision: 1}, nil
}

func (f *fakeKV) Create(_ context.Context, key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.data[key]; ok {
		return 0, natsclient.ErrKVKeyExists
	}
	f.data[key] = value
	return 1, nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.data[key]; !ok {
		return natsclient.ErrKVKeyNotFound
	}
	delete(f.data, key)
	return nil
}

func (f *fakeKV) UpdateWithRetry(_ context.Context, key string, updateFn func([]byte) ([]byte, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next, err := updateFn(f.data[key])
	if err != nil {
		return err
	}
	f.data[key] = next
	return nil
}

func (f *fakeKV) Keys(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.data))
	for key := range f.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeKV) getCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[key]
}

func (f *fakeKV) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func newTestStore(t *testing.T, kv KV, maxRuns int) *Store {
	t.Helper()
	store, err := NewStoreWithKV(context.Background(), kv, maxRuns)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_SaveAndGet(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv, 10)
	ctx := context.Background()

	rec := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), 9*time.Millisecond)
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 100.0, got.Result.Performance.Score)

	// Save primed the record cache; Get never touched the bucket.
	assert.Equal(t, 0, kv.getCount(runKey(rec.ID)))
}

func TestStore_GetMissesCacheThenPrimesIt(t *testing.T) {
	kv := newFakeKV()
	ctx := context.Background()

	// Seed the bucket directly so the store's cache starts cold.
	rec := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	kv.data[runKey(rec.ID)] = data

	store := newTestStore(t, kv, 10)

	_, err = store.Get(ctx, rec.ID)
	require.NoError(t, err)
	_, err = store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, kv.getCount(runKey(rec.ID)), "second read must come from cache")
}

func TestStore_SaveDuplicate(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv, 10)
	ctx := context.Background()

	rec := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
	require.NoError(t, store.Save(ctx, rec))

	err := store.Save(ctx, rec)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "already recorded")
}

func TestStore_SaveRejectsInvalidRecord(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv, 10)
	ctx := context.Background()

	rec := NewCompleted("not-a-uuid", "gateway", testRequest(), testResult(), time.Millisecond)
	err := store.Save(ctx, rec)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Empty(t, kv.data, "nothing may reach the bucket")

	err = store.Save(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestStore_ListNewestFirst(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv, 10)
	ctx := context.Background()

	first := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
	second := NewFailed(NewRunID(), "nats", testRequest(), assert.AnError, time.Millisecond)
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, StatusFailed, entries[0].Status)
}

func TestStore_ListEmpty(t *testing.T) {
	store := newTestStore(t, newFakeKV(), 10)

	entries, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ListServedFromCache(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv, 10)
	ctx := context.Background()

	rec := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
	require.NoError(t, store.Save(ctx, rec))

	_, err := store.List(ctx)
	require.NoError(t, err)
	_, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, kv.getCount(indexKey), "second list must come from cache")
}

func TestStore_SaveInvalidatesListCache(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv, 10)
	ctx := context.Background()

	first := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
	require.NoError(t, store.Save(ctx, first))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	second := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
	require.NoError(t, store.Save(ctx, second))

	entries, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2, "save must invalidate the cached index")
	assert.Equal(t, second.ID, entries[0].ID)
}

func TestStore_IndexTrimsAndDeletesSpilledRecords(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv, 2)
	ctx := context.Background()

	oldest := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
	middle := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
	newest := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
	require.NoError(t, store.Save(ctx, oldest))
	require.NoError(t, store.Save(ctx, middle))
	require.NoError(t, store.Save(ctx, newest))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, newest.ID, entries[0].ID)
	assert.Equal(t, middle.ID, entries[1].ID)

	assert.False(t, kv.has(runKey(oldest.ID)), "spilled record must leave the bucket")
	_, err = store.Get(ctx, oldest.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRunNotFound)
}

func TestStore_SaveRecoversCorruptIndex(t *testing.T) {
	kv := newFakeKV()
	kv.data[indexKey] = []byte("{definitely not json")
	store := newTestStore(t, kv, 10)
	ctx := context.Background()

	rec := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
	require.NoError(t, store.Save(ctx, rec))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, rec.ID, entries[0].ID)
}

func TestStore_Delete(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv, 10)
	ctx := context.Background()

	keep := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
	drop := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
	require.NoError(t, store.Save(ctx, keep))
	require.NoError(t, store.Save(ctx, drop))

	require.NoError(t, store.Delete(ctx, drop.ID))

	_, err := store.Get(ctx, drop.ID)
	assert.ErrorIs(t, err, errors.ErrRunNotFound)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, keep.ID, entries[0].ID)

	err = store.Delete(ctx, drop.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRunNotFound)
}

func TestStore_RebuildIndex(t *testing.T) {
	kv := newFakeKV()
	ctx := context.Background()

	// Three records in the bucket, no index: the state after an index loss.
	base := time.Now().Add(-time.Hour)
	ids := make([]string, 3)
	for i := 0; i < 3; i++ {
		rec := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		data, err := json.Marshal(rec)
		require.NoError(t, err)
		kv.data[runKey(rec.ID)] = data
		ids[i] = rec.ID
	}

	store := newTestStore(t, kv, 10)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries, "lost index lists empty before rebuild")

	count, err := store.RebuildIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	entries, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ids[2], entries[0].ID, "rebuilt index is newest first")
	assert.Equal(t, ids[0], entries[2].ID)
}

func TestStore_RebuildIndexHonorsBound(t *testing.T) {
	kv := newFakeKV()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		rec := NewCompleted(NewRunID(), "gateway", testRequest(), testResult(), time.Millisecond)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		data, err := json.Marshal(rec)
		require.NoError(t, err)
		kv.data[runKey(rec.ID)] = data
	}

	store := newTestStore(t, kv, 2)

	count, err := store.RebuildIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Rebuild only rewrites the index; all four records stay.
	keys, err := kv.Keys(ctx)
	require.NoError(t, err)
	records := 0
	for _, key := range keys {
		if key != indexKey {
			records++
		}
	}
	assert.Equal(t, 4, records)
}

func TestStore_GetRequiresID(t *testing.T) {
	store := newTestStore(t, newFakeKV(), 10)

	_, err := store.Get(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
