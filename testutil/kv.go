package testutil

import (
	"context"
	"sync"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/natsclient"
)

// MemKV is an in-memory key-value bucket with per-key revisions. It
// satisfies the run store's KV interface without touching JetStream, so
// store-backed tests run hermetically.
type MemKV struct {
	mu       sync.Mutex
	data     map[string][]byte
	revision map[string]uint64
}

// NewMemKV returns an empty bucket.
func NewMemKV() *MemKV {
	return &MemKV{
		data:     make(map[string][]byte),
		revision: make(map[string]uint64),
	}
}

// Get returns the entry for key, or natsclient.ErrKVKeyNotFound.
func (m *MemKV) Get(_ context.Context, key string) (*natsclient.KVEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.data[key]
	if !ok {
		return nil, natsclient.ErrKVKeyNotFound
	}
	return &natsclient.KVEntry{Key: key, Value: value, Revision: m.revision[key]}, nil
}

// Create stores a new key, or returns natsclient.ErrKVKeyExists.
func (m *MemKV) Create(_ context.Context, key string, value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; ok {
		return 0, natsclient.ErrKVKeyExists
	}
	m.data[key] = value
	m.revision[key] = 1
	return 1, nil
}

// Delete removes a key. Deleting a missing key is not an error, matching
// JetStream semantics.
func (m *MemKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.revision, key)
	return nil
}

// UpdateWithRetry applies updateFn to the current value under the bucket
// lock. The in-memory bucket has no concurrent writers to race against, so
// the first attempt always wins.
func (m *MemKV) UpdateWithRetry(_ context.Context, key string, updateFn func(current []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := updateFn(m.data[key])
	if err != nil {
		return err
	}
	m.data[key] = next
	m.revision[key]++
	return nil
}

// Keys lists every key in the bucket.
func (m *MemKV) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys, nil
}

// Has reports whether key is present.
func (m *MemKV) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// Len returns the number of stored keys.
func (m *MemKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
