package persistence

import (
	"bytes"
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/dshills/smolvec/core"
)

// MemoryStore implements an ordered in-memory key-value store (non-persistent).
// Scans work on a sorted snapshot taken when iteration starts, so writes made
// during a scan are not observed by it.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

// Put stores a copy of value under key
func (m *MemoryStore) Put(_ context.Context, key, value []byte) error {
	m.mu.Lock()
	m.data[string(key)] = bytes.Clone(value)
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the value stored under key
func (m *MemoryStore) Get(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	v, ok := m.data[string(key)]
	m.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound
	}
	return bytes.Clone(v), nil
}

// Delete removes key from memory
func (m *MemoryStore) Delete(_ context.Context, key []byte) error {
	m.mu.Lock()
	delete(m.data, string(key))
	m.mu.Unlock()
	return nil
}

// Scan yields entries in [lower, upper) in ascending key order
func (m *MemoryStore) Scan(ctx context.Context, lower, upper []byte) iter.Seq2[core.Entry, error] {
	return func(yield func(core.Entry, error) bool) {
		for _, entry := range m.snapshot(lower, upper) {
			if err := ctx.Err(); err != nil {
				yield(core.Entry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// snapshot copies matching entries under the read lock and sorts them.
func (m *MemoryStore) snapshot(lower, upper []byte) []core.Entry {
	m.mu.RLock()
	entries := make([]core.Entry, 0, len(m.data))
	for k, v := range m.data {
		key := []byte(k)
		if bytes.Compare(key, lower) < 0 {
			continue
		}
		if upper != nil && bytes.Compare(key, upper) >= 0 {
			continue
		}
		entries = append(entries, core.Entry{Key: key, Value: bytes.Clone(v)})
	}
	m.mu.RUnlock()

	slices.SortFunc(entries, func(a, b core.Entry) int {
		return bytes.Compare(a.Key, b.Key)
	})
	return entries
}

// Len returns the number of keys held
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close is a no-op; the data stays available to the backend that created it
func (m *MemoryStore) Close() error {
	return nil
}

// MemoryBackend hands out one MemoryStore per location, so reopening a
// location within the same backend sees previously written data.
type MemoryBackend struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemoryBackend creates an empty memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{stores: make(map[string]*MemoryStore)}
}

// Open returns the store for location, creating it on first use
func (b *MemoryBackend) Open(_ context.Context, location string) (core.KVStore, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	store, ok := b.stores[location]
	if !ok {
		store = NewMemoryStore()
		b.stores[location] = store
	}
	return store, nil
}

var (
	_ core.KVStore = (*MemoryStore)(nil)
	_ core.Backend = (*MemoryBackend)(nil)
)
