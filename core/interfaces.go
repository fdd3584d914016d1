package core

import (
	"context"
	"iter"
	"time"
)

// KVStore is the ordered key-value store that records are persisted in.
//
// Implementations must be safe for concurrent use.
type KVStore interface {
	// Put stores value under key, overwriting any existing value.
	Put(ctx context.Context, key, value []byte) error

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Scan yields every entry with lower <= key < upper in ascending key
	// order. A nil upper bound means the scan runs to the end of the keyspace.
	// Errors are yielded as the second value; iteration stops after an error.
	Scan(ctx context.Context, lower, upper []byte) iter.Seq2[Entry, error]

	// Close releases the store, flushing any buffered state.
	Close() error
}

// Backend opens a KVStore at a logical location.
type Backend interface {
	Open(ctx context.Context, location string) (KVStore, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, location string) (KVStore, error)

// Open calls f(ctx, location).
func (f BackendFunc) Open(ctx context.Context, location string) (KVStore, error) {
	return f(ctx, location)
}

// Recorder receives operation measurements from a VectorStore.
type Recorder interface {
	ObserveAdd(d time.Duration, records int, err error)
	ObserveDelete(err error)
	ObserveQuery(d time.Duration, scanned int, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAdd(time.Duration, int, error)   {}
func (nopRecorder) ObserveDelete(error)                    {}
func (nopRecorder) ObserveQuery(time.Duration, int, error) {}
