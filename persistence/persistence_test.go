package persistence

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/dshills/smolvec/blobstore"
	"github.com/dshills/smolvec/core"
)

func TestBoltStore(t *testing.T) {
	// Create temporary directory for test
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.bolt")

	store, err := NewBoltStore(dbPath, BoltConfig{})
	if err != nil {
		t.Fatalf("Failed to create BoltDB store: %v", err)
	}
	defer store.Close()

	testStoreOperations(t, store)
}

func TestBadgerStore(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir(), BadgerConfig{})
	if err != nil {
		t.Fatalf("Failed to create BadgerDB store: %v", err)
	}
	defer store.Close()

	testStoreOperations(t, store)
}

func TestBadgerStoreInMemory(t *testing.T) {
	store, err := NewBadgerStore("", BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to create in-memory BadgerDB store: %v", err)
	}
	defer store.Close()

	testStoreOperations(t, store)
}

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(context.Background(), dbPath, SQLiteConfig{})
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	defer store.Close()

	testStoreOperations(t, store)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	testStoreOperations(t, store)
}

func TestObjectStore(t *testing.T) {
	store, err := NewObjectStore(context.Background(), blobstore.NewMemoryStore(), "/test/kv", ObjectConfig{})
	if err != nil {
		t.Fatalf("Failed to create object store: %v", err)
	}
	defer store.Close()

	testStoreOperations(t, store)
}

// testStoreOperations runs a comprehensive test suite on any key-value store implementation
func testStoreOperations(t *testing.T, store core.KVStore) {
	ctx := context.Background()

	// Missing keys report ErrNotFound
	if _, err := store.Get(ctx, []byte("vec:missing")); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	// Keys from several namespaces, written out of order
	keys := []string{"vec:b", "a:1", "vec:a", "vec;x", "vec:c", "vec", "z"}
	for _, k := range keys {
		if err := store.Put(ctx, []byte(k), []byte("value-"+k)); err != nil {
			t.Fatalf("Failed to put %s: %v", k, err)
		}
	}

	got, err := store.Get(ctx, []byte("vec:a"))
	if err != nil {
		t.Fatalf("Failed to get key: %v", err)
	}
	if string(got) != "value-vec:a" {
		t.Errorf("Value mismatch: expected %s, got %s", "value-vec:a", got)
	}

	// Overwrite
	if err := store.Put(ctx, []byte("vec:a"), []byte("updated")); err != nil {
		t.Fatalf("Failed to overwrite key: %v", err)
	}
	got, err = store.Get(ctx, []byte("vec:a"))
	if err != nil {
		t.Fatalf("Failed to get overwritten key: %v", err)
	}
	if string(got) != "updated" {
		t.Errorf("Expected overwritten value, got %s", got)
	}

	// Bounded scan returns only the namespace, in ascending order
	prefix := []byte("vec:")
	scanned := collect(t, store, prefix, core.PrefixUpperBound(prefix))
	expected := []string{"vec:a", "vec:b", "vec:c"}
	if fmt.Sprint(scanned) != fmt.Sprint(expected) {
		t.Errorf("Scan mismatch: expected %v, got %v", expected, scanned)
	}

	// Unbounded scan reaches the end of the keyspace
	tail := collect(t, store, []byte("vec;"), nil)
	if fmt.Sprint(tail) != fmt.Sprint([]string{"vec;x", "z"}) {
		t.Errorf("Unbounded scan mismatch: got %v", tail)
	}

	// Early termination must not panic or leak
	for range store.Scan(ctx, nil, nil) {
		break
	}

	// Delete, including a key that does not exist
	if err := store.Delete(ctx, []byte("vec:b")); err != nil {
		t.Fatalf("Failed to delete key: %v", err)
	}
	if err := store.Delete(ctx, []byte("vec:never")); err != nil {
		t.Fatalf("Deleting a missing key should succeed: %v", err)
	}
	if _, err := store.Get(ctx, []byte("vec:b")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	scanned = collect(t, store, prefix, core.PrefixUpperBound(prefix))
	if fmt.Sprint(scanned) != fmt.Sprint([]string{"vec:a", "vec:c"}) {
		t.Errorf("Scan after delete mismatch: got %v", scanned)
	}
}

func collect(t *testing.T, store core.KVStore, lower, upper []byte) []string {
	t.Helper()

	var keys []string
	for entry, err := range store.Scan(context.Background(), lower, upper) {
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if string(entry.Value) == "" {
			t.Errorf("Empty value for key %s", entry.Key)
		}
		keys = append(keys, string(entry.Key))
	}
	return keys
}

func TestMemoryBackendReopen(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	first, err := backend.Open(ctx, "/data")
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	if err := first.Put(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	second, err := backend.Open(ctx, "/data")
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	if _, err := second.Get(ctx, []byte("k")); err != nil {
		t.Errorf("Expected data to survive reopen: %v", err)
	}

	other, err := backend.Open(ctx, "/other")
	if err != nil {
		t.Fatalf("Failed to open other location: %v", err)
	}
	if _, err := other.Get(ctx, []byte("k")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Locations must be isolated, got %v", err)
	}
}

func TestScanContextCancellation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := store.Put(ctx, []byte(fmt.Sprintf("vec:%d", i)), []byte("v")); err != nil {
			t.Fatalf("Failed to put: %v", err)
		}
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	var gotErr error
	for _, err := range store.Scan(cancelled, nil, nil) {
		if err != nil {
			gotErr = err
			break
		}
	}
	if !errors.Is(gotErr, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", gotErr)
	}
}
