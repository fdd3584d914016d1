package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/smolvec/core"
	"go.etcd.io/bbolt"
)

// recordsBucket holds every key written through a BoltStore
const recordsBucket = "records"

// BoltStore implements core.KVStore using BoltDB
type BoltStore struct {
	db   *bbolt.DB
	path string
}

// NewBoltStore opens (or creates) a BoltDB file at dbPath
func NewBoltStore(dbPath string, cfg BoltConfig) (*BoltStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 1 * time.Second
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout:        timeout,
		NoGrowSync:     cfg.NoGrowSync,
		NoFreelistSync: cfg.NoFreelistSync,
		ReadOnly:       cfg.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB at %s: %w", dbPath, err)
	}

	store := &BoltStore{
		db:   db,
		path: dbPath,
	}

	if !cfg.ReadOnly {
		if err := store.initBucket(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize bucket: %w", err)
		}
	}

	return store, nil
}

// initBucket creates the records bucket if it doesn't exist
func (b *BoltStore) initBucket() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordsBucket))
		return err
	})
}

// Put stores a value in BoltDB
func (b *BoltStore) Put(_ context.Context, key, value []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(recordsBucket)).Put(key, value)
	})
}

// Get retrieves a value from BoltDB
func (b *BoltStore) Get(_ context.Context, key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordsBucket))
		if bucket == nil {
			return core.ErrNotFound
		}
		data := bucket.Get(key)
		if data == nil {
			return core.ErrNotFound
		}
		// Bolt values are only valid for the life of the transaction
		val = bytes.Clone(data)
		return nil
	})
	return val, err
}

// Delete removes a key from BoltDB
func (b *BoltStore) Delete(_ context.Context, key []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(recordsBucket)).Delete(key)
	})
}

// Scan walks a cursor over [lower, upper) inside a read transaction
func (b *BoltStore) Scan(ctx context.Context, lower, upper []byte) iter.Seq2[core.Entry, error] {
	return func(yield func(core.Entry, error) bool) {
		err := b.db.View(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket([]byte(recordsBucket))
			if bucket == nil {
				return nil
			}

			c := bucket.Cursor()
			for k, v := c.Seek(lower); k != nil; k, v = c.Next() {
				if upper != nil && bytes.Compare(k, upper) >= 0 {
					break
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				entry := core.Entry{Key: bytes.Clone(k), Value: bytes.Clone(v)}
				if !yield(entry, nil) {
					return errStopScan
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopScan) {
			yield(core.Entry{}, err)
		}
	}
}

// Close closes the BoltDB database
func (b *BoltStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// BoltBackend opens BoltStores with the given configuration
func BoltBackend(cfg BoltConfig) core.Backend {
	return core.BackendFunc(func(_ context.Context, location string) (core.KVStore, error) {
		return NewBoltStore(location, cfg)
	})
}

var _ core.KVStore = (*BoltStore)(nil)
