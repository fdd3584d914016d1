package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dshills/smolvec/core"
)

// errStopScan unwinds a read transaction after the consumer stopped iterating.
var errStopScan = errors.New("scan stopped")

// BadgerStore implements core.KVStore using BadgerDB
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore opens a BadgerDB database in dbPath
func NewBadgerStore(dbPath string, cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory {
		// Ensure directory exists
		if err := os.MkdirAll(dbPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dbPath, err)
		}
	} else {
		dbPath = ""
	}

	opts := badger.DefaultOptions(dbPath).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithReadOnly(cfg.ReadOnly).
		WithLogger(badgerLogger{logger: slog.Default().With("component", "badger")})
	if cfg.NumVersionsToKeep > 0 {
		opts = opts.WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	}
	if cfg.MemTableSize > 0 {
		opts = opts.WithMemTableSize(cfg.MemTableSize)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", dbPath, err)
	}

	return &BadgerStore{
		db:   db,
		path: dbPath,
	}, nil
}

// Put stores a value in BadgerDB
func (b *BadgerStore) Put(_ context.Context, key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Get retrieves a value from BadgerDB
func (b *BadgerStore) Get(_ context.Context, key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrNotFound
	}
	return val, err
}

// Delete removes a key from BadgerDB
func (b *BadgerStore) Delete(_ context.Context, key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Scan iterates [lower, upper) inside a single read transaction
func (b *BadgerStore) Scan(ctx context.Context, lower, upper []byte) iter.Seq2[core.Entry, error] {
	return func(yield func(core.Entry, error) bool) {
		err := b.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchSize = 64
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(lower); it.Valid(); it.Next() {
				item := it.Item()
				if upper != nil && bytes.Compare(item.Key(), upper) >= 0 {
					break
				}
				if err := ctx.Err(); err != nil {
					return err
				}

				val, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				if !yield(core.Entry{Key: item.KeyCopy(nil), Value: val}, nil) {
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

// Close closes the BadgerDB database
func (b *BadgerStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// RunGarbageCollection manually triggers BadgerDB value log garbage collection
func (b *BadgerStore) RunGarbageCollection(discardRatio float64) error {
	for {
		err := b.db.RunValueLogGC(discardRatio)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				return nil
			}
			return fmt.Errorf("garbage collection failed: %w", err)
		}
	}
}

// BadgerBackend opens BadgerStores with the given configuration
func BadgerBackend(cfg BadgerConfig) core.Backend {
	return core.BackendFunc(func(_ context.Context, location string) (core.KVStore, error) {
		return NewBadgerStore(location, cfg)
	})
}

// badgerLogger forwards badger's log output to slog, dropping debug chatter.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(f, v...))
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(f, v...))
}

func (l badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(f, v...))
}

func (badgerLogger) Debugf(string, ...interface{}) {}

var _ core.KVStore = (*BadgerStore)(nil)
