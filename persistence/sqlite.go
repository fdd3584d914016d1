package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/dshills/smolvec/core"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	k BLOB PRIMARY KEY,
	v BLOB NOT NULL
) WITHOUT ROWID`

// SQLiteStore implements core.KVStore on a single SQLite table. BLOB keys
// compare bytewise, which gives the ordering scans rely on.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath
func NewSQLiteStore(ctx context.Context, dbPath string, cfg SQLiteConfig) (*SQLiteStore, error) {
	inMemory := dbPath == ":memory:"
	if !inMemory {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	busyTimeout := cfg.BusyTimeout.Milliseconds()
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", dbPath, busyTimeout)
	if !inMemory {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite at %s: %w", dbPath, err)
	}
	if inMemory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Put upserts a value
func (s *SQLiteStore) Put(ctx context.Context, key, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		key, value)
	return err
}

// Get retrieves a value
func (s *SQLiteStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	var val []byte
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	return val, err
}

// Delete removes a key
func (s *SQLiteStore) Delete(ctx context.Context, key []byte) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key)
	return err
}

// Scan streams rows in [lower, upper) ordered by key
func (s *SQLiteStore) Scan(ctx context.Context, lower, upper []byte) iter.Seq2[core.Entry, error] {
	return func(yield func(core.Entry, error) bool) {
		if lower == nil {
			lower = []byte{}
		}

		var (
			rows *sql.Rows
			err  error
		)
		if upper == nil {
			rows, err = s.db.QueryContext(ctx,
				`SELECT k, v FROM kv WHERE k >= ? ORDER BY k`, lower)
		} else {
			rows, err = s.db.QueryContext(ctx,
				`SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k`, lower, upper)
		}
		if err != nil {
			yield(core.Entry{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var entry core.Entry
			if err := rows.Scan(&entry.Key, &entry.Value); err != nil {
				yield(core.Entry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(core.Entry{}, err)
		}
	}
}

// Close closes the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SQLiteBackend opens SQLiteStores with the given configuration
func SQLiteBackend(cfg SQLiteConfig) core.Backend {
	return core.BackendFunc(func(ctx context.Context, location string) (core.KVStore, error) {
		return NewSQLiteStore(ctx, location, cfg)
	})
}

var _ core.KVStore = (*SQLiteStore)(nil)
