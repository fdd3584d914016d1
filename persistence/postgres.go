package persistence

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/dshills/smolvec/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS smolvec_kv (
	space TEXT  NOT NULL,
	k     BYTEA NOT NULL,
	v     BYTEA NOT NULL,
	PRIMARY KEY (space, k)
)`

// PostgresStore implements core.KVStore on a PostgreSQL table. The location
// passed to Open selects a key space, so several stores can share a table.
// BYTEA comparison is bytewise, matching the ordering of the other backends.
type PostgresStore struct {
	pool  *pgxpool.Pool
	space string
}

// NewPostgresStore connects to PostgreSQL and prepares the key space
func NewPostgresStore(ctx context.Context, space string, cfg PostgresConfig) (*PostgresStore, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if cfg.MigrateOnStart {
		if _, err := pool.Exec(ctx, postgresSchema); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return &PostgresStore{pool: pool, space: space}, nil
}

// Put upserts a value
func (p *PostgresStore) Put(ctx context.Context, key, value []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO smolvec_kv (space, k, v) VALUES ($1, $2, $3)
		ON CONFLICT (space, k) DO UPDATE SET v = EXCLUDED.v
	`, p.space, key, value)
	return err
}

// Get retrieves a value
func (p *PostgresStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	var val []byte
	err := p.pool.QueryRow(ctx,
		`SELECT v FROM smolvec_kv WHERE space = $1 AND k = $2`, p.space, key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	return val, err
}

// Delete removes a key
func (p *PostgresStore) Delete(ctx context.Context, key []byte) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM smolvec_kv WHERE space = $1 AND k = $2`, p.space, key)
	return err
}

// Scan streams rows in [lower, upper) ordered by key
func (p *PostgresStore) Scan(ctx context.Context, lower, upper []byte) iter.Seq2[core.Entry, error] {
	return func(yield func(core.Entry, error) bool) {
		if lower == nil {
			lower = []byte{}
		}

		var (
			rows pgx.Rows
			err  error
		)
		if upper == nil {
			rows, err = p.pool.Query(ctx, `
				SELECT k, v FROM smolvec_kv
				WHERE space = $1 AND k >= $2
				ORDER BY k
			`, p.space, lower)
		} else {
			rows, err = p.pool.Query(ctx, `
				SELECT k, v FROM smolvec_kv
				WHERE space = $1 AND k >= $2 AND k < $3
				ORDER BY k
			`, p.space, lower, upper)
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

// Close closes the connection pool
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// PostgresBackend opens PostgresStores with the given configuration. The
// location names the key space.
func PostgresBackend(cfg PostgresConfig) core.Backend {
	return core.BackendFunc(func(ctx context.Context, location string) (core.KVStore, error) {
		return NewPostgresStore(ctx, location, cfg)
	})
}

var _ core.KVStore = (*PostgresStore)(nil)
