package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dshills/smolvec/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  PersistenceConfig
		wantErr bool
	}{
		{"memory", PersistenceConfig{Type: PersistenceMemory}, false},
		{"bolt with path", PersistenceConfig{Type: PersistenceBolt, Path: "x.bolt"}, false},
		{"bolt without path", PersistenceConfig{Type: PersistenceBolt}, true},
		{"sqlite without path", PersistenceConfig{Type: PersistenceSQLite}, true},
		{"badger in memory", PersistenceConfig{Type: PersistenceBadger, Badger: BadgerConfig{InMemory: true}}, false},
		{"badger without path", PersistenceConfig{Type: PersistenceBadger}, true},
		{"postgres without dsn", PersistenceConfig{Type: PersistencePostgres}, true},
		{"postgres with dsn", PersistenceConfig{Type: PersistencePostgres, Postgres: PostgresConfig{DSN: "postgres://localhost/db"}}, false},
		{"object memory", DefaultPersistenceConfig(PersistenceObject, "vectors"), false},
		{"object bad compression", PersistenceConfig{Type: PersistenceObject, Object: ObjectConfig{Compression: "gzip", Blob: BlobConfig{Type: BlobMemory}}}, true},
		{"object local without dir", PersistenceConfig{Type: PersistenceObject, Object: ObjectConfig{Blob: BlobConfig{Type: BlobLocal}}}, true},
		{"object s3 without bucket", PersistenceConfig{Type: PersistenceObject, Object: ObjectConfig{Blob: BlobConfig{Type: BlobS3}}}, true},
		{"object minio without endpoint", PersistenceConfig{Type: PersistenceObject, Object: ObjectConfig{Blob: BlobConfig{Type: BlobMinIO, Bucket: "b"}}}, true},
		{"object unknown blob", PersistenceConfig{Type: PersistenceObject, Object: ObjectConfig{Blob: BlobConfig{Type: "ftp"}}}, true},
		{"unknown type", PersistenceConfig{Type: "rocksdb"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFactoryOpen(t *testing.T) {
	dir := t.TempDir()

	configs := []PersistenceConfig{
		DefaultPersistenceConfig(PersistenceMemory, ""),
		DefaultPersistenceConfig(PersistenceBolt, filepath.Join(dir, "f.bolt")),
		DefaultPersistenceConfig(PersistenceBadger, filepath.Join(dir, "badger")),
		DefaultPersistenceConfig(PersistenceSQLite, filepath.Join(dir, "f.db")),
		{
			Type: PersistenceObject,
			Path: "vectors",
			Object: ObjectConfig{
				Compression: CompressionLZ4,
				Blob:        BlobConfig{Type: BlobLocal, Dir: filepath.Join(dir, "blobs")},
			},
		},
	}

	for _, cfg := range configs {
		t.Run(string(cfg.Type), func(t *testing.T) {
			ctx := context.Background()
			store, err := Open(ctx, cfg)
			require.NoError(t, err)

			require.NoError(t, store.Put(ctx, []byte("vec:a"), []byte("1")))
			val, err := store.Get(ctx, []byte("vec:a"))
			require.NoError(t, err)
			assert.Equal(t, "1", string(val))
			require.NoError(t, store.Close())
		})
	}
}

func TestFactoryRejectsInvalidConfig(t *testing.T) {
	_, err := NewBackend(context.Background(), PersistenceConfig{Type: PersistenceBolt})
	assert.Error(t, err)
}

func TestDurableBackendsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backends := map[string]struct {
		backend  core.Backend
		location string
	}{
		"bolt":   {BoltBackend(BoltConfig{}), filepath.Join(dir, "r.bolt")},
		"badger": {BadgerBackend(BadgerConfig{}), filepath.Join(dir, "r-badger")},
		"sqlite": {SQLiteBackend(SQLiteConfig{}), filepath.Join(dir, "r.db")},
	}

	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			first, err := b.backend.Open(ctx, b.location)
			require.NoError(t, err)
			require.NoError(t, first.Put(ctx, []byte("vec:keep"), []byte("v")))
			require.NoError(t, first.Close())

			second, err := b.backend.Open(ctx, b.location)
			require.NoError(t, err)
			defer second.Close()

			val, err := second.Get(ctx, []byte("vec:keep"))
			require.NoError(t, err)
			assert.Equal(t, "v", string(val))

			_, err = second.Get(ctx, []byte("vec:gone"))
			assert.True(t, errors.Is(err, core.ErrNotFound))
		})
	}
}
