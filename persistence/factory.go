package persistence

import (
	"context"
	"fmt"

	"github.com/dshills/smolvec/blobstore"
	"github.com/dshills/smolvec/core"
)

// NewBackend builds the backend described by config
func NewBackend(ctx context.Context, config PersistenceConfig) (core.Backend, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid persistence configuration: %w", err)
	}

	switch config.Type {
	case PersistenceMemory:
		return NewMemoryBackend(), nil
	case PersistenceBolt:
		return BoltBackend(config.Bolt), nil
	case PersistenceBadger:
		return BadgerBackend(config.Badger), nil
	case PersistenceSQLite:
		return SQLiteBackend(config.SQLite), nil
	case PersistencePostgres:
		return PostgresBackend(config.Postgres), nil
	case PersistenceObject:
		blobs, err := NewBlobStore(ctx, config.Object.Blob)
		if err != nil {
			return nil, err
		}
		return ObjectBackend(blobs, config.Object), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", config.Type)
	}
}

// Open builds the backend described by config and opens config.Path with it
func Open(ctx context.Context, config PersistenceConfig) (core.KVStore, error) {
	backend, err := NewBackend(ctx, config)
	if err != nil {
		return nil, err
	}
	return backend.Open(ctx, config.Path)
}

// NewBlobStore creates the blob store described by config
func NewBlobStore(ctx context.Context, config BlobConfig) (blobstore.Store, error) {
	switch config.Type {
	case BlobMemory:
		return blobstore.NewMemoryStore(), nil
	case BlobLocal:
		return blobstore.NewLocalStore(config.Dir)
	case BlobS3:
		client, err := blobstore.NewS3Client(ctx, blobstore.S3Options{
			Region:          config.Region,
			Endpoint:        config.Endpoint,
			AccessKeyID:     config.AccessKeyID,
			SecretAccessKey: config.SecretAccessKey,
			UsePathStyle:    config.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return blobstore.NewS3Store(client, config.Bucket, config.Prefix), nil
	case BlobMinIO:
		client, err := blobstore.NewMinIOClient(blobstore.MinIOOptions{
			Endpoint:        config.Endpoint,
			AccessKeyID:     config.AccessKeyID,
			SecretAccessKey: config.SecretAccessKey,
			Secure:          config.Secure,
			Region:          config.Region,
		})
		if err != nil {
			return nil, err
		}
		return blobstore.NewMinIOStore(client, config.Bucket, config.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported blob store type: %s", config.Type)
	}
}
