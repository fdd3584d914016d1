package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// VectorStore persists vector records in an ordered key-value store and
// answers exact nearest-neighbour queries by scanning every record.
//
// A VectorStore is safe for concurrent use. Each query owns its scan and
// selection state; consistency between concurrent writes and queries is
// whatever the underlying KVStore provides.
type VectorStore struct {
	kv               KVStore
	codec            Codec
	logger           *slog.Logger
	recorder         Recorder
	batchConcurrency int
	closed           atomic.Bool
}

// NewVectorStore creates a vector store over an already opened KVStore.
func NewVectorStore(kv KVStore, opts ...Option) *VectorStore {
	s := &VectorStore{
		kv:               kv,
		codec:            JSONCodec{},
		logger:           slog.Default(),
		recorder:         nopRecorder{},
		batchConcurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens the key-value store at location through backend and returns a
// vector store on top of it.
func Open(ctx context.Context, location string, backend Backend, opts ...Option) (*VectorStore, error) {
	kv, err := backend.Open(ctx, location)
	if err != nil {
		return nil, &StorageError{Op: "open", Key: location, Err: err}
	}
	return NewVectorStore(kv, opts...), nil
}

// Add stores a record under id, replacing any record with the same id.
func (s *VectorStore) Add(ctx context.Context, id string, vector []float32, metadata json.RawMessage) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	defer func() { s.recorder.ObserveAdd(time.Since(start), 1, err) }()

	if err := s.put(ctx, &VectorRecord{ID: id, Vector: vector, Metadata: metadata}); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "vector added", "id", id, "dimension", len(vector))
	return nil
}

// AddBatch stores several records with bounded concurrency. The first failure
// cancels the remaining writes; records already written stay written.
func (s *VectorStore) AddBatch(ctx context.Context, records []VectorRecord) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	defer func() { s.recorder.ObserveAdd(time.Since(start), len(records), err) }()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i := range records {
		rec := &records[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return s.put(gctx, rec)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "vector batch added", "count", len(records))
	return nil
}

func (s *VectorStore) put(ctx context.Context, rec *VectorRecord) error {
	if rec.ID == "" {
		return ErrEmptyID
	}
	if len(rec.Metadata) > 0 && !json.Valid(rec.Metadata) {
		return &EncodingError{ID: rec.ID, Err: ErrInvalidMetadata}
	}

	data, err := s.codec.Marshal(rec)
	if err != nil {
		return &EncodingError{ID: rec.ID, Err: err}
	}

	if err := s.kv.Put(ctx, vectorKey(rec.ID), data); err != nil {
		return &StorageError{Op: "put", Key: rec.ID, Err: err}
	}
	return nil
}

// Get returns the record stored under id, or ErrNotFound.
func (s *VectorStore) Get(ctx context.Context, id string) (VectorRecord, error) {
	if s.closed.Load() {
		return VectorRecord{}, ErrClosed
	}

	key := vectorKey(id)
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return VectorRecord{}, fmt.Errorf("vector %s: %w", id, ErrNotFound)
		}
		return VectorRecord{}, &StorageError{Op: "get", Key: id, Err: err}
	}

	var rec VectorRecord
	if err := s.codec.Unmarshal(data, &rec); err != nil {
		return VectorRecord{}, &DecodingError{Key: string(key), Err: err}
	}
	return rec, nil
}

// Delete removes the record stored under id. Deleting an unknown id is not
// an error.
func (s *VectorStore) Delete(ctx context.Context, id string) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	defer func() { s.recorder.ObserveDelete(err) }()

	if err := s.kv.Delete(ctx, vectorKey(id)); err != nil {
		return &StorageError{Op: "delete", Key: id, Err: err}
	}

	s.logger.DebugContext(ctx, "vector deleted", "id", id)
	return nil
}

// Query returns the k records most similar to query by cosine similarity,
// ordered by descending score. Every record in the namespace is visited; a
// record that fails to decode aborts the query. Ties are broken arbitrarily.
func (s *VectorStore) Query(ctx context.Context, query []float32, k int) (results []QueryResult, err error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()
	scanned := 0
	defer func() { s.recorder.ObserveQuery(time.Since(start), scanned, err) }()

	lower := []byte(VectorKeyPrefix)
	selection := newTopK(k)

	for entry, scanErr := range s.kv.Scan(ctx, lower, PrefixUpperBound(lower)) {
		if scanErr != nil {
			return nil, &StorageError{Op: "scan", Err: scanErr}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var rec VectorRecord
		if err := s.codec.Unmarshal(entry.Value, &rec); err != nil {
			return nil, &DecodingError{Key: string(entry.Key), Err: err}
		}
		scanned++

		selection.offer(scoredItem{
			score:    CosineSimilarity(query, rec.Vector),
			id:       rec.ID,
			metadata: rec.Metadata,
		})
	}

	results = selection.results()
	s.logger.DebugContext(ctx, "query completed",
		"k", k,
		"scanned", scanned,
		"returned", len(results),
		"duration", time.Since(start))
	return results, nil
}

// Count returns the number of records in the vector namespace.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	lower := []byte(VectorKeyPrefix)
	count := 0
	for _, err := range s.kv.Scan(ctx, lower, PrefixUpperBound(lower)) {
		if err != nil {
			return 0, &StorageError{Op: "scan", Err: err}
		}
		count++
	}
	return count, nil
}

// Close releases the underlying store. The store cannot be used afterwards;
// calling Close again returns ErrClosed.
func (s *VectorStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := s.kv.Close(); err != nil {
		return &StorageError{Op: "close", Err: err}
	}
	return nil
}
