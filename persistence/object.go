package persistence

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dshills/smolvec/blobstore"
	"github.com/dshills/smolvec/core"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Snapshot compression algorithms
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

const (
	snapshotMagic   = "SVKV"
	snapshotVersion = 1
	snapshotBlob    = "snapshot"
)

var compressionCodes = map[string]byte{
	CompressionNone: 0,
	CompressionZstd: 1,
	CompressionLZ4:  2,
}

// ObjectStore is a key-value engine whose durable state lives in a blob
// store. The full keyspace is held in memory; Flush and Close write it back
// as a single compressed snapshot blob named "<location>/snapshot".
type ObjectStore struct {
	mem         *MemoryStore
	blobs       blobstore.Store
	name        string
	compression string

	flushMu sync.Mutex
	dirty   atomic.Bool
}

// NewObjectStore loads the snapshot for location from blobs, or starts
// empty if there is none.
func NewObjectStore(ctx context.Context, blobs blobstore.Store, location string, cfg ObjectConfig) (*ObjectStore, error) {
	compression := cfg.Compression
	if compression == "" {
		compression = CompressionZstd
	}
	if _, ok := compressionCodes[compression]; !ok {
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}

	o := &ObjectStore{
		mem:         NewMemoryStore(),
		blobs:       blobs,
		name:        path.Join(strings.TrimPrefix(location, "/"), snapshotBlob),
		compression: compression,
	}

	data, err := blobs.Get(ctx, o.name)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		return o, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read snapshot %s: %w", o.name, err)
	}

	if err := decodeSnapshot(data, func(key, value []byte) {
		o.mem.data[string(key)] = value
	}); err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", o.name, err)
	}
	return o, nil
}

// Put stores a value in memory; it becomes durable on the next Flush
func (o *ObjectStore) Put(ctx context.Context, key, value []byte) error {
	if err := o.mem.Put(ctx, key, value); err != nil {
		return err
	}
	o.dirty.Store(true)
	return nil
}

// Get retrieves a value
func (o *ObjectStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	return o.mem.Get(ctx, key)
}

// Delete removes a key; it becomes durable on the next Flush
func (o *ObjectStore) Delete(ctx context.Context, key []byte) error {
	if err := o.mem.Delete(ctx, key); err != nil {
		return err
	}
	o.dirty.Store(true)
	return nil
}

// Scan yields entries in [lower, upper) in ascending key order
func (o *ObjectStore) Scan(ctx context.Context, lower, upper []byte) iter.Seq2[core.Entry, error] {
	return o.mem.Scan(ctx, lower, upper)
}

// Flush writes the snapshot blob if anything changed since the last flush
func (o *ObjectStore) Flush(ctx context.Context) error {
	o.flushMu.Lock()
	defer o.flushMu.Unlock()

	if !o.dirty.Swap(false) {
		return nil
	}

	data, err := encodeSnapshot(o.mem.snapshot(nil, nil), o.compression)
	if err != nil {
		o.dirty.Store(true)
		return err
	}
	if err := o.blobs.Put(ctx, o.name, data); err != nil {
		o.dirty.Store(true)
		return fmt.Errorf("failed to write snapshot %s: %w", o.name, err)
	}
	return nil
}

// Close flushes pending changes
func (o *ObjectStore) Close() error {
	return o.Flush(context.Background())
}

// ObjectBackend opens ObjectStores persisted into blobs
func ObjectBackend(blobs blobstore.Store, cfg ObjectConfig) core.Backend {
	return core.BackendFunc(func(ctx context.Context, location string) (core.KVStore, error) {
		return NewObjectStore(ctx, blobs, location, cfg)
	})
}

// encodeSnapshot lays out magic, version, compression code and then the
// compressed body of uvarint length-prefixed key/value pairs.
func encodeSnapshot(entries []core.Entry, compression string) ([]byte, error) {
	var body []byte
	body = binary.AppendUvarint(body, uint64(len(entries)))
	for _, e := range entries {
		body = binary.AppendUvarint(body, uint64(len(e.Key)))
		body = append(body, e.Key...)
		body = binary.AppendUvarint(body, uint64(len(e.Value)))
		body = append(body, e.Value...)
	}

	compressed, err := compress(body, compression)
	if err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}

	out := make([]byte, 0, len(snapshotMagic)+2+len(compressed))
	out = append(out, snapshotMagic...)
	out = append(out, snapshotVersion, compressionCodes[compression])
	return append(out, compressed...), nil
}

func decodeSnapshot(data []byte, fn func(key, value []byte)) error {
	header := len(snapshotMagic) + 2
	if len(data) < header || string(data[:len(snapshotMagic)]) != snapshotMagic {
		return errors.New("not a snapshot")
	}
	if v := data[len(snapshotMagic)]; v != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", v)
	}

	body, err := decompress(data[header:], data[len(snapshotMagic)+1])
	if err != nil {
		return fmt.Errorf("failed to decompress snapshot: %w", err)
	}

	count, n := binary.Uvarint(body)
	if n <= 0 {
		return errors.New("corrupt snapshot header")
	}
	body = body[n:]

	for i := uint64(0); i < count; i++ {
		var key, value []byte
		if key, body, err = readChunk(body); err != nil {
			return err
		}
		if value, body, err = readChunk(body); err != nil {
			return err
		}
		fn(key, value)
	}
	return nil
}

func readChunk(buf []byte) (chunk, rest []byte, err error) {
	size, n := binary.Uvarint(buf)
	if n <= 0 || uint64(len(buf)-n) < size {
		return nil, nil, errors.New("corrupt snapshot entry")
	}
	end := n + int(size)
	return bytes.Clone(buf[n:end]), buf[end:], nil
}

func compress(body []byte, compression string) ([]byte, error) {
	switch compression {
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(body, nil), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return body, nil
	}
}

func decompress(data []byte, code byte) ([]byte, error) {
	switch code {
	case compressionCodes[CompressionNone]:
		return data, nil
	case compressionCodes[CompressionZstd]:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	case compressionCodes[CompressionLZ4]:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("unknown compression code %d", code)
	}
}

var _ core.KVStore = (*ObjectStore)(nil)
