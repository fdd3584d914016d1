package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore exercises the Store contract shared by every implementation.
func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing/blob")
	assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)

	require.NoError(t, store.Put(ctx, "db/snapshot", []byte("one")))
	require.NoError(t, store.Put(ctx, "db/other", []byte("two")))
	require.NoError(t, store.Put(ctx, "elsewhere", []byte("three")))

	data, err := store.Get(ctx, "db/snapshot")
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	require.NoError(t, store.Put(ctx, "db/snapshot", []byte("replaced")))
	data, err = store.Get(ctx, "db/snapshot")
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(data))

	names, err := store.List(ctx, "db/")
	require.NoError(t, err)
	assert.Equal(t, []string{"db/other", "db/snapshot"}, names)

	require.NoError(t, store.Delete(ctx, "db/other"))
	require.NoError(t, store.Delete(ctx, "db/other"))

	_, err = store.Get(ctx, "db/other")
	assert.True(t, errors.Is(err, ErrNotFound))

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"db/snapshot", "elsewhere"}, names)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	buf := []byte("abc")
	require.NoError(t, store.Put(ctx, "x", buf))
	buf[0] = 'z'

	data, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, store)
}

func TestS3Store(t *testing.T) {
	testStore(t, NewS3Store(newMockS3(), "bucket", ""))
}

func TestS3StorePrefix(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	store := NewS3Store(mock, "bucket", "/root/")

	require.NoError(t, store.Put(ctx, "db/snapshot", []byte("x")))
	_, ok := mock.objects["root/db/snapshot"]
	assert.True(t, ok, "object key should carry the prefix")

	names, err := store.List(ctx, "db/")
	require.NoError(t, err)
	assert.Equal(t, []string{"db/snapshot"}, names)
}

func TestS3StoreNotFoundCodes(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	store := NewS3Store(mock, "bucket", "")

	mock.getErr = errNotFound
	_, err := store.Get(ctx, "a")
	assert.True(t, errors.Is(err, ErrNotFound))

	boom := &apiError{code: "AccessDenied", msg: "access denied"}
	mock.getErr = boom
	_, err = store.Get(ctx, "a")
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.ErrorIs(t, err, boom)
}

func TestS3StorePutError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("throttled")
	store := NewS3Store(mock, "bucket", "")

	err := store.Put(context.Background(), "a", []byte("x"))
	assert.EqualError(t, err, "throttled")
}
