package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetRoundTrip(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "a/b/data.bin", []byte("hello world")))

	got, err := store.Get(ctx, "a/b/data.bin")
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got)
}

func TestLocalStore_GetMissingKeyReturnsErrNotFound(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_HeadMissingKeyReturnsErrNotFound(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Head(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_HeadReportsSizeAndStableETag(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "f", []byte("0123456789")))

	info1, err := store.Head(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), info1.Size)

	info2, err := store.Head(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, info1.ETag, info2.ETag)
}

func TestLocalStore_GetRangeReadsSubslice(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "f", []byte("0123456789")))

	got, err := store.GetRange(ctx, "f", 2, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte("2345"), got)
}

func TestLocalStore_GetRangeMissingKeyReturnsErrNotFound(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetRange(context.Background(), "missing", 0, 4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_PutCreatesParentDirectories(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "deep/nested/path/data.bin", []byte("x")))

	got, err := store.Get(ctx, "deep/nested/path/data.bin")
	assert.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}
