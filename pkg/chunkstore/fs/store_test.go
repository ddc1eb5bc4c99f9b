package fs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rouse2617/NimbusStore/pkg/chunkstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{BasePath: t.TempDir()})
	require.NoError(t, err)
	return s
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	data := []byte("chunk payload")
	require.NoError(t, s.Put(ctx, "chunks/5/0", data))

	got, err := s.Get(ctx, "chunks/5/0")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	ok, err := s.Exists(ctx, "chunks/5/0")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "chunks/5/0"))
	_, err = s.Get(ctx, "chunks/5/0")
	assert.Equal(t, chunkstore.ErrNotFound, err)

	// Deleting a missing chunk is fine.
	require.NoError(t, s.Delete(ctx, "chunks/5/0"))
}

func TestGetRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Put(ctx, "k", []byte("0123456789")))

	got, err := s.GetRange(ctx, "k", 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), got)

	// Short read at the chunk's end is not an error.
	got, err = s.GetRange(ctx, "k", 8, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("89"), got)

	// Entirely past the end.
	got, err = s.GetRange(ctx, "k", 50, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, "k", []byte("old contents")))
	require.NoError(t, s.Put(ctx, "k", []byte("new")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestBatchGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Put(ctx, "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "b", []byte("2")))

	results, err := s.BatchGet(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []byte("1"), results[0])
	assert.Equal(t, []byte("2"), results[1])

	_, err = s.BatchGet(ctx, []string{"a", "missing"})
	assert.Error(t, err)
}

func TestInvalidKeyRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	assert.Error(t, s.Put(ctx, "../escape", []byte("x")))
	assert.Error(t, s.Put(ctx, "", []byte("x")))
}

func TestHealthAndCapacity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.HealthCheck(ctx))

	capacity, err := s.GetCapacity(ctx)
	require.NoError(t, err)
	assert.Greater(t, capacity.Total, uint64(0))
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Close())

	assert.Equal(t, chunkstore.ErrStoreClosed, s.Put(ctx, "k", nil))
	_, err := s.Get(ctx, "k")
	assert.Equal(t, chunkstore.ErrStoreClosed, err)
	assert.Equal(t, chunkstore.ErrStoreClosed, s.HealthCheck(ctx))
}
