package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rouse2617/NimbusStore/pkg/kv"
)

func TestGetPutDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, []byte("missing"))
	assert.Equal(t, kv.ErrNotFound, err)

	require.NoError(t, s.Put(ctx, []byte("k"), []byte("v")))

	got, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := s.Exists(ctx, []byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, []byte("k")))
	_, err = s.Get(ctx, []byte("k"))
	assert.Equal(t, kv.ErrNotFound, err)

	// Deleting again is fine.
	require.NoError(t, s.Delete(ctx, []byte("k")))
}

func TestScanOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, k := range []string{"p/c", "p/a", "q/x", "p/b"} {
		require.NoError(t, s.Put(ctx, []byte(k), []byte(k)))
	}

	pairs, err := s.Scan(ctx, []byte("p/"), 0)
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, "p/a", string(pairs[0].Key))
	assert.Equal(t, "p/b", string(pairs[1].Key))
	assert.Equal(t, "p/c", string(pairs[2].Key))

	pairs, err = s.Scan(ctx, []byte("p/"), 2)
	require.NoError(t, err)
	assert.Len(t, pairs, 2)

	pairs, err = s.Scan(ctx, []byte("zz"), 0)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestWriteBatchAtomicVisibility(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Put(ctx, []byte("old"), []byte("x")))

	err := s.WriteBatch(ctx, []kv.Op{
		kv.Put([]byte("a"), []byte("1")),
		kv.Put([]byte("b"), []byte("2")),
		kv.Delete([]byte("old")),
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, []byte("old"))
	assert.Equal(t, kv.ErrNotFound, err)
	got, err := s.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
}

func TestTxnCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	s := New()

	txn, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn.Put([]byte("k"), []byte("v")))

	// Uncommitted writes are visible inside the transaction only.
	got, err := txn.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	_, err = s.Get(ctx, []byte("k"))
	assert.Equal(t, kv.ErrNotFound, err)

	require.NoError(t, txn.Commit())
	got, err = s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	// Rolled-back writes never land.
	txn2, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn2.Put([]byte("gone"), []byte("x")))
	require.NoError(t, txn2.Rollback())
	_, err = s.Get(ctx, []byte("gone"))
	assert.Equal(t, kv.ErrNotFound, err)

	// A finished transaction refuses further use.
	assert.Equal(t, kv.ErrTxnDone, txn2.Commit())
}

func TestTxnDeleteShadowsStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Put(ctx, []byte("k"), []byte("v")))

	txn, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn.Delete([]byte("k")))

	_, err = txn.Get([]byte("k"))
	assert.Equal(t, kv.ErrNotFound, err)

	require.NoError(t, txn.Commit())
	_, err = s.Get(ctx, []byte("k"))
	assert.Equal(t, kv.ErrNotFound, err)
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	_, err := s.Get(ctx, []byte("k"))
	assert.Equal(t, kv.ErrStoreClosed, err)
	assert.Equal(t, kv.ErrStoreClosed, s.Put(ctx, []byte("k"), nil))
}

func TestContextCancellation(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, []byte("k"))
	assert.Error(t, err)
}
