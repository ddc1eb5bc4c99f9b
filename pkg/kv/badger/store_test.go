package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rouse2617/NimbusStore/pkg/kv"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Dir: t.TempDir(), SyncWrites: false})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerGetPutDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, []byte("missing"))
	assert.Equal(t, kv.ErrNotFound, err)

	require.NoError(t, s.Put(ctx, []byte("k"), []byte("v")))

	got, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(ctx, []byte("k")))
	_, err = s.Get(ctx, []byte("k"))
	assert.Equal(t, kv.ErrNotFound, err)
}

func TestBadgerScanAscending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, k := range []string{"D/b", "D/a", "I/x", "D/c"} {
		require.NoError(t, s.Put(ctx, []byte(k), []byte(k)))
	}

	pairs, err := s.Scan(ctx, []byte("D/"), 0)
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, "D/a", string(pairs[0].Key))
	assert.Equal(t, "D/b", string(pairs[1].Key))
	assert.Equal(t, "D/c", string(pairs[2].Key))

	pairs, err = s.Scan(ctx, []byte("D/"), 1)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "D/a", string(pairs[0].Key))
}

func TestBadgerWriteBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Put(ctx, []byte("stale"), []byte("x")))

	err := s.WriteBatch(ctx, []kv.Op{
		kv.Put([]byte("a"), []byte("1")),
		kv.Delete([]byte("stale")),
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
	_, err = s.Get(ctx, []byte("stale"))
	assert.Equal(t, kv.ErrNotFound, err)
}

func TestBadgerTxn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	txn, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn.Put([]byte("k"), []byte("v")))

	got, err := txn.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, txn.Commit())

	got, err = s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	txn2, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn2.Put([]byte("rolled"), []byte("back")))
	require.NoError(t, txn2.Rollback())

	_, err = s.Get(ctx, []byte("rolled"))
	assert.Equal(t, kv.ErrNotFound, err)
}

func TestBadgerReopenSeesCommitted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(Config{Dir: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, []byte("durable"), []byte("yes")))
	require.NoError(t, s.Close())

	s2, err := Open(Config{Dir: dir, SyncWrites: true})
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, []byte("durable"))
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), got)
}

func TestBadgerClosed(t *testing.T) {
	ctx := context.Background()
	s, err := Open(Config{Dir: t.TempDir(), SyncWrites: false})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Get(ctx, []byte("k"))
	assert.Equal(t, kv.ErrStoreClosed, err)
}
