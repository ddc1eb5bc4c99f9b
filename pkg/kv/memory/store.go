// Package memory provides an in-memory implementation of the ordered
// kv.Store contract. It exists so unit tests and small tools can run
// without a Badger directory; semantics mirror the Badger store, minus
// durability.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/rouse2617/NimbusStore/pkg/kv"
)

// Store is a mutex-guarded in-memory kv.Store.
type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get returns the value stored under key, or kv.ErrNotFound.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, kv.ErrStoreClosed
	}

	value, ok := s.data[string(key)]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Put stores value under key.
func (s *Store) Put(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kv.ErrStoreClosed
	}

	s.data[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kv.ErrStoreClosed
	}

	delete(s.data, string(key))
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, kv.ErrStoreClosed
	}

	_, ok := s.data[string(key)]
	return ok, nil
}

// Scan returns up to limit pairs whose keys start with prefix, in strictly
// ascending key order.
func (s *Store) Scan(ctx context.Context, prefix []byte, limit int) ([]kv.Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, kv.ErrStoreClosed
	}

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	pairs := make([]kv.Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, kv.Pair{
			Key:   []byte(k),
			Value: append([]byte(nil), s.data[k]...),
		})
	}
	return pairs, nil
}

// WriteBatch applies ops atomically under the store lock.
func (s *Store) WriteBatch(ctx context.Context, ops []kv.Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kv.ErrStoreClosed
	}

	s.applyLocked(ops)
	return nil
}

func (s *Store) applyLocked(ops []kv.Op) {
	for _, op := range ops {
		switch op.Kind {
		case kv.OpPut:
			s.data[string(op.Key)] = append([]byte(nil), op.Value...)
		case kv.OpDelete:
			delete(s.data, string(op.Key))
		}
	}
}

// Begin starts a transaction that buffers writes until Commit.
func (s *Store) Begin(ctx context.Context) (kv.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, kv.ErrStoreClosed
	}

	return &txn{store: s, pending: make(map[string]*[]byte)}, nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of live keys. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// txn buffers writes; pending maps key to value, nil meaning delete.
type txn struct {
	store   *Store
	pending map[string]*[]byte
	order   []string
	done    bool
}

func (t *txn) Get(key []byte) ([]byte, error) {
	if t.done {
		return nil, kv.ErrTxnDone
	}
	if v, ok := t.pending[string(key)]; ok {
		if v == nil {
			return nil, kv.ErrNotFound
		}
		return append([]byte(nil), *v...), nil
	}
	return t.store.Get(context.Background(), key)
}

func (t *txn) Put(key, value []byte) error {
	if t.done {
		return kv.ErrTxnDone
	}
	v := append([]byte(nil), value...)
	t.record(string(key), &v)
	return nil
}

func (t *txn) Delete(key []byte) error {
	if t.done {
		return kv.ErrTxnDone
	}
	t.record(string(key), nil)
	return nil
}

func (t *txn) record(key string, value *[]byte) {
	if _, ok := t.pending[key]; !ok {
		t.order = append(t.order, key)
	}
	t.pending[key] = value
}

func (t *txn) Commit() error {
	if t.done {
		return kv.ErrTxnDone
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.closed {
		return kv.ErrStoreClosed
	}

	for _, key := range t.order {
		if v := t.pending[key]; v == nil {
			delete(t.store.data, key)
		} else {
			t.store.data[key] = *v
		}
	}
	return nil
}

func (t *txn) Rollback() error {
	if t.done {
		return kv.ErrTxnDone
	}
	t.done = true
	t.pending = nil
	return nil
}
