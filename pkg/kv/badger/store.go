// Package badger provides a BadgerDB-backed implementation of the ordered
// kv.Store contract. Commits run with synchronous writes so Badger's value
// log acts as the write-ahead log: a successful commit survives a crash.
package badger

import (
	"context"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/rouse2617/NimbusStore/internal/logger"
	"github.com/rouse2617/NimbusStore/pkg/kv"
)

// Config holds configuration for the Badger store.
type Config struct {
	// Dir is the directory Badger keeps both LSM tree and value log in.
	Dir string

	// SyncWrites forces every commit to stable storage before returning.
	// Default: true. Turning it off trades crash durability for throughput.
	SyncWrites bool

	// InMemory runs Badger without touching disk. Used by tests.
	InMemory bool
}

// DefaultConfig returns the default configuration for a data directory.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, SyncWrites: true}
}

// Store is a BadgerDB-backed kv.Store.
type Store struct {
	db     *badgerdb.DB
	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if necessary) a Badger store in cfg.Dir.
func Open(cfg Config) (*Store, error) {
	opts := badgerdb.DefaultOptions(cfg.Dir).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, err
	}

	logger.SubInfo(logger.SubsysKV, "badger store opened",
		"dir", cfg.Dir, "sync_writes", cfg.SyncWrites)

	return &Store{db: db}, nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return kv.ErrStoreClosed
	}
	return nil
}

// Get returns the value stored under key, or kv.ErrNotFound.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return kv.ErrNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put stores value under key.
func (s *Store) Put(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(key)
	})
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key []byte) (bool, error) {
	_, err := s.Get(ctx, key)
	if err == kv.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Scan returns up to limit pairs whose keys start with prefix, in strictly
// ascending key order. limit <= 0 means unlimited.
func (s *Store) Scan(ctx context.Context, prefix []byte, limit int) ([]kv.Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var pairs []kv.Pair
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(pairs) >= limit {
				break
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			pairs = append(pairs, kv.Pair{
				Key:   item.KeyCopy(nil),
				Value: value,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// WriteBatch applies ops atomically in a single Badger transaction.
func (s *Store) WriteBatch(ctx context.Context, ops []kv.Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		for _, op := range ops {
			var err error
			switch op.Kind {
			case kv.OpPut:
				err = txn.Set(op.Key, op.Value)
			case kv.OpDelete:
				err = txn.Delete(op.Key)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Begin starts a read-write transaction.
func (s *Store) Begin(ctx context.Context) (kv.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	return &txn{inner: s.db.NewTransaction(true)}, nil
}

// Close releases the database handle. Uncommitted transactions are discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// txn wraps a Badger transaction for the kv.Txn interface.
type txn struct {
	inner *badgerdb.Txn
	done  bool
}

func (t *txn) Get(key []byte) ([]byte, error) {
	if t.done {
		return nil, kv.ErrTxnDone
	}
	item, err := t.inner.Get(key)
	if err == badgerdb.ErrKeyNotFound {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *txn) Put(key, value []byte) error {
	if t.done {
		return kv.ErrTxnDone
	}
	return t.inner.Set(key, value)
}

func (t *txn) Delete(key []byte) error {
	if t.done {
		return kv.ErrTxnDone
	}
	return t.inner.Delete(key)
}

func (t *txn) Commit() error {
	if t.done {
		return kv.ErrTxnDone
	}
	t.done = true
	return t.inner.Commit()
}

func (t *txn) Rollback() error {
	if t.done {
		return kv.ErrTxnDone
	}
	t.done = true
	t.inner.Discard()
	return nil
}
