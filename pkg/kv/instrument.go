package kv

import (
	"context"
	"time"

	metrics "github.com/rouse2617/NimbusStore/pkg/metrics/prometheus"
)

// InstrumentedStore wraps a Store and records Prometheus counters and
// latencies for every operation.
type InstrumentedStore struct {
	inner Store
}

// Instrument wraps a store with metrics recording.
func Instrument(inner Store) *InstrumentedStore {
	return &InstrumentedStore{inner: inner}
}

func observe(op string, start time.Time, err error) {
	outcome := "ok"
	switch err {
	case nil:
	case ErrNotFound:
		outcome = "not_found"
	default:
		outcome = "error"
	}
	metrics.KVOpsTotal.WithLabelValues(op, outcome).Inc()
	metrics.KVOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	start := time.Now()
	value, err := s.inner.Get(ctx, key)
	observe("get", start, err)
	return value, err
}

func (s *InstrumentedStore) Put(ctx context.Context, key, value []byte) error {
	start := time.Now()
	err := s.inner.Put(ctx, key, value)
	observe("put", start, err)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key []byte) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	observe("delete", start, err)
	return err
}

func (s *InstrumentedStore) Exists(ctx context.Context, key []byte) (bool, error) {
	start := time.Now()
	ok, err := s.inner.Exists(ctx, key)
	observe("exists", start, err)
	return ok, err
}

func (s *InstrumentedStore) Scan(ctx context.Context, prefix []byte, limit int) ([]Pair, error) {
	start := time.Now()
	pairs, err := s.inner.Scan(ctx, prefix, limit)
	observe("scan", start, err)
	return pairs, err
}

func (s *InstrumentedStore) WriteBatch(ctx context.Context, ops []Op) error {
	start := time.Now()
	err := s.inner.WriteBatch(ctx, ops)
	observe("write_batch", start, err)
	return err
}

func (s *InstrumentedStore) Begin(ctx context.Context) (Txn, error) {
	txn, err := s.inner.Begin(ctx)
	if err != nil {
		observe("begin", time.Now(), err)
		return nil, err
	}
	return &instrumentedTxn{inner: txn, start: time.Now()}, nil
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

// instrumentedTxn records the whole transaction's lifetime under "txn".
type instrumentedTxn struct {
	inner Txn
	start time.Time
}

func (t *instrumentedTxn) Get(key []byte) ([]byte, error) { return t.inner.Get(key) }
func (t *instrumentedTxn) Put(key, value []byte) error    { return t.inner.Put(key, value) }
func (t *instrumentedTxn) Delete(key []byte) error        { return t.inner.Delete(key) }

func (t *instrumentedTxn) Commit() error {
	err := t.inner.Commit()
	observe("txn", t.start, err)
	return err
}

func (t *instrumentedTxn) Rollback() error {
	err := t.inner.Rollback()
	if err == nil {
		metrics.KVOpsTotal.WithLabelValues("txn", "rollback").Inc()
	}
	return err
}
