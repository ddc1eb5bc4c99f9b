// Package memory provides an in-memory chunk store used by unit tests.
package memory

import (
	"context"
	"sync"

	"github.com/rouse2617/NimbusStore/pkg/chunkstore"
)

// Store is a mutex-guarded in-memory chunkstore.Store.
type Store struct {
	mu     sync.RWMutex
	chunks map[string][]byte
	closed bool
}

// New creates an empty in-memory chunk store.
func New() *Store {
	return &Store{chunks: make(map[string][]byte)}
}

// Put stores a chunk.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chunkstore.ErrStoreClosed
	}

	s.chunks[key] = append([]byte(nil), data...)
	return nil
}

// Get reads a whole chunk.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, chunkstore.ErrStoreClosed
	}

	data, ok := s.chunks[key]
	if !ok {
		return nil, chunkstore.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// GetRange reads size bytes at offset, clamping at the chunk's end.
func (s *Store) GetRange(ctx context.Context, key string, offset, size uint64) ([]byte, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if offset >= uint64(len(data)) {
		return nil, nil
	}
	end := offset + size
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	return data[offset:end], nil
}

// Delete removes a chunk. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chunkstore.ErrStoreClosed
	}

	delete(s.chunks, key)
	return nil
}

// Exists reports whether a chunk is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, chunkstore.ErrStoreClosed
	}

	_, ok := s.chunks[key]
	return ok, nil
}

// BatchGet reads multiple chunks positionally.
func (s *Store) BatchGet(ctx context.Context, keys []string) ([][]byte, error) {
	results := make([][]byte, len(keys))
	for i, key := range keys {
		data, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		results[i] = data
	}
	return results, nil
}

// HealthCheck always succeeds while the store is open.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return chunkstore.ErrStoreClosed
	}
	return nil
}

// GetCapacity reports the bytes held.
func (s *Store) GetCapacity(ctx context.Context) (chunkstore.Capacity, error) {
	if err := ctx.Err(); err != nil {
		return chunkstore.Capacity{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return chunkstore.Capacity{}, chunkstore.ErrStoreClosed
	}

	var used uint64
	for _, data := range s.chunks {
		used += uint64(len(data))
	}
	return chunkstore.Capacity{
		Total:     ^uint64(0),
		Used:      used,
		Available: ^uint64(0),
	}, nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of chunks held. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}
