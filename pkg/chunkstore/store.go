// Package chunkstore defines the contract the engine consumes for slice
// payloads: an opaque byte store addressed by string keys. The engine never
// interprets keys; implementations may nest them into directories, object
// prefixes, or anything else.
package chunkstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("chunkstore: chunk not found")

// ErrStoreClosed is returned by all operations after Close.
var ErrStoreClosed = errors.New("chunkstore: store is closed")

// Capacity describes a store's space situation.
type Capacity struct {
	Total     uint64
	Used      uint64
	Available uint64
}

// Store holds slice payloads. All operations may suspend and honor ctx
// cancellation. GetRange reads size bytes starting at offset; a short read
// at the end of an object is not an error — callers get the available
// bytes.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	GetRange(ctx context.Context, key string, offset, size uint64) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	BatchGet(ctx context.Context, keys []string) ([][]byte, error)
	HealthCheck(ctx context.Context) error
	GetCapacity(ctx context.Context) (Capacity, error)
	Close() error
}
