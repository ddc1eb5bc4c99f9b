// Package fs provides a filesystem-backed chunk store. Chunks are stored as
// files with the chunk key as the path relative to a base directory.
package fs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/rouse2617/NimbusStore/pkg/chunkstore"
)

// Config holds configuration for the filesystem chunk store.
type Config struct {
	// BasePath is the root directory for chunk storage.
	BasePath string

	// DirMode is the permission mode for created directories. Default: 0755.
	DirMode os.FileMode

	// FileMode is the permission mode for created files. Default: 0644.
	FileMode os.FileMode
}

// Store is a filesystem-backed chunkstore.Store.
type Store struct {
	mu       sync.RWMutex
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
	closed   bool
}

// New creates a filesystem chunk store rooted at cfg.BasePath, creating the
// directory if needed.
func New(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("base path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
		return nil, err
	}

	return &Store{
		basePath: cfg.BasePath,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
	}, nil
}

// pathFor maps a chunk key to a file path under the base directory,
// rejecting keys that would escape it.
func (s *Store) pathFor(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", errors.New("invalid chunk key")
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return chunkstore.ErrStoreClosed
	}
	return nil
}

// Put writes a chunk, creating parent directories as needed. The write goes
// through a temp file and rename so readers never observe a partial chunk.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), s.dirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".chunk-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, s.fileMode); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Get reads a whole chunk.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, chunkstore.ErrNotFound
	}
	return data, err
}

// GetRange reads size bytes starting at offset. Reads past the end of the
// chunk return the available bytes without error.
func (s *Store) GetRange(ctx context.Context, key string, offset, size uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, chunkstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, size)
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// Delete removes a chunk. Deleting a missing chunk is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	path, err := s.pathFor(key)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Exists reports whether a chunk is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	path, err := s.pathFor(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// BatchGet reads multiple chunks; the result slice is positional with the
// input keys.
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

// HealthCheck verifies the base directory is reachable and writable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	info, err := os.Stat(s.basePath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("base path is not a directory")
	}
	return nil
}

// GetCapacity reports the capacity of the filesystem holding the base path.
func (s *Store) GetCapacity(ctx context.Context) (chunkstore.Capacity, error) {
	if err := ctx.Err(); err != nil {
		return chunkstore.Capacity{}, err
	}
	if err := s.checkOpen(); err != nil {
		return chunkstore.Capacity{}, err
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(s.basePath, &stat); err != nil {
		return chunkstore.Capacity{}, err
	}

	total := stat.Blocks * uint64(stat.Bsize)
	available := stat.Bavail * uint64(stat.Bsize)
	return chunkstore.Capacity{
		Total:     total,
		Used:      total - stat.Bfree*uint64(stat.Bsize),
		Available: available,
	}, nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
