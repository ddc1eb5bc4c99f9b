package namespace

import (
	"context"
	"strconv"
	"strings"

	"github.com/rouse2617/NimbusStore/internal/logger"
	"github.com/rouse2617/NimbusStore/pkg/chunkstore"
	"github.com/rouse2617/NimbusStore/pkg/meta"
	"github.com/rouse2617/NimbusStore/pkg/meta/errors"
	"github.com/rouse2617/NimbusStore/pkg/singleflight"
)

// Config assembles a namespace service.
type Config struct {
	Metadata      *meta.Service
	ChunkStore    chunkstore.Store
	DefaultBucket string
}

// Service fuses the metadata service with the chunk store behind a unified
// path interface. Reads map file ranges onto slices; writes land chunk data
// first and commit metadata after.
type Service struct {
	converter *PathConverter
	metadata  *meta.Service
	chunks    chunkstore.Store

	layoutFlight singleflight.Group[*meta.FileLayout]
}

// NewService creates a namespace service.
func NewService(cfg Config) *Service {
	return &Service{
		converter: NewPathConverter(cfg.DefaultBucket),
		metadata:  cfg.Metadata,
		chunks:    cfg.ChunkStore,
	}
}

// Converter exposes the path converter.
func (s *Service) Converter() *PathConverter {
	return s.converter
}

// Chunks exposes the chunk store, for health checks and capacity probes.
func (s *Service) Chunks() chunkstore.Store {
	return s.chunks
}

// GetAttr returns the inode record behind any path shape.
func (s *Service) GetAttr(ctx context.Context, path string) (*meta.InodeAttr, error) {
	parsed := s.converter.Parse(path)
	return s.metadata.GetAttr(ctx, parsed.PosixPath)
}

// Create makes a regular file.
func (s *Service) Create(ctx context.Context, path string, mode meta.FileMode, uid, gid uint32) (meta.InodeID, error) {
	parsed := s.converter.Parse(path)
	return s.metadata.Create(ctx, parsed.PosixPath, mode, uid, gid)
}

// Mkdir makes a directory.
func (s *Service) Mkdir(ctx context.Context, path string, mode meta.FileMode, uid, gid uint32) (meta.InodeID, error) {
	parsed := s.converter.Parse(path)
	return s.metadata.Mkdir(ctx, parsed.PosixPath, mode, uid, gid)
}

// MkdirAll creates every missing directory along the path, like mkdir -p.
// Existing components are left alone; a non-directory component fails with
// NotDirectory.
func (s *Service) MkdirAll(ctx context.Context, path string, mode meta.FileMode, uid, gid uint32) error {
	parsed := s.converter.Parse(path)
	parts, err := meta.ParsePath(parsed.PosixPath)
	if err != nil {
		return err
	}

	walked := ""
	for _, part := range parts {
		walked += "/" + part
		attr, err := s.metadata.GetAttr(ctx, walked)
		if err == nil {
			if !attr.Mode.IsDir() {
				return errors.NewNotDirectoryError(walked)
			}
			continue
		}
		if !errors.IsNotFound(err) {
			return err
		}
		if _, err := s.metadata.Mkdir(ctx, walked, mode, uid, gid); err != nil && !errors.IsAlreadyExists(err) {
			return err
		}
	}
	return nil
}

// Remove unlinks a file.
func (s *Service) Remove(ctx context.Context, path string) error {
	parsed := s.converter.Parse(path)
	return s.metadata.Unlink(ctx, parsed.PosixPath)
}

// Rmdir removes an empty directory.
func (s *Service) Rmdir(ctx context.Context, path string) error {
	parsed := s.converter.Parse(path)
	return s.metadata.Rmdir(ctx, parsed.PosixPath)
}

// Readdir lists a directory behind any path shape.
func (s *Service) Readdir(ctx context.Context, path string) ([]meta.Dentry, error) {
	parsed := s.converter.Parse(path)
	return s.metadata.Readdir(ctx, parsed.PosixPath)
}

// GetLayout resolves a path and returns the file's layout. Concurrent loads
// of the same inode share one metadata read.
func (s *Service) GetLayout(ctx context.Context, path string) (*meta.FileLayout, error) {
	parsed := s.converter.Parse(path)
	inode, err := s.metadata.LookupPath(ctx, parsed.PosixPath)
	if err != nil {
		return nil, err
	}
	return s.loadLayout(ctx, inode)
}

func (s *Service) loadLayout(ctx context.Context, inode meta.InodeID) (*meta.FileLayout, error) {
	key := "layout/" + strconv.FormatUint(uint64(inode), 10)
	return s.layoutFlight.Do(key, func() (*meta.FileLayout, error) {
		return s.metadata.GetLayout(ctx, inode)
	})
}

// chunkKey derives the storage key for a write at the given file offset.
// The trailing segment records the file offset the object was written at,
// which is what maps a cut slice remnant back onto object bytes.
func chunkKey(inode meta.InodeID, offset uint64) string {
	return "chunks/" + strconv.FormatUint(uint64(inode), 10) +
		"/" + strconv.FormatUint(offset, 10)
}

// chunkKeyBase recovers the file offset a chunk object was written at. For
// keys not produced by chunkKey the slice's own offset is the base (the
// slice then reads the object from byte zero).
func chunkKeyBase(slice meta.SliceInfo) uint64 {
	pos := strings.LastIndexByte(slice.StorageKey, '/')
	if pos >= 0 {
		if base, err := strconv.ParseUint(slice.StorageKey[pos+1:], 10, 64); err == nil {
			return base
		}
	}
	return slice.Offset
}

// Write stores data at offset in the file behind path. The chunk lands
// first; only then is the slice appended and the size raised. A chunk-store
// failure therefore never dirties metadata, while a metadata failure leaves
// an unreachable chunk the store may reclaim later.
func (s *Service) Write(ctx context.Context, path string, data []byte, offset uint64) error {
	parsed := s.converter.Parse(path)
	inode, err := s.metadata.LookupPath(ctx, parsed.PosixPath)
	if err != nil {
		return err
	}

	key := chunkKey(inode, offset)
	if err := s.chunks.Put(ctx, key, data); err != nil {
		logger.SubWarn(logger.SubsysNamespace, "chunk write failed",
			logger.KeyInode, uint64(inode), logger.KeyStorageKey, key,
			logger.KeyError, err.Error())
		return errors.NewIOError(err.Error())
	}

	slice := meta.SliceInfo{
		Offset:     offset,
		Size:       uint64(len(data)),
		StorageKey: key,
	}
	if err := s.metadata.AddSlice(ctx, inode, slice); err != nil {
		return err
	}
	s.layoutFlight.Forget("layout/" + strconv.FormatUint(uint64(inode), 10))

	return s.metadata.UpdateSize(ctx, inode, offset+uint64(len(data)))
}

// Read returns up to size bytes at offset from the file behind path. Holes
// in the layout read as zeros; the range clamps at EOF, and a partial read
// at EOF is a success.
func (s *Service) Read(ctx context.Context, path string, offset, size uint64) ([]byte, error) {
	parsed := s.converter.Parse(path)
	inode, err := s.metadata.LookupPath(ctx, parsed.PosixPath)
	if err != nil {
		return nil, err
	}

	attr, err := s.metadata.GetAttr(ctx, parsed.PosixPath)
	if err != nil {
		return nil, err
	}
	if offset >= attr.Size {
		return nil, nil
	}
	if offset+size > attr.Size {
		size = attr.Size - offset
	}

	layout, err := s.loadLayout(ctx, inode)
	if err != nil {
		return nil, err
	}

	// Assemble the range slice by slice; uncovered stretches stay zero.
	buf := make([]byte, size)
	end := offset + size
	for _, slice := range layout.Slices {
		if slice.End() <= offset || slice.Offset >= end {
			continue
		}

		readStart := max(slice.Offset, offset)
		readEnd := min(slice.End(), end)

		objOff := readStart - chunkKeyBase(slice)
		data, err := s.chunks.GetRange(ctx, slice.StorageKey, objOff, readEnd-readStart)
		if err != nil {
			if err == chunkstore.ErrNotFound {
				return nil, errors.NewNotFoundError(slice.StorageKey, "chunk")
			}
			return nil, errors.NewIOError(err.Error())
		}
		copy(buf[readStart-offset:], data)
	}

	return buf, nil
}
