package meta

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rouse2617/NimbusStore/internal/logger"
	"github.com/rouse2617/NimbusStore/pkg/kv"
	"github.com/rouse2617/NimbusStore/pkg/meta/errors"
)

// counterKey persists the next-inode counter so allocation survives
// restarts without rescanning the inode keyspace.
var counterKey = []byte("C:next_inode")

// Service is the stateless front-end over a set of partitions. It resolves
// paths, allocates inode ids, and drives layout mutations. Partitions are
// held sorted by range start; each inode id routes to exactly one of them.
type Service struct {
	partitions []*Partition

	inodeMu   sync.Mutex
	nextInode InodeID

	nextSliceID atomic.Uint64
}

// NewService builds a service over partitions and materializes the root
// directory inode if it does not exist yet.
func NewService(ctx context.Context, partitions []*Partition) (*Service, error) {
	if len(partitions) == 0 {
		return nil, errors.NewInvalidArgumentError("at least one partition is required")
	}

	sorted := append([]*Partition(nil), partitions...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].cfg.StartInode < sorted[j].cfg.StartInode
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].cfg.StartInode < sorted[i-1].cfg.EndInode {
			return nil, errors.NewInvalidArgumentError("partition ranges overlap")
		}
	}

	s := &Service{partitions: sorted, nextInode: RootInodeID + 1}

	if err := s.recoverNextInode(ctx); err != nil {
		return nil, err
	}
	if err := s.ensureRoot(ctx); err != nil {
		return nil, err
	}

	logger.SubInfo(logger.SubsysMeta, "metadata service ready",
		"partitions", len(sorted), "next_inode", uint64(s.nextInode))
	return s, nil
}

func (s *Service) recoverNextInode(ctx context.Context) error {
	value, err := s.partitions[0].store.Get(ctx, counterKey)
	if err == kv.ErrNotFound {
		return nil
	}
	if err != nil {
		return errors.FromContextErr(err)
	}
	if next, perr := strconv.ParseUint(string(value), 10, 64); perr == nil && InodeID(next) > s.nextInode {
		s.nextInode = InodeID(next)
	}
	return nil
}

func (s *Service) ensureRoot(ctx context.Context) error {
	root, err := s.locatePartition(RootInodeID)
	if err != nil {
		return err
	}
	if _, err := root.LookupInode(ctx, RootInodeID); err == nil {
		return nil
	} else if !errors.IsNotFound(err) {
		return err
	}
	_, err = root.CreateInode(ctx, RootInodeID, FileMode(ModeDir|0755), 0, 0)
	if errors.IsAlreadyExists(err) {
		return nil
	}
	return err
}

// GenerateInodeID allocates the next inode id. Allocation is a mutex-guarded
// fetch-add; the new counter value is persisted before the id is handed out
// so ids are never reissued after a restart.
func (s *Service) GenerateInodeID(ctx context.Context) (InodeID, error) {
	s.inodeMu.Lock()
	defer s.inodeMu.Unlock()

	id := s.nextInode
	next := []byte(strconv.FormatUint(uint64(id)+1, 10))
	if err := s.partitions[0].store.Put(ctx, counterKey, next); err != nil {
		return 0, errors.FromContextErr(err)
	}
	s.nextInode = id + 1
	return id, nil
}

func (s *Service) locatePartition(id InodeID) (*Partition, error) {
	i := sort.Search(len(s.partitions), func(i int) bool {
		return s.partitions[i].cfg.EndInode > id
	})
	if i < len(s.partitions) && s.partitions[i].Owns(id) {
		return s.partitions[i], nil
	}
	return nil, errors.NewIOError(fmt.Sprintf("no partition owns inode %d", id))
}

// ============================================================================
// Path handling
// ============================================================================

// ParsePath splits an absolute path into its segments, collapsing empty
// segments. "/" parses to no segments; a path without a leading slash is
// rejected.
func ParsePath(path string) ([]string, error) {
	if path == "" || path[0] != '/' {
		return nil, errors.NewInvalidArgumentError("path must start with /")
	}

	var parts []string
	for _, part := range strings.Split(path[1:], "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts, nil
}

// SplitParentChild splits a path into its parent directory and final name.
// The root splits to ("/", "").
func SplitParentChild(path string) (string, string) {
	if path == "" || path == "/" {
		return "/", ""
	}

	path = strings.TrimSuffix(path, "/")
	pos := strings.LastIndexByte(path, '/')
	if pos <= 0 {
		return "/", path[1:]
	}
	return path[:pos], path[pos+1:]
}

// LookupPath walks the path from the root dentry by dentry and returns the
// final inode.
func (s *Service) LookupPath(ctx context.Context, path string) (InodeID, error) {
	parts, err := ParsePath(path)
	if err != nil {
		return 0, err
	}

	current := RootInodeID
	for _, part := range parts {
		partition, err := s.locatePartition(current)
		if err != nil {
			return 0, err
		}
		dentry, err := partition.LookupDentry(ctx, current, part)
		if err != nil {
			if errors.IsNotFound(err) {
				return 0, errors.NewNotFoundError(path, "path component "+part)
			}
			return 0, err
		}
		current = dentry.InodeID
	}
	return current, nil
}

// ============================================================================
// Namespace mutations
// ============================================================================

// Create makes a new inode and links it under its parent. When inode and
// dentry land in different partitions the dentry failure is compensated by
// deleting the freshly created inode.
func (s *Service) Create(ctx context.Context, path string, mode FileMode, uid, gid uint32) (InodeID, error) {
	parentPath, name := SplitParentChild(path)
	if name == "" {
		return 0, errors.NewAlreadyExistsError("/")
	}

	parent, err := s.LookupPath(ctx, parentPath)
	if err != nil {
		return 0, err
	}

	parentPartition, err := s.locatePartition(parent)
	if err != nil {
		return 0, err
	}

	if _, err := parentPartition.LookupDentry(ctx, parent, name); err == nil {
		return 0, errors.NewAlreadyExistsError(path)
	} else if !errors.IsNotFound(err) {
		return 0, err
	}

	id, err := s.GenerateInodeID(ctx)
	if err != nil {
		return 0, err
	}

	target, err := s.locatePartition(id)
	if err != nil {
		return 0, err
	}

	if _, err := target.CreateInode(ctx, id, mode, uid, gid); err != nil {
		return 0, err
	}

	if err := parentPartition.CreateDentry(ctx, parent, name, id, FileTypeOf(mode)); err != nil {
		// Compensate: the inode committed but the link did not.
		if derr := target.DeleteInode(ctx, id); derr != nil {
			logger.SubWarn(logger.SubsysMeta, "orphaned inode after failed dentry create",
				logger.KeyInode, uint64(id), logger.KeyError, derr.Error())
		}
		return 0, err
	}

	return id, nil
}

// GetAttr resolves a path and returns the inode record.
func (s *Service) GetAttr(ctx context.Context, path string) (*InodeAttr, error) {
	id, err := s.LookupPath(ctx, path)
	if err != nil {
		return nil, err
	}
	partition, err := s.locatePartition(id)
	if err != nil {
		return nil, err
	}
	return partition.LookupInode(ctx, id)
}

// SetAttr merges the fields selected by mask into the inode record.
// Bits outside the defined mask are ignored.
func (s *Service) SetAttr(ctx context.Context, path string, attr *InodeAttr, mask uint32) (*InodeAttr, error) {
	id, err := s.LookupPath(ctx, path)
	if err != nil {
		return nil, err
	}
	partition, err := s.locatePartition(id)
	if err != nil {
		return nil, err
	}

	current, err := partition.LookupInode(ctx, id)
	if err != nil {
		return nil, err
	}

	if mask&SetAttrMode != 0 {
		// Type bits are immutable; only permissions change.
		current.Mode = FileMode(uint32(current.Mode)&ModeTypeMask | attr.Mode.Perm())
	}
	if mask&SetAttrUID != 0 {
		current.UID = attr.UID
	}
	if mask&SetAttrGID != 0 {
		current.GID = attr.GID
	}
	if mask&SetAttrSize != 0 {
		current.Size = attr.Size
	}
	if mask&SetAttrMtime != 0 {
		current.Mtime = attr.Mtime
	}
	current.Ctime = uint64(time.Now().Unix())

	if err := partition.PutInode(ctx, current); err != nil {
		return nil, err
	}
	result := *current
	return &result, nil
}

// Mkdir creates a directory; the directory type bit is forced into the mode.
func (s *Service) Mkdir(ctx context.Context, path string, mode FileMode, uid, gid uint32) (InodeID, error) {
	dirMode := FileMode(uint32(mode)&^ModeTypeMask | ModeDir)
	return s.Create(ctx, path, dirMode, uid, gid)
}

// Unlink removes a non-directory entry. The target's nlink is decremented;
// at zero the inode and its layout are deleted and the chunk data is
// orphaned for the chunk store to reclaim.
func (s *Service) Unlink(ctx context.Context, path string) error {
	parentPath, name := SplitParentChild(path)
	if name == "" {
		return errors.NewInvalidArgumentError("cannot unlink root")
	}

	parent, err := s.LookupPath(ctx, parentPath)
	if err != nil {
		return err
	}
	parentPartition, err := s.locatePartition(parent)
	if err != nil {
		return err
	}

	dentry, err := parentPartition.LookupDentry(ctx, parent, name)
	if err != nil {
		return err
	}
	if dentry.Type == TypeDirectory {
		return errors.NewIsDirectoryError(path)
	}

	target, err := s.locatePartition(dentry.InodeID)
	if err != nil {
		return err
	}
	attr, err := target.LookupInode(ctx, dentry.InodeID)
	if err != nil {
		return err
	}

	if err := parentPartition.DeleteDentry(ctx, parent, name); err != nil {
		return err
	}

	if attr.Nlink <= 1 {
		return target.DeleteInode(ctx, dentry.InodeID)
	}
	attr.Nlink--
	attr.Ctime = uint64(time.Now().Unix())
	return target.PutInode(ctx, attr)
}

// Rmdir removes an empty directory.
func (s *Service) Rmdir(ctx context.Context, path string) error {
	parentPath, name := SplitParentChild(path)
	if name == "" {
		return errors.NewInvalidArgumentError("cannot remove root")
	}

	parent, err := s.LookupPath(ctx, parentPath)
	if err != nil {
		return err
	}
	parentPartition, err := s.locatePartition(parent)
	if err != nil {
		return err
	}

	dentry, err := parentPartition.LookupDentry(ctx, parent, name)
	if err != nil {
		return err
	}
	if dentry.Type != TypeDirectory {
		return errors.NewNotDirectoryError(path)
	}

	target, err := s.locatePartition(dentry.InodeID)
	if err != nil {
		return err
	}
	entries, err := target.ListDentries(ctx, dentry.InodeID)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return errors.NewNotEmptyError(path)
	}

	if err := parentPartition.DeleteDentry(ctx, parent, name); err != nil {
		return err
	}
	return target.DeleteInode(ctx, dentry.InodeID)
}

// Rename moves an entry. When both parents live in the same partition the
// move is one atomic transaction. Across partitions it is two phases:
// create the new dentry, then delete the old one, compensating the first
// phase if the second fails. A crash between the phases leaves a double
// link for the orphan scanner.
func (s *Service) Rename(ctx context.Context, oldPath, newPath string) error {
	oldParentPath, oldName := SplitParentChild(oldPath)
	newParentPath, newName := SplitParentChild(newPath)
	if oldName == "" || newName == "" {
		return errors.NewInvalidArgumentError("cannot rename root")
	}

	oldParent, err := s.LookupPath(ctx, oldParentPath)
	if err != nil {
		return err
	}
	newParent, err := s.LookupPath(ctx, newParentPath)
	if err != nil {
		return err
	}

	oldPartition, err := s.locatePartition(oldParent)
	if err != nil {
		return err
	}
	newPartition, err := s.locatePartition(newParent)
	if err != nil {
		return err
	}

	if oldPartition == newPartition {
		return oldPartition.RenameDentry(ctx, oldParent, oldName, newParent, newName)
	}

	src, err := oldPartition.LookupDentry(ctx, oldParent, oldName)
	if err != nil {
		return err
	}

	if err := newPartition.CreateDentry(ctx, newParent, newName, src.InodeID, src.Type); err != nil {
		return err
	}
	if err := oldPartition.DeleteDentry(ctx, oldParent, oldName); err != nil {
		// Compensate phase one so retries see the original state.
		if derr := newPartition.DeleteDentry(ctx, newParent, newName); derr != nil {
			logger.SubWarn(logger.SubsysMeta, "rename left double link",
				logger.KeyOldPath, oldPath, logger.KeyNewPath, newPath,
				logger.KeyError, derr.Error())
		}
		return err
	}
	return nil
}

// Readdir lists the entries of a directory.
func (s *Service) Readdir(ctx context.Context, path string) ([]Dentry, error) {
	id, err := s.LookupPath(ctx, path)
	if err != nil {
		return nil, err
	}
	partition, err := s.locatePartition(id)
	if err != nil {
		return nil, err
	}

	attr, err := partition.LookupInode(ctx, id)
	if err != nil {
		return nil, err
	}
	if !attr.Mode.IsDir() {
		return nil, errors.NewNotDirectoryError(path)
	}

	return partition.ListDentries(ctx, id)
}

// ============================================================================
// Layout hooks (data-plane metadata)
// ============================================================================

// GetLayout returns the layout for an inode.
func (s *Service) GetLayout(ctx context.Context, inode InodeID) (*FileLayout, error) {
	partition, err := s.locatePartition(inode)
	if err != nil {
		return nil, err
	}
	return partition.GetLayout(ctx, inode)
}

// AddSlice appends a write slice into the inode's layout. The persisted
// list is rebuilt through a slice tree so it stays ordered and
// non-overlapping whatever the write pattern; load, rebuild, and store run
// as one serialized transaction per inode, so concurrent writers to
// disjoint offsets never drop each other's slices.
func (s *Service) AddSlice(ctx context.Context, inode InodeID, slice SliceInfo) error {
	partition, err := s.locatePartition(inode)
	if err != nil {
		return err
	}

	if slice.SliceID == 0 {
		slice.SliceID = s.nextSliceID.Add(1)
	}

	return partition.UpdateLayout(ctx, inode, func(layout *FileLayout) error {
		tree := NewSliceTree()
		for _, existing := range layout.Slices {
			tree.InsertInfo(existing)
		}
		tree.InsertInfo(slice)

		// The build prefix only names key-less slices (chunks/{inode}/id).
		// The write path always supplies chunks/{inode}/{offset} keys, and
		// the two schemes must never mix within one inode: the read side
		// derives the object's base offset from the key's last segment.
		layout.Slices = tree.Build("chunks/" + strconv.FormatUint(uint64(inode), 10))
		return nil
	})
}

// UpdateSize grows the inode's recorded size to newSize. Sizes never shrink
// implicitly; concurrent writers settle on the maximum.
func (s *Service) UpdateSize(ctx context.Context, inode InodeID, newSize uint64) error {
	partition, err := s.locatePartition(inode)
	if err != nil {
		return err
	}

	mu := &partition.layoutLocks[uint64(inode)%uint64(len(partition.layoutLocks))]
	mu.Lock()
	defer mu.Unlock()

	attr, err := partition.LookupInode(ctx, inode)
	if err != nil {
		return err
	}
	if newSize <= attr.Size {
		return nil
	}

	attr.Size = newSize
	attr.Mtime = uint64(time.Now().Unix())
	return partition.PutInode(ctx, attr)
}
