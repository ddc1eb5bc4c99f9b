// Package meta implements the NimbusStore metadata engine: inode and dentry
// records over an ordered KV store, file layouts managed by a slice tree,
// range-owning partitions with hot caches, and the path-level service that
// fronts them.
package meta

// InodeID identifies a file or directory. IDs are allocated densely from
// the range owned by one partition; RootInodeID is reserved.
type InodeID uint64

// RootInodeID is the inode of the filesystem root directory.
const RootInodeID InodeID = 1

// DefaultChunkSize is the layout's read-time chunking hint. It does not
// bound an individual slice.
const DefaultChunkSize uint64 = 4 * 1024 * 1024

// FileType classifies a dentry target.
type FileType uint32

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
)

// POSIX type bits carried in the top of FileMode.
const (
	ModeTypeMask uint32 = 0170000
	ModeDir      uint32 = 0040000
	ModeRegular  uint32 = 0100000
	ModeSymlink  uint32 = 0120000
)

// FileMode encodes the file type in the top bits and permission bits below,
// following POSIX conventions.
type FileMode uint32

// IsDir reports whether the mode has the directory type bit.
func (m FileMode) IsDir() bool {
	return uint32(m)&ModeTypeMask == ModeDir
}

// IsRegular reports whether the mode has the regular-file type bit.
func (m FileMode) IsRegular() bool {
	return uint32(m)&ModeTypeMask == ModeRegular
}

// IsSymlink reports whether the mode has the symlink type bit.
func (m FileMode) IsSymlink() bool {
	return uint32(m)&ModeTypeMask == ModeSymlink
}

// Perm returns the permission bits.
func (m FileMode) Perm() uint32 {
	return uint32(m) &^ ModeTypeMask
}

// FileTypeOf maps a mode to the dentry FileType.
func FileTypeOf(m FileMode) FileType {
	switch {
	case m.IsDir():
		return TypeDirectory
	case m.IsSymlink():
		return TypeSymlink
	default:
		return TypeRegular
	}
}

// InodeAttr is the persistent inode record.
type InodeAttr struct {
	InodeID InodeID
	Mode    FileMode
	UID     uint32
	GID     uint32
	Size    uint64
	Mtime   uint64 // unix seconds
	Ctime   uint64 // unix seconds
	Nlink   uint64
}

// Dentry is one (parent, name) -> inode edge in the namespace. The name is
// carried in the value as well as the key so list results decode without
// re-parsing keys.
type Dentry struct {
	Name    string
	InodeID InodeID
	Type    FileType
}

// SliceInfo is one contiguous range of a chunk-store object contributing to
// a file's content at Offset. StorageKey is opaque to the engine.
type SliceInfo struct {
	SliceID    uint64
	Offset     uint64
	Size       uint64
	StorageKey string
}

// End returns the first file offset past the slice.
func (s SliceInfo) End() uint64 {
	return s.Offset + s.Size
}

// FileLayout is the ordered, non-overlapping slice list defining a file's
// content. Gaps between slices read as zeros.
type FileLayout struct {
	InodeID   InodeID
	ChunkSize uint64
	Slices    []SliceInfo
}

// Attribute-update mask bits for SetAttr. Bits outside the mask are ignored.
const (
	SetAttrMode uint32 = 1 << iota
	SetAttrUID
	SetAttrGID
	SetAttrSize
	SetAttrMtime
)
