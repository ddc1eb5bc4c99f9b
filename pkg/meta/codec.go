package meta

import (
	"encoding/binary"
	"fmt"
)

// ============================================================================
// KV key namespace
// ============================================================================
//
// The metadata engine stores four record types under single-byte prefixes.
// Inode ids are encoded big-endian so numeric order and lexicographic order
// agree, which is what makes the dentry prefix scan return a directory's
// entries as one contiguous key range.
//
// Record    Prefix  Key format
// ==========================================================
// Dentry    'D'     D || be64(parent) || '/' || name
// Inode     'I'     I || be64(inode)
// Layout    'L'     L || be64(inode)
// Slice     'S'     S || be64(slice)        (reserved)

const (
	prefixDentry byte = 'D'
	prefixInode  byte = 'I'
	prefixLayout byte = 'L'
	prefixSlice  byte = 'S'

	dentrySep byte = '/'
)

// DentryKey builds the key for one directory entry.
func DentryKey(parent InodeID, name string) []byte {
	key := make([]byte, 0, 10+len(name))
	key = append(key, prefixDentry)
	key = binary.BigEndian.AppendUint64(key, uint64(parent))
	key = append(key, dentrySep)
	key = append(key, name...)
	return key
}

// DentryScanPrefix builds the prefix covering every entry of a directory.
func DentryScanPrefix(parent InodeID) []byte {
	key := make([]byte, 0, 10)
	key = append(key, prefixDentry)
	key = binary.BigEndian.AppendUint64(key, uint64(parent))
	key = append(key, dentrySep)
	return key
}

// InodeKey builds the key for an inode record.
func InodeKey(id InodeID) []byte {
	key := make([]byte, 0, 9)
	key = append(key, prefixInode)
	key = binary.BigEndian.AppendUint64(key, uint64(id))
	return key
}

// LayoutKey builds the key for a layout record.
func LayoutKey(id InodeID) []byte {
	key := make([]byte, 0, 9)
	key = append(key, prefixLayout)
	key = binary.BigEndian.AppendUint64(key, uint64(id))
	return key
}

// ============================================================================
// Value encodings
// ============================================================================
//
// All multi-byte integers are big-endian; variable-length fields are
// preceded by a u32 length. Decoders reject payloads shorter than the
// minimum for their type and never read past a declared inner length.

const (
	dentryFixedLen = 4 + 8 + 4 // name_len + inode + type
	inodeValueLen  = 8 + 4 + 4 + 4 + 8 + 8 + 8 + 8
	layoutFixedLen = 8 + 8 + 4     // inode + chunk_size + slice_count
	sliceFixedLen  = 8 + 8 + 8 + 4 // id + offset + size + key_len
)

// EncodeDentry serializes a dentry value:
// u32 name_len || name || u64 inode || u32 type.
func EncodeDentry(d *Dentry) []byte {
	buf := make([]byte, 0, dentryFixedLen+len(d.Name))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(d.Name)))
	buf = append(buf, d.Name...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(d.InodeID))
	buf = binary.BigEndian.AppendUint32(buf, uint32(d.Type))
	return buf
}

// DecodeDentry parses a dentry value.
func DecodeDentry(buf []byte) (*Dentry, error) {
	if len(buf) < dentryFixedLen {
		return nil, fmt.Errorf("dentry value too short: %d bytes", len(buf))
	}

	nameLen := binary.BigEndian.Uint32(buf[0:4])
	if uint64(len(buf)) < 4+uint64(nameLen)+12 {
		return nil, fmt.Errorf("dentry value truncated: name_len %d, %d bytes", nameLen, len(buf))
	}

	pos := 4
	name := string(buf[pos : pos+int(nameLen)])
	pos += int(nameLen)

	inode := binary.BigEndian.Uint64(buf[pos : pos+8])
	pos += 8
	typ := binary.BigEndian.Uint32(buf[pos : pos+4])

	return &Dentry{
		Name:    name,
		InodeID: InodeID(inode),
		Type:    FileType(typ),
	}, nil
}

// EncodeInode serializes an inode record:
// u64 inode || u32 mode || u32 uid || u32 gid || u64 size || u64 mtime ||
// u64 ctime || u64 nlink.
func EncodeInode(a *InodeAttr) []byte {
	buf := make([]byte, 0, inodeValueLen)
	buf = binary.BigEndian.AppendUint64(buf, uint64(a.InodeID))
	buf = binary.BigEndian.AppendUint32(buf, uint32(a.Mode))
	buf = binary.BigEndian.AppendUint32(buf, a.UID)
	buf = binary.BigEndian.AppendUint32(buf, a.GID)
	buf = binary.BigEndian.AppendUint64(buf, a.Size)
	buf = binary.BigEndian.AppendUint64(buf, a.Mtime)
	buf = binary.BigEndian.AppendUint64(buf, a.Ctime)
	buf = binary.BigEndian.AppendUint64(buf, a.Nlink)
	return buf
}

// DecodeInode parses an inode record.
func DecodeInode(buf []byte) (*InodeAttr, error) {
	if len(buf) < inodeValueLen {
		return nil, fmt.Errorf("inode value too short: %d bytes", len(buf))
	}

	return &InodeAttr{
		InodeID: InodeID(binary.BigEndian.Uint64(buf[0:8])),
		Mode:    FileMode(binary.BigEndian.Uint32(buf[8:12])),
		UID:     binary.BigEndian.Uint32(buf[12:16]),
		GID:     binary.BigEndian.Uint32(buf[16:20]),
		Size:    binary.BigEndian.Uint64(buf[20:28]),
		Mtime:   binary.BigEndian.Uint64(buf[28:36]),
		Ctime:   binary.BigEndian.Uint64(buf[36:44]),
		Nlink:   binary.BigEndian.Uint64(buf[44:52]),
	}, nil
}

// EncodeLayout serializes a layout record:
// u64 inode || u64 chunk_size || u32 slice_count || slices. Each slice is
// u64 id || u64 offset || u64 size || u32 key_len || key.
func EncodeLayout(l *FileLayout) []byte {
	size := layoutFixedLen
	for _, s := range l.Slices {
		size += sliceFixedLen + len(s.StorageKey)
	}

	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint64(buf, uint64(l.InodeID))
	buf = binary.BigEndian.AppendUint64(buf, l.ChunkSize)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(l.Slices)))

	for _, s := range l.Slices {
		buf = binary.BigEndian.AppendUint64(buf, s.SliceID)
		buf = binary.BigEndian.AppendUint64(buf, s.Offset)
		buf = binary.BigEndian.AppendUint64(buf, s.Size)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(s.StorageKey)))
		buf = append(buf, s.StorageKey...)
	}
	return buf
}

// DecodeLayout parses a layout record.
func DecodeLayout(buf []byte) (*FileLayout, error) {
	if len(buf) < layoutFixedLen {
		return nil, fmt.Errorf("layout value too short: %d bytes", len(buf))
	}

	layout := &FileLayout{
		InodeID:   InodeID(binary.BigEndian.Uint64(buf[0:8])),
		ChunkSize: binary.BigEndian.Uint64(buf[8:16]),
	}
	count := binary.BigEndian.Uint32(buf[16:20])

	pos := layoutFixedLen
	for i := uint32(0); i < count; i++ {
		if len(buf)-pos < sliceFixedLen {
			return nil, fmt.Errorf("layout slice %d truncated: %d bytes left", i, len(buf)-pos)
		}

		s := SliceInfo{
			SliceID: binary.BigEndian.Uint64(buf[pos : pos+8]),
			Offset:  binary.BigEndian.Uint64(buf[pos+8 : pos+16]),
			Size:    binary.BigEndian.Uint64(buf[pos+16 : pos+24]),
		}
		keyLen := binary.BigEndian.Uint32(buf[pos+24 : pos+28])
		pos += sliceFixedLen

		if uint64(len(buf)-pos) < uint64(keyLen) {
			return nil, fmt.Errorf("layout slice %d storage key truncated", i)
		}
		s.StorageKey = string(buf[pos : pos+int(keyLen)])
		pos += int(keyLen)

		layout.Slices = append(layout.Slices, s)
	}

	return layout, nil
}

// DentryNameFromKey extracts the entry name from a dentry key produced by
// DentryKey. Scan results use it to avoid decoding values twice.
func DentryNameFromKey(key []byte) (string, error) {
	if len(key) < 10 || key[0] != prefixDentry || key[9] != dentrySep {
		return "", fmt.Errorf("malformed dentry key of %d bytes", len(key))
	}
	return string(key[10:]), nil
}
