package s3store

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Record encodings are versioned: every record starts with a u32 version.
// Decoders reject versions above the current one so an old binary fails
// loudly instead of misreading a newer record. Strings are u32 length plus
// bytes; integers are fixed-width big-endian.
const recordVersion uint32 = 1

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// reader consumes a record payload with bounds checking.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) uint32() (uint32, error) {
	if len(r.buf)-r.pos < 4 {
		return 0, fmt.Errorf("record truncated at byte %d", r.pos)
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) uint64() (uint64, error) {
	if len(r.buf)-r.pos < 8 {
		return 0, fmt.Errorf("record truncated at byte %d", r.pos)
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) string() (string, error) {
	length, err := r.uint32()
	if err != nil {
		return "", err
	}
	if uint64(len(r.buf)-r.pos) < uint64(length) {
		return "", fmt.Errorf("string of %d bytes truncated at byte %d", length, r.pos)
	}
	s := string(r.buf[r.pos : r.pos+int(length)])
	r.pos += int(length)
	return s, nil
}

func (r *reader) version() error {
	v, err := r.uint32()
	if err != nil {
		return err
	}
	if v > recordVersion {
		return fmt.Errorf("unsupported record version %d", v)
	}
	return nil
}

// EncodeBucketMeta serializes a bucket record.
func EncodeBucketMeta(m *BucketMeta) []byte {
	buf := make([]byte, 0, 64+len(m.Name)+len(m.Owner)+len(m.Region)+len(m.StorageClass))
	buf = binary.BigEndian.AppendUint32(buf, recordVersion)
	buf = appendString(buf, m.Name)
	buf = appendString(buf, m.Owner)
	buf = binary.BigEndian.AppendUint64(buf, m.CreationTime)
	buf = binary.BigEndian.AppendUint64(buf, m.ObjectCount)
	buf = binary.BigEndian.AppendUint64(buf, m.TotalSize)
	buf = appendString(buf, m.Region)
	buf = appendString(buf, m.StorageClass)
	return buf
}

// DecodeBucketMeta parses a bucket record.
func DecodeBucketMeta(buf []byte) (*BucketMeta, error) {
	r := &reader{buf: buf}
	if err := r.version(); err != nil {
		return nil, err
	}

	var m BucketMeta
	var err error
	if m.Name, err = r.string(); err != nil {
		return nil, err
	}
	if m.Owner, err = r.string(); err != nil {
		return nil, err
	}
	if m.CreationTime, err = r.uint64(); err != nil {
		return nil, err
	}
	if m.ObjectCount, err = r.uint64(); err != nil {
		return nil, err
	}
	if m.TotalSize, err = r.uint64(); err != nil {
		return nil, err
	}
	if m.Region, err = r.string(); err != nil {
		return nil, err
	}
	if m.StorageClass, err = r.string(); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeObjectMeta serializes an object record. User metadata pairs are
// written sorted by key so the encoding is deterministic.
func EncodeObjectMeta(m *ObjectMeta) []byte {
	buf := make([]byte, 0, 128+len(m.Bucket)+len(m.Key)+len(m.DataPath))
	buf = binary.BigEndian.AppendUint32(buf, recordVersion)
	buf = appendString(buf, m.Bucket)
	buf = appendString(buf, m.Key)
	buf = binary.BigEndian.AppendUint64(buf, m.Size)
	buf = appendString(buf, m.ETag)
	buf = appendString(buf, m.ContentType)
	buf = binary.BigEndian.AppendUint64(buf, m.LastModified)
	buf = appendString(buf, m.StorageClass)
	buf = appendString(buf, m.DataPath)

	keys := make([]string, 0, len(m.UserMetadata))
	for k := range m.UserMetadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		buf = appendString(buf, k)
		buf = appendString(buf, m.UserMetadata[k])
	}
	return buf
}

// DecodeObjectMeta parses an object record.
func DecodeObjectMeta(buf []byte) (*ObjectMeta, error) {
	r := &reader{buf: buf}
	if err := r.version(); err != nil {
		return nil, err
	}

	var m ObjectMeta
	var err error
	if m.Bucket, err = r.string(); err != nil {
		return nil, err
	}
	if m.Key, err = r.string(); err != nil {
		return nil, err
	}
	if m.Size, err = r.uint64(); err != nil {
		return nil, err
	}
	if m.ETag, err = r.string(); err != nil {
		return nil, err
	}
	if m.ContentType, err = r.string(); err != nil {
		return nil, err
	}
	if m.LastModified, err = r.uint64(); err != nil {
		return nil, err
	}
	if m.StorageClass, err = r.string(); err != nil {
		return nil, err
	}
	if m.DataPath, err = r.string(); err != nil {
		return nil, err
	}

	count, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if count > 0 {
		m.UserMetadata = make(map[string]string, count)
		for i := uint32(0); i < count; i++ {
			k, err := r.string()
			if err != nil {
				return nil, err
			}
			v, err := r.string()
			if err != nil {
				return nil, err
			}
			m.UserMetadata[k] = v
		}
	}
	return &m, nil
}
