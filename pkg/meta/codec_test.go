package meta

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDentryRoundTrip(t *testing.T) {
	original := &Dentry{Name: "report.txt", InodeID: 42, Type: TypeRegular}

	decoded, err := DecodeDentry(EncodeDentry(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDentryRoundTripEmptyName(t *testing.T) {
	original := &Dentry{Name: "", InodeID: 7, Type: TypeDirectory}

	decoded, err := DecodeDentry(EncodeDentry(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeDentryRejectsShortPayload(t *testing.T) {
	_, err := DecodeDentry([]byte{0, 0, 0})
	assert.Error(t, err)
}

func TestDecodeDentryRejectsTruncatedName(t *testing.T) {
	// Claims a 100-byte name but carries only a few bytes.
	buf := []byte{0, 0, 0, 100, 'a', 'b', 'c'}
	_, err := DecodeDentry(buf)
	assert.Error(t, err)
}

func TestInodeRoundTrip(t *testing.T) {
	original := &InodeAttr{
		InodeID: 99,
		Mode:    FileMode(ModeRegular | 0644),
		UID:     1000,
		GID:     1000,
		Size:    4096,
		Mtime:   1700000000,
		Ctime:   1700000001,
		Nlink:   2,
	}

	decoded, err := DecodeInode(EncodeInode(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeInodeRejectsShortPayload(t *testing.T) {
	_, err := DecodeInode(make([]byte, 51))
	assert.Error(t, err)
}

func TestLayoutRoundTrip(t *testing.T) {
	original := &FileLayout{
		InodeID:   5,
		ChunkSize: DefaultChunkSize,
		Slices: []SliceInfo{
			{SliceID: 1, Offset: 0, Size: 100, StorageKey: "chunks/5/0"},
			{SliceID: 2, Offset: 100, Size: 250, StorageKey: "chunks/5/100"},
		},
	}

	decoded, err := DecodeLayout(EncodeLayout(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestLayoutRoundTripNoSlices(t *testing.T) {
	original := &FileLayout{InodeID: 8, ChunkSize: DefaultChunkSize}

	decoded, err := DecodeLayout(EncodeLayout(original))
	require.NoError(t, err)
	assert.Equal(t, original.InodeID, decoded.InodeID)
	assert.Empty(t, decoded.Slices)
}

func TestDecodeLayoutRejectsTruncatedSlice(t *testing.T) {
	original := &FileLayout{
		InodeID:   5,
		ChunkSize: DefaultChunkSize,
		Slices:    []SliceInfo{{SliceID: 1, Offset: 0, Size: 10, StorageKey: "k"}},
	}
	buf := EncodeLayout(original)

	_, err := DecodeLayout(buf[:len(buf)-1])
	assert.Error(t, err)
}

func TestInodeKeysSortNumerically(t *testing.T) {
	// Big-endian encoding keeps lexicographic and numeric order aligned,
	// which the dentry prefix scan depends on.
	assert.True(t, bytes.Compare(InodeKey(9), InodeKey(10)) < 0)
	assert.True(t, bytes.Compare(InodeKey(255), InodeKey(256)) < 0)
	assert.True(t, bytes.Compare(InodeKey(1<<32), InodeKey(1<<32+1)) < 0)
}

func TestKeySpacesAreDisjoint(t *testing.T) {
	assert.NotEqual(t, InodeKey(1)[0], LayoutKey(1)[0])
	assert.NotEqual(t, InodeKey(1)[0], DentryKey(1, "x")[0])
	assert.NotEqual(t, LayoutKey(1)[0], DentryKey(1, "x")[0])
}

func TestDentryNameFromKey(t *testing.T) {
	name, err := DentryNameFromKey(DentryKey(12, "notes.md"))
	require.NoError(t, err)
	assert.Equal(t, "notes.md", name)

	_, err = DentryNameFromKey([]byte("bogus"))
	assert.Error(t, err)
}
