// Package namespace provides the unified path layer: bidirectional
// translation between object paths (s3://bucket/key) and inode paths
// (/key), and the pipeline that splices metadata transactions with
// chunk-store I/O for reads and writes.
package namespace

import "strings"

const s3Scheme = "s3://"

// ParsedPath is the normalized form of an input path.
type ParsedPath struct {
	IsS3      bool
	Bucket    string
	Key       string
	PosixPath string
}

// PathConverter translates between the two path shapes. The default bucket
// names the namespace POSIX paths belong to.
type PathConverter struct {
	defaultBucket string
}

// NewPathConverter creates a converter with the given default bucket.
func NewPathConverter(defaultBucket string) *PathConverter {
	if defaultBucket == "" {
		defaultBucket = "default"
	}
	return &PathConverter{defaultBucket: defaultBucket}
}

// S3ToPosix converts s3://bucket/data/f.txt to /data/f.txt. Paths that are
// not s3:// URLs pass through unchanged.
func (c *PathConverter) S3ToPosix(s3Path string) string {
	if !strings.HasPrefix(s3Path, s3Scheme) {
		return s3Path
	}
	rest := s3Path[len(s3Scheme):]
	pos := strings.IndexByte(rest, '/')
	if pos < 0 {
		return "/"
	}
	return rest[pos:]
}

// PosixToS3 converts /data/f.txt to s3://defaultBucket/data/f.txt.
func (c *PathConverter) PosixToS3(posixPath string) string {
	return s3Scheme + c.defaultBucket + posixPath
}

// Parse normalizes any input path shape.
func (c *PathConverter) Parse(path string) ParsedPath {
	if strings.HasPrefix(path, s3Scheme) {
		rest := path[len(s3Scheme):]
		pos := strings.IndexByte(rest, '/')
		if pos < 0 {
			return ParsedPath{
				IsS3:      true,
				Bucket:    rest,
				Key:       "",
				PosixPath: "/",
			}
		}
		return ParsedPath{
			IsS3:      true,
			Bucket:    rest[:pos],
			Key:       rest[pos+1:],
			PosixPath: "/" + rest[pos+1:],
		}
	}

	key := ""
	if len(path) > 1 {
		key = path[1:]
	}
	return ParsedPath{
		IsS3:      false,
		Bucket:    c.defaultBucket,
		Key:       key,
		PosixPath: path,
	}
}
