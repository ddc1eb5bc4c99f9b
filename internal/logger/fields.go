package logger

import "log/slog"

// Standard field keys for structured logging. Use these consistently so log
// aggregation can query across subsystems.
const (
	KeySubsystem = "subsystem" // originating subsystem (kv, meta, gateway, ...)
	KeyRequestID = "request_id"

	// File system operations
	KeyPath    = "path"
	KeyOldPath = "old_path"
	KeyNewPath = "new_path"
	KeyInode   = "inode"
	KeyParent  = "parent"
	KeyName    = "name"
	KeyMode    = "mode"
	KeySize    = "size"

	// I/O
	KeyOffset       = "offset"
	KeyCount        = "count"
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"
	KeySliceID      = "slice_id"
	KeyStorageKey   = "storage_key"

	// S3 / gateway
	KeyBucket   = "bucket"
	KeyKey      = "key"
	KeyMethod   = "method"
	KeyStatus   = "status"
	KeyClientIP = "client_ip"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyPartition  = "partition"
	KeyCacheHit   = "cache_hit"
	KeyEntries    = "entries"
)

// Err returns a slog.Attr for an error, or the zero Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Path returns a slog.Attr for a file or object path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Inode returns a slog.Attr for an inode id.
func Inode(id uint64) slog.Attr {
	return slog.Uint64(KeyInode, id)
}

// Bucket returns a slog.Attr for a bucket name.
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Key returns a slog.Attr for an object key.
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Offset returns a slog.Attr for a file offset.
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Size returns a slog.Attr for a byte size.
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
