package s3store

import (
	"context"
	"strings"

	"github.com/rouse2617/NimbusStore/internal/logger"
	"github.com/rouse2617/NimbusStore/pkg/kv"
	"github.com/rouse2617/NimbusStore/pkg/meta/errors"
)

// ============================================================================
// Key schema
// ============================================================================
//
// The sub-store occupies four prefixes, disjoint from the metadata engine's
// single-byte prefixes:
//
//   "B:"  || name            bucket record
//   "BL:" || name            bucket list entry (empty value, scan space)
//   "O:"  || bucket "/" key  object record
//   "OL:" || bucket "/" key  object list entry (empty value, scan space)
//
// Records and list entries are written together in one atomic batch; list
// scans therefore never observe a key without its record.

func bucketKey(name string) []byte {
	return []byte("B:" + name)
}

func bucketListKey(name string) []byte {
	return []byte("BL:" + name)
}

func objectKey(bucket, key string) []byte {
	return []byte("O:" + bucket + "/" + key)
}

func objectListKey(bucket, key string) []byte {
	return []byte("OL:" + bucket + "/" + key)
}

// Store is the S3 metadata sub-store over an ordered KV store.
type Store struct {
	kv kv.Store
}

// New creates a sub-store over an already-open KV store.
func New(store kv.Store) *Store {
	return &Store{kv: store}
}

// ============================================================================
// Buckets
// ============================================================================

// PutBucket creates a bucket record. Duplicate names fail with
// AlreadyExists.
func (s *Store) PutBucket(ctx context.Context, m *BucketMeta) error {
	if m.Name == "" {
		return errors.NewInvalidArgumentError("bucket name must not be empty")
	}

	exists, err := s.kv.Exists(ctx, bucketKey(m.Name))
	if err != nil {
		return errors.FromContextErr(err)
	}
	if exists {
		return errors.NewAlreadyExistsError(m.Name)
	}

	err = s.kv.WriteBatch(ctx, []kv.Op{
		kv.Put(bucketKey(m.Name), EncodeBucketMeta(m)),
		kv.Put(bucketListKey(m.Name), nil),
	})
	if err != nil {
		return errors.NewIOError(err.Error())
	}

	logger.SubInfo(logger.SubsysS3, "bucket created", logger.KeyBucket, m.Name)
	return nil
}

// GetBucket returns the bucket record.
func (s *Store) GetBucket(ctx context.Context, name string) (*BucketMeta, error) {
	value, err := s.kv.Get(ctx, bucketKey(name))
	if err == kv.ErrNotFound {
		return nil, errors.NewNotFoundError(name, "bucket")
	}
	if err != nil {
		return nil, errors.FromContextErr(err)
	}

	m, err := DecodeBucketMeta(value)
	if err != nil {
		return nil, errors.NewIOError(err.Error())
	}
	return m, nil
}

// BucketExists reports whether the bucket exists.
func (s *Store) BucketExists(ctx context.Context, name string) (bool, error) {
	exists, err := s.kv.Exists(ctx, bucketKey(name))
	if err != nil {
		return false, errors.FromContextErr(err)
	}
	return exists, nil
}

// DeleteBucket removes an empty bucket. A bucket that still holds objects
// fails with NotEmpty.
func (s *Store) DeleteBucket(ctx context.Context, name string) error {
	exists, err := s.kv.Exists(ctx, bucketKey(name))
	if err != nil {
		return errors.FromContextErr(err)
	}
	if !exists {
		return errors.NewNotFoundError(name, "bucket")
	}

	remaining, err := s.kv.Scan(ctx, []byte("OL:"+name+"/"), 1)
	if err != nil {
		return errors.FromContextErr(err)
	}
	if len(remaining) > 0 {
		return errors.NewNotEmptyError(name)
	}

	err = s.kv.WriteBatch(ctx, []kv.Op{
		kv.Delete(bucketKey(name)),
		kv.Delete(bucketListKey(name)),
	})
	if err != nil {
		return errors.NewIOError(err.Error())
	}

	logger.SubInfo(logger.SubsysS3, "bucket deleted", logger.KeyBucket, name)
	return nil
}

// ListBuckets returns every bucket record in ascending name order.
func (s *Store) ListBuckets(ctx context.Context) ([]BucketMeta, error) {
	pairs, err := s.kv.Scan(ctx, []byte("BL:"), 0)
	if err != nil {
		return nil, errors.FromContextErr(err)
	}

	buckets := make([]BucketMeta, 0, len(pairs))
	for _, pair := range pairs {
		name := strings.TrimPrefix(string(pair.Key), "BL:")
		m, err := s.GetBucket(ctx, name)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, *m)
	}
	return buckets, nil
}

// UpdateBucketStats atomically adjusts a bucket's object count and total
// size by the given deltas.
func (s *Store) UpdateBucketStats(ctx context.Context, name string, sizeDelta, countDelta int64) error {
	txn, err := s.kv.Begin(ctx)
	if err != nil {
		return errors.FromContextErr(err)
	}
	defer txn.Rollback()

	value, err := txn.Get(bucketKey(name))
	if err == kv.ErrNotFound {
		return errors.NewNotFoundError(name, "bucket")
	}
	if err != nil {
		return errors.NewIOError(err.Error())
	}

	m, err := DecodeBucketMeta(value)
	if err != nil {
		return errors.NewIOError(err.Error())
	}

	m.TotalSize = applyDelta(m.TotalSize, sizeDelta)
	m.ObjectCount = applyDelta(m.ObjectCount, countDelta)

	if err := txn.Put(bucketKey(name), EncodeBucketMeta(m)); err != nil {
		return errors.NewIOError(err.Error())
	}
	if err := txn.Commit(); err != nil {
		return errors.NewIOError(err.Error())
	}
	return nil
}

func applyDelta(value uint64, delta int64) uint64 {
	if delta >= 0 {
		return value + uint64(delta)
	}
	dec := uint64(-delta)
	if dec > value {
		return 0
	}
	return value - dec
}

// ============================================================================
// Objects
// ============================================================================

// PutObject stores an object record and bumps the bucket stats. Overwrites
// adjust the size delta instead of the count.
func (s *Store) PutObject(ctx context.Context, m *ObjectMeta) error {
	if m.Bucket == "" || m.Key == "" {
		return errors.NewInvalidArgumentError("object bucket and key must not be empty")
	}

	exists, err := s.kv.Exists(ctx, bucketKey(m.Bucket))
	if err != nil {
		return errors.FromContextErr(err)
	}
	if !exists {
		return errors.NewNotFoundError(m.Bucket, "bucket")
	}

	sizeDelta := int64(m.Size)
	countDelta := int64(1)
	if prev, err := s.GetObject(ctx, m.Bucket, m.Key); err == nil {
		sizeDelta = int64(m.Size) - int64(prev.Size)
		countDelta = 0
	} else if !errors.IsNotFound(err) {
		return err
	}

	err = s.kv.WriteBatch(ctx, []kv.Op{
		kv.Put(objectKey(m.Bucket, m.Key), EncodeObjectMeta(m)),
		kv.Put(objectListKey(m.Bucket, m.Key), nil),
	})
	if err != nil {
		return errors.NewIOError(err.Error())
	}

	return s.UpdateBucketStats(ctx, m.Bucket, sizeDelta, countDelta)
}

// GetObject returns the object record.
func (s *Store) GetObject(ctx context.Context, bucket, key string) (*ObjectMeta, error) {
	value, err := s.kv.Get(ctx, objectKey(bucket, key))
	if err == kv.ErrNotFound {
		return nil, errors.NewNotFoundError(bucket+"/"+key, "object")
	}
	if err != nil {
		return nil, errors.FromContextErr(err)
	}

	m, err := DecodeObjectMeta(value)
	if err != nil {
		return nil, errors.NewIOError(err.Error())
	}
	return m, nil
}

// ObjectExists reports whether the object exists.
func (s *Store) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	exists, err := s.kv.Exists(ctx, objectKey(bucket, key))
	if err != nil {
		return false, errors.FromContextErr(err)
	}
	return exists, nil
}

// DeleteObject removes the object record and decrements the bucket stats by
// the removed object's size.
func (s *Store) DeleteObject(ctx context.Context, bucket, key string) error {
	m, err := s.GetObject(ctx, bucket, key)
	if err != nil {
		return err
	}

	err = s.kv.WriteBatch(ctx, []kv.Op{
		kv.Delete(objectKey(bucket, key)),
		kv.Delete(objectListKey(bucket, key)),
	})
	if err != nil {
		return errors.NewIOError(err.Error())
	}

	return s.UpdateBucketStats(ctx, bucket, -int64(m.Size), -1)
}

// ListObjects returns object records from bucket whose keys start with
// prefix and sort strictly greater than marker, in ascending key order,
// truncated to maxKeys. The second result reports whether more keys remain
// past the returned batch.
func (s *Store) ListObjects(ctx context.Context, bucket, prefix, marker string, maxKeys int) ([]ObjectMeta, bool, error) {
	exists, err := s.kv.Exists(ctx, bucketKey(bucket))
	if err != nil {
		return nil, false, errors.FromContextErr(err)
	}
	if !exists {
		return nil, false, errors.NewNotFoundError(bucket, "bucket")
	}

	if maxKeys <= 0 {
		maxKeys = 1000
	}

	scanPrefix := "OL:" + bucket + "/" + prefix
	pairs, err := s.kv.Scan(ctx, []byte(scanPrefix), 0)
	if err != nil {
		return nil, false, errors.FromContextErr(err)
	}

	listPrefix := "OL:" + bucket + "/"
	objects := make([]ObjectMeta, 0, min(len(pairs), maxKeys))
	truncated := false
	for _, pair := range pairs {
		key := strings.TrimPrefix(string(pair.Key), listPrefix)
		if marker != "" && key <= marker {
			continue
		}
		if len(objects) >= maxKeys {
			truncated = true
			break
		}

		m, err := s.GetObject(ctx, bucket, key)
		if err != nil {
			return nil, false, err
		}
		objects = append(objects, *m)
	}

	return objects, truncated, nil
}
