package s3store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kvmemory "github.com/rouse2617/NimbusStore/pkg/kv/memory"
	"github.com/rouse2617/NimbusStore/pkg/meta/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(kvmemory.New())
}

func TestBucketLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bucket := &BucketMeta{
		Name:         "b",
		Owner:        "u",
		CreationTime: 1700000000,
		Region:       "us-east-1",
		StorageClass: "STANDARD",
	}
	require.NoError(t, s.PutBucket(ctx, bucket))

	got, err := s.GetBucket(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, bucket, got)

	exists, err := s.BucketExists(ctx, "b")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.PutObject(ctx, &ObjectMeta{
		Bucket: "b", Key: "k", Size: 1024, ETag: "e", LastModified: 1700000001,
	}))

	objects, truncated, err := s.ListObjects(ctx, "b", "", "", 0)
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, objects, 1)
	assert.Equal(t, "k", objects[0].Key)

	// Deleting a non-empty bucket fails with NotEmpty.
	err = s.DeleteBucket(ctx, "b")
	assert.True(t, errors.IsNotEmpty(err))

	require.NoError(t, s.DeleteObject(ctx, "b", "k"))
	require.NoError(t, s.DeleteBucket(ctx, "b"))

	exists, err = s.BucketExists(ctx, "b")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPutBucketDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.PutBucket(ctx, &BucketMeta{Name: "b"}))
	err := s.PutBucket(ctx, &BucketMeta{Name: "b"})
	assert.True(t, errors.IsAlreadyExists(err))
}

func TestGetBucketMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetBucket(context.Background(), "ghost")
	assert.True(t, errors.IsNotFound(err))
}

func TestListBucketsOrdered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, name := range []string{"zoo", "alpha", "mid"} {
		require.NoError(t, s.PutBucket(ctx, &BucketMeta{Name: name}))
	}

	buckets, err := s.ListBuckets(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	assert.Equal(t, "alpha", buckets[0].Name)
	assert.Equal(t, "mid", buckets[1].Name)
	assert.Equal(t, "zoo", buckets[2].Name)
}

func TestBucketStatsTracking(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.PutBucket(ctx, &BucketMeta{Name: "b"}))
	require.NoError(t, s.PutObject(ctx, &ObjectMeta{Bucket: "b", Key: "k1", Size: 100}))
	require.NoError(t, s.PutObject(ctx, &ObjectMeta{Bucket: "b", Key: "k2", Size: 50}))

	bucket, err := s.GetBucket(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), bucket.ObjectCount)
	assert.Equal(t, uint64(150), bucket.TotalSize)

	// Overwrite adjusts size without bumping the count.
	require.NoError(t, s.PutObject(ctx, &ObjectMeta{Bucket: "b", Key: "k1", Size: 10}))
	bucket, err = s.GetBucket(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), bucket.ObjectCount)
	assert.Equal(t, uint64(60), bucket.TotalSize)

	require.NoError(t, s.DeleteObject(ctx, "b", "k1"))
	bucket, err = s.GetBucket(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bucket.ObjectCount)
	assert.Equal(t, uint64(50), bucket.TotalSize)
}

func TestPutObjectMissingBucket(t *testing.T) {
	s := newTestStore(t)
	err := s.PutObject(context.Background(), &ObjectMeta{Bucket: "nope", Key: "k"})
	assert.True(t, errors.IsNotFound(err))
}

func TestObjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.PutBucket(ctx, &BucketMeta{Name: "b"}))

	obj := &ObjectMeta{
		Bucket: "b", Key: "path/to/thing", Size: 5, ETag: "abc",
		ContentType: "text/plain", LastModified: 1700000002,
		StorageClass: "STANDARD", DataPath: "/b/path/to/thing",
		UserMetadata: map[string]string{"x": "y"},
	}
	require.NoError(t, s.PutObject(ctx, obj))

	got, err := s.GetObject(ctx, "b", "path/to/thing")
	require.NoError(t, err)
	assert.Equal(t, obj, got)

	ok, err := s.ObjectExists(ctx, "b", "path/to/thing")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListObjectsOrderingPrefixAndLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.PutBucket(ctx, &BucketMeta{Name: "b"}))

	keys := []string{"a/1", "a/2", "a/3", "b/1", "c"}
	for _, k := range keys {
		require.NoError(t, s.PutObject(ctx, &ObjectMeta{Bucket: "b", Key: k, Size: 1}))
	}

	// All keys ascend.
	objects, truncated, err := s.ListObjects(ctx, "b", "", "", 10)
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, objects, 5)
	for i := 1; i < len(objects); i++ {
		assert.Less(t, objects[i-1].Key, objects[i].Key)
	}

	// Prefix filters.
	objects, _, err = s.ListObjects(ctx, "b", "a/", "", 10)
	require.NoError(t, err)
	require.Len(t, objects, 3)
	for _, o := range objects {
		assert.Contains(t, o.Key, "a/")
	}

	// Limit truncates and reports it.
	objects, truncated, err = s.ListObjects(ctx, "b", "", "", 2)
	require.NoError(t, err)
	assert.True(t, truncated)
	require.Len(t, objects, 2)
	assert.Equal(t, "a/1", objects[0].Key)
	assert.Equal(t, "a/2", objects[1].Key)
}

func TestListObjectsMarkerExclusive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.PutBucket(ctx, &BucketMeta{Name: "b"}))

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("k%d", i)
		require.NoError(t, s.PutObject(ctx, &ObjectMeta{Bucket: "b", Key: key, Size: 1}))
	}

	// Marker is exclusive: strictly greater keys only.
	objects, _, err := s.ListObjects(ctx, "b", "", "k2", 10)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "k3", objects[0].Key)
	assert.Equal(t, "k4", objects[1].Key)

	// A marker between keys behaves the same.
	objects, _, err = s.ListObjects(ctx, "b", "", "k2x", 10)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "k3", objects[0].Key)

	// Paging with the last key as marker walks the whole set.
	var all []string
	marker := ""
	for {
		page, truncated, err := s.ListObjects(ctx, "b", "", marker, 2)
		require.NoError(t, err)
		for _, o := range page {
			all = append(all, o.Key)
		}
		if !truncated {
			break
		}
		marker = page[len(page)-1].Key
	}
	assert.Equal(t, []string{"k0", "k1", "k2", "k3", "k4"}, all)
}

func TestListObjectsMissingBucket(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.ListObjects(context.Background(), "nope", "", "", 10)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteObjectMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.PutBucket(ctx, &BucketMeta{Name: "b"}))

	err := s.DeleteObject(ctx, "b", "ghost")
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateBucketStatsClampsAtZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.PutBucket(ctx, &BucketMeta{Name: "b"}))

	require.NoError(t, s.UpdateBucketStats(ctx, "b", -500, -5))
	bucket, err := s.GetBucket(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bucket.TotalSize)
	assert.Equal(t, uint64(0), bucket.ObjectCount)
}
