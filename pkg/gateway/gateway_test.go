package gateway

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chunkmemory "github.com/rouse2617/NimbusStore/pkg/chunkstore/memory"
	kvmemory "github.com/rouse2617/NimbusStore/pkg/kv/memory"
	"github.com/rouse2617/NimbusStore/pkg/meta"
	"github.com/rouse2617/NimbusStore/pkg/namespace"
	"github.com/rouse2617/NimbusStore/pkg/s3store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := kvmemory.New()
	partition, err := meta.NewPartition(meta.PartitionConfig{
		StartInode: 1,
		EndInode:   1 << 20,
	}, store)
	require.NoError(t, err)

	metaSvc, err := meta.NewService(context.Background(), []*meta.Partition{partition})
	require.NoError(t, err)

	ns := namespace.NewService(namespace.Config{
		Metadata:      metaSvc,
		ChunkStore:    chunkmemory.New(),
		DefaultBucket: "default",
	})

	return New(Config{Owner: "tester", Region: "us-east-1"}, s3store.New(store), ns)
}

func do(t *testing.T, s *Server, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestBucketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	// Create.
	rec := do(t, s, http.MethodPut, "/mybucket", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Duplicate create conflicts.
	rec = do(t, s, http.MethodPut, "/mybucket", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>BucketAlreadyExists</Code>")

	// Head.
	rec = do(t, s, http.MethodHead, "/mybucket", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodHead, "/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// List shows the bucket with its creation date.
	rec = do(t, s, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))

	var listing struct {
		XMLName xml.Name `xml:"ListAllMyBucketsResult"`
		Owner   struct {
			ID string `xml:"ID"`
		} `xml:"Owner"`
		Buckets []struct {
			Name         string `xml:"Name"`
			CreationDate string `xml:"CreationDate"`
		} `xml:"Buckets>Bucket"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, "tester", listing.Owner.ID)
	require.Len(t, listing.Buckets, 1)
	assert.Equal(t, "mybucket", listing.Buckets[0].Name)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, listing.Buckets[0].CreationDate)

	// Delete.
	rec = do(t, s, http.MethodDelete, "/mybucket", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodHead, "/mybucket", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestObjectLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b", "", nil).Code)

	body := "hello object world"
	sum := md5.Sum([]byte(body))
	wantETag := `"` + hex.EncodeToString(sum[:]) + `"`

	// Put with content type and user metadata.
	rec := do(t, s, http.MethodPut, "/b/docs/hello.txt", body, map[string]string{
		"Content-Type":      "text/plain",
		"x-amz-meta-author": "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wantETag, rec.Header().Get("ETag"))

	// Get returns the body and the captured headers.
	rec = do(t, s, http.MethodGet, "/b/docs/hello.txt", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, rec.Body.String())
	assert.Equal(t, wantETag, rec.Header().Get("ETag"))
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "alice", rec.Header().Get("x-amz-meta-author"))
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))

	// Head carries headers, no body.
	rec = do(t, s, http.MethodHead, "/b/docs/hello.txt", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wantETag, rec.Header().Get("ETag"))

	// Delete, then the key is gone.
	rec = do(t, s, http.MethodDelete, "/b/docs/hello.txt", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodGet, "/b/docs/hello.txt", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>NoSuchKey</Code>")
}

func TestObjectOverwriteChangesETag(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b", "", nil).Code)

	first := do(t, s, http.MethodPut, "/b/k", "first version", nil)
	require.Equal(t, http.StatusOK, first.Code)
	rec := do(t, s, http.MethodPut, "/b/k", "second", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sum := md5.Sum([]byte("second"))
	wantETag := `"` + hex.EncodeToString(sum[:]) + `"`
	assert.Equal(t, wantETag, rec.Header().Get("ETag"))
	assert.NotEqual(t, first.Header().Get("ETag"), rec.Header().Get("ETag"))

	get := do(t, s, http.MethodGet, "/b/k", "", nil)
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "second", get.Body.String())
	assert.Equal(t, "6", get.Header().Get("Content-Length"))
	assert.Equal(t, wantETag, get.Header().Get("ETag"))
}

func TestPutObjectMissingBucket(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/ghost/k", "data", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>NoSuchBucket</Code>")
}

func TestDeleteNonEmptyBucket(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b", "", nil).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b/k", "x", nil).Code)

	rec := do(t, s, http.MethodDelete, "/b", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>BucketNotEmpty</Code>")
}

type listResult struct {
	XMLName        xml.Name `xml:"ListBucketResult"`
	Name           string   `xml:"Name"`
	Prefix         string   `xml:"Prefix"`
	IsTruncated    bool     `xml:"IsTruncated"`
	KeyCount       int      `xml:"KeyCount"`
	NextMarker     string   `xml:"NextMarker"`
	NextToken      string   `xml:"NextContinuationToken"`
	Contents       []struct {
		Key  string `xml:"Key"`
		ETag string `xml:"ETag"`
		Size uint64 `xml:"Size"`
	} `xml:"Contents"`
	CommonPrefixes []struct {
		Prefix string `xml:"Prefix"`
	} `xml:"CommonPrefixes"`
}

func TestListObjectsV1(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b", "", nil).Code)
	for _, k := range []string{"a.txt", "dir/one", "dir/two", "z.txt"} {
		require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b/"+k, "x", nil).Code)
	}

	rec := do(t, s, http.MethodGet, "/b", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result listResult
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "b", result.Name)
	assert.False(t, result.IsTruncated)
	require.Len(t, result.Contents, 4)
	assert.Equal(t, "a.txt", result.Contents[0].Key)
	assert.Equal(t, "z.txt", result.Contents[3].Key)
}

func TestListObjectsDelimiter(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b", "", nil).Code)
	for _, k := range []string{"a.txt", "dir/one", "dir/two", "other/x"} {
		require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b/"+k, "x", nil).Code)
	}

	rec := do(t, s, http.MethodGet, "/b?delimiter=/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result listResult
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &result))

	require.Len(t, result.Contents, 1)
	assert.Equal(t, "a.txt", result.Contents[0].Key)

	require.Len(t, result.CommonPrefixes, 2)
	assert.Equal(t, "dir/", result.CommonPrefixes[0].Prefix)
	assert.Equal(t, "other/", result.CommonPrefixes[1].Prefix)
}

func TestListObjectsV1Paging(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b", "", nil).Code)
	for _, k := range []string{"k1", "k2", "k3"} {
		require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b/"+k, "x", nil).Code)
	}

	rec := do(t, s, http.MethodGet, "/b?max-keys=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page1 listResult
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &page1))
	assert.True(t, page1.IsTruncated)
	require.Len(t, page1.Contents, 2)
	assert.Equal(t, "k2", page1.NextMarker)

	rec = do(t, s, http.MethodGet, "/b?max-keys=2&marker=k2", "", nil)
	var page2 listResult
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &page2))
	assert.False(t, page2.IsTruncated)
	require.Len(t, page2.Contents, 1)
	assert.Equal(t, "k3", page2.Contents[0].Key)
}

func TestListObjectsV2(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b", "", nil).Code)
	for _, k := range []string{"k1", "k2", "k3"} {
		require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b/"+k, "x", nil).Code)
	}

	rec := do(t, s, http.MethodGet, "/b?list-type=2&max-keys=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page1 listResult
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &page1))
	assert.True(t, page1.IsTruncated)
	assert.Equal(t, 2, page1.KeyCount)
	assert.Equal(t, "k2", page1.NextToken)

	rec = do(t, s, http.MethodGet, "/b?list-type=2&max-keys=2&continuation-token=k2", "", nil)
	var page2 listResult
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &page2))
	assert.False(t, page2.IsTruncated)
	assert.Equal(t, 1, page2.KeyCount)
	assert.Equal(t, "k3", page2.Contents[0].Key)
}

func TestListObjectsExplicitZeroMaxKeys(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b", "", nil).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b/k", "x", nil).Code)

	// An explicit max-keys=0 returns an empty page, not the default 1000.
	rec := do(t, s, http.MethodGet, "/b?max-keys=0", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result listResult
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &result))
	assert.Empty(t, result.Contents)
	assert.False(t, result.IsTruncated)

	// The bucket check still applies.
	rec = do(t, s, http.MethodGet, "/ghost?max-keys=0", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>NoSuchBucket</Code>")
}

func TestListObjectsMissingBucket(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>NoSuchBucket</Code>")
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/", "", nil)
	assert.NotEmpty(t, rec.Header().Get("x-amz-request-id"))
}

func TestBucketStatsReflectObjectOps(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b", "", nil).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/b/k", "12345", nil).Code)

	bucket, err := s.meta.GetBucket(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bucket.ObjectCount)
	assert.Equal(t, uint64(5), bucket.TotalSize)

	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, "/b/k", "", nil).Code)
	bucket, err = s.meta.GetBucket(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bucket.ObjectCount)
	assert.Equal(t, uint64(0), bucket.TotalSize)
}
