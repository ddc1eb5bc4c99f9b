package gateway

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rouse2617/NimbusStore/internal/logger"
	"github.com/rouse2617/NimbusStore/pkg/meta"
	"github.com/rouse2617/NimbusStore/pkg/meta/errors"
	metrics "github.com/rouse2617/NimbusStore/pkg/metrics/prometheus"
	"github.com/rouse2617/NimbusStore/pkg/s3store"
)

const userMetaPrefix = "x-amz-meta-"

// objectPath places an object's body in the metadata tree: buckets are
// top-level directories, keys are paths below them.
func objectPath(bucket, key string) string {
	return "/" + bucket + "/" + key
}

func objectParams(r *http.Request) (string, string) {
	return chi.URLParam(r, "bucket"), chi.URLParam(r, "*")
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bucket, key := objectParams(r)
	if key == "" || strings.HasSuffix(key, "/") {
		writeError(w, errInvalidArg)
		return
	}

	exists, err := s.meta.BucketExists(ctx, bucket)
	if err != nil {
		writeEngineError(w, err, true)
		return
	}
	if !exists {
		writeError(w, errNoSuchBucket)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, errInternal)
		return
	}

	// Overwrites start from a clean file so the old layout and size go
	// away with the inode; the replaced chunks are orphaned for the chunk
	// store to reclaim.
	path := objectPath(bucket, key)
	if err := s.ns.Remove(ctx, path); err != nil && !errors.IsNotFound(err) {
		writeEngineError(w, err, false)
		return
	}

	parent, _ := meta.SplitParentChild(path)
	if err := s.ns.MkdirAll(ctx, parent, meta.FileMode(0755), 0, 0); err != nil {
		writeEngineError(w, err, false)
		return
	}
	if _, err := s.ns.Create(ctx, path, meta.FileMode(meta.ModeRegular|0644), 0, 0); err != nil {
		writeEngineError(w, err, false)
		return
	}
	if err := s.ns.Write(ctx, path, body, 0); err != nil {
		logger.SubError(logger.SubsysGateway, "object body write failed",
			logger.KeyBucket, bucket, logger.KeyKey, key, logger.KeyError, err.Error())
		writeEngineError(w, err, false)
		return
	}
	metrics.ChunkOpsTotal.WithLabelValues("put", "ok").Inc()
	metrics.ChunkBytesTotal.WithLabelValues("in").Add(float64(len(body)))

	sum := md5.Sum(body)
	etag := hex.EncodeToString(sum[:])

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "binary/octet-stream"
	}

	var userMeta map[string]string
	for header, values := range r.Header {
		name := strings.ToLower(header)
		if strings.HasPrefix(name, userMetaPrefix) && len(values) > 0 {
			if userMeta == nil {
				userMeta = make(map[string]string)
			}
			userMeta[strings.TrimPrefix(name, userMetaPrefix)] = values[0]
		}
	}

	record := &s3store.ObjectMeta{
		Bucket:       bucket,
		Key:          key,
		Size:         uint64(len(body)),
		ETag:         etag,
		ContentType:  contentType,
		LastModified: now(),
		StorageClass: "STANDARD",
		DataPath:     path,
		UserMetadata: userMeta,
	}
	if err := s.meta.PutObject(ctx, record); err != nil {
		if derr := s.ns.Remove(ctx, path); derr != nil && !errors.IsNotFound(derr) {
			logger.SubWarn(logger.SubsysGateway, "orphaned file after failed object put",
				logger.KeyPath, path, logger.KeyError, derr.Error())
		}
		writeEngineError(w, err, false)
		return
	}

	w.Header().Set("ETag", `"`+etag+`"`)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeObjectHeaders(w http.ResponseWriter, m *s3store.ObjectMeta) {
	w.Header().Set("Content-Length", strconv.FormatUint(m.Size, 10))
	w.Header().Set("Content-Type", m.ContentType)
	w.Header().Set("ETag", `"`+m.ETag+`"`)
	w.Header().Set("Last-Modified", httpDate(m.LastModified))
	for k, v := range m.UserMetadata {
		w.Header().Set(userMetaPrefix+k, v)
	}
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	bucket, key := objectParams(r)

	record, err := s.meta.GetObject(r.Context(), bucket, key)
	if err != nil {
		writeEngineError(w, err, false)
		return
	}

	body, err := s.ns.Read(r.Context(), record.DataPath, 0, record.Size)
	if err != nil {
		logger.SubError(logger.SubsysGateway, "object body read failed",
			logger.KeyPath, record.DataPath, logger.KeyError, err.Error())
		writeError(w, errInternal)
		return
	}
	metrics.ChunkBytesTotal.WithLabelValues("out").Add(float64(len(body)))

	s.writeObjectHeaders(w, record)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) handleHeadObject(w http.ResponseWriter, r *http.Request) {
	bucket, key := objectParams(r)

	record, err := s.meta.GetObject(r.Context(), bucket, key)
	if err != nil {
		// HEAD responses carry no body, only the status.
		w.WriteHeader(mapError(err, false).status)
		return
	}

	s.writeObjectHeaders(w, record)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bucket, key := objectParams(r)

	record, err := s.meta.GetObject(ctx, bucket, key)
	if err != nil {
		writeEngineError(w, err, false)
		return
	}

	if err := s.meta.DeleteObject(ctx, bucket, key); err != nil {
		writeEngineError(w, err, false)
		return
	}
	if err := s.ns.Remove(ctx, record.DataPath); err != nil && !errors.IsNotFound(err) {
		logger.SubWarn(logger.SubsysGateway, "object file delete failed",
			logger.KeyPath, record.DataPath, logger.KeyError, err.Error())
	}

	w.WriteHeader(http.StatusNoContent)
}
