package gateway

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rouse2617/NimbusStore/internal/logger"
	"github.com/rouse2617/NimbusStore/pkg/meta"
	"github.com/rouse2617/NimbusStore/pkg/meta/errors"
	"github.com/rouse2617/NimbusStore/pkg/s3store"
)

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.meta.ListBuckets(r.Context())
	if err != nil {
		writeEngineError(w, err, true)
		return
	}

	doc := listAllMyBucketsResult{
		Xmlns: s3Namespace,
		Owner: ownerXML{ID: s.cfg.Owner, DisplayName: s.cfg.Owner},
	}
	for _, b := range buckets {
		doc.Buckets = append(doc.Buckets, bucketXML{
			Name:         b.Name,
			CreationDate: iso8601Millis(b.CreationTime),
		})
	}
	writeXML(w, http.StatusOK, doc)
}

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	err := s.meta.PutBucket(r.Context(), &s3store.BucketMeta{
		Name:         name,
		Owner:        s.cfg.Owner,
		CreationTime: now(),
		Region:       s.cfg.Region,
		StorageClass: "STANDARD",
	})
	if err != nil {
		writeEngineError(w, err, true)
		return
	}

	// The bucket's directory roots its objects in the metadata tree.
	if err := s.ns.MkdirAll(r.Context(), "/"+name, meta.FileMode(0755), 0, 0); err != nil {
		writeEngineError(w, err, true)
		return
	}

	w.Header().Set("Location", "/"+name)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteBucket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	if err := s.meta.DeleteBucket(r.Context(), name); err != nil {
		writeEngineError(w, err, true)
		return
	}
	if err := s.ns.Rmdir(r.Context(), "/"+name); err != nil && !errors.IsNotFound(err) {
		logger.SubWarn(logger.SubsysGateway, "bucket directory remove failed",
			logger.KeyBucket, name, logger.KeyError, err.Error())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHeadBucket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	exists, err := s.meta.BucketExists(r.Context(), name)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !exists {
		// HEAD responses carry no body, only the status.
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	query := r.URL.Query()

	v2 := query.Get("list-type") == "2"
	prefix := query.Get("prefix")
	delimiter := query.Get("delimiter")

	marker := query.Get("marker")
	if v2 {
		marker = query.Get("continuation-token")
	}

	// The 1000 default applies only when the parameter is absent; an
	// explicit max-keys=0 asks for an empty page.
	maxKeys := 1000
	if raw := query.Get("max-keys"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, errInvalidArg)
			return
		}
		maxKeys = min(parsed, maxKeys)
	}

	var objects []s3store.ObjectMeta
	truncated := false
	if maxKeys > 0 {
		var err error
		objects, truncated, err = s.meta.ListObjects(r.Context(), bucket, prefix, marker, maxKeys)
		if err != nil {
			writeEngineError(w, err, true)
			return
		}
	} else {
		exists, err := s.meta.BucketExists(r.Context(), bucket)
		if err != nil {
			writeEngineError(w, err, true)
			return
		}
		if !exists {
			writeError(w, errNoSuchBucket)
			return
		}
	}

	doc := listBucketResult{
		Xmlns:       s3Namespace,
		Name:        bucket,
		Prefix:      prefix,
		Delimiter:   delimiter,
		MaxKeys:     maxKeys,
		IsTruncated: truncated,
	}

	// With a delimiter, keys containing it past the prefix roll up into
	// CommonPrefixes instead of appearing as Contents.
	seen := map[string]bool{}
	var lastKey string
	for _, obj := range objects {
		lastKey = obj.Key
		if delimiter != "" {
			rest := strings.TrimPrefix(obj.Key, prefix)
			if pos := strings.Index(rest, delimiter); pos >= 0 {
				common := prefix + rest[:pos+len(delimiter)]
				if !seen[common] {
					seen[common] = true
					doc.CommonPrefixes = append(doc.CommonPrefixes, commonPrefixXML{Prefix: common})
				}
				continue
			}
		}
		doc.Contents = append(doc.Contents, objectXML{
			Key:          obj.Key,
			LastModified: iso8601Millis(obj.LastModified),
			ETag:         `"` + obj.ETag + `"`,
			Size:         obj.Size,
			StorageClass: obj.StorageClass,
		})
	}
	sort.Slice(doc.CommonPrefixes, func(i, j int) bool {
		return doc.CommonPrefixes[i].Prefix < doc.CommonPrefixes[j].Prefix
	})

	if v2 {
		keyCount := len(doc.Contents) + len(doc.CommonPrefixes)
		doc.KeyCount = &keyCount
		if marker != "" {
			token := marker
			doc.ContinuationToken = &token
		}
		if truncated {
			next := lastKey
			doc.NextContinuationToken = &next
		}
	} else {
		m := marker
		doc.Marker = &m
		if truncated {
			next := lastKey
			doc.NextMarker = &next
		}
	}

	writeXML(w, http.StatusOK, doc)
}
