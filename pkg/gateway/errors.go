package gateway

import (
	"net/http"

	"github.com/rouse2617/NimbusStore/internal/logger"
	"github.com/rouse2617/NimbusStore/pkg/meta/errors"
)

// s3Error is one wire-level error: HTTP status plus the S3 code/message
// pair rendered into the XML body.
type s3Error struct {
	status  int
	code    string
	message string
}

var (
	errNoSuchBucket = s3Error{http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist"}
	errNoSuchKey    = s3Error{http.StatusNotFound, "NoSuchKey", "The specified key does not exist"}
	errBucketExists = s3Error{http.StatusConflict, "BucketAlreadyExists", "The requested bucket name is not available"}
	errBucketFull   = s3Error{http.StatusConflict, "BucketNotEmpty", "The bucket you tried to delete is not empty"}
	errInvalidArg   = s3Error{http.StatusBadRequest, "InvalidArgument", "Invalid Argument"}
	errAccess       = s3Error{http.StatusForbidden, "AccessDenied", "Access Denied"}
	errInternal     = s3Error{http.StatusInternalServerError, "InternalError", "We encountered an internal error. Please try again."}
	errNotImpl      = s3Error{http.StatusNotImplemented, "NotImplemented", "A header or query you provided implies functionality that is not implemented"}
)

// mapError translates an engine error into the wire error for the given
// context: NotFound becomes NoSuchBucket or NoSuchKey depending on what the
// handler was resolving.
func mapError(err error, bucketContext bool) s3Error {
	switch errors.CodeOf(err) {
	case errors.ErrNotFound:
		if bucketContext {
			return errNoSuchBucket
		}
		return errNoSuchKey
	case errors.ErrAlreadyExists:
		return errBucketExists
	case errors.ErrNotEmpty:
		return errBucketFull
	case errors.ErrInvalidArgument:
		return errInvalidArg
	case errors.ErrPermissionDenied:
		return errAccess
	case errors.ErrNotSupported:
		return errNotImpl
	default:
		return errInternal
	}
}

// writeError renders the S3 XML error body.
func writeError(w http.ResponseWriter, e s3Error) {
	writeXML(w, e.status, errorXML{Code: e.code, Message: e.message})
}

// writeEngineError maps and renders an engine error, logging server faults.
func writeEngineError(w http.ResponseWriter, err error, bucketContext bool) {
	e := mapError(err, bucketContext)
	if e.status >= http.StatusInternalServerError {
		logger.SubError(logger.SubsysGateway, "request failed",
			logger.KeyError, err.Error())
	}
	writeError(w, e)
}
