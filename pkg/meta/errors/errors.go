// Package errors provides error codes and the StoreError type shared by the
// metadata engine, the namespace layer, and the S3 sub-store. It is a leaf
// package with no internal dependencies so every layer can import it without
// cycles.
//
// The codes are stable: they feed the two external mappings (POSIX errno for
// the FUSE adapter, S3 error codes for the gateway) and must not be
// renumbered.
package errors

import (
	"context"
	"errors"
	"fmt"
	"syscall"
)

// ErrorCode represents the kind of error that occurred.
type ErrorCode int

const (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound ErrorCode = iota + 1

	// ErrAlreadyExists indicates the entity already exists.
	ErrAlreadyExists

	// ErrPermissionDenied indicates the operation is not permitted.
	ErrPermissionDenied

	// ErrIsDirectory indicates a file operation was attempted on a directory.
	ErrIsDirectory

	// ErrNotDirectory indicates a directory operation on a non-directory.
	ErrNotDirectory

	// ErrNotEmpty indicates a directory still has entries.
	ErrNotEmpty

	// ErrInvalidArgument indicates a validation failure.
	ErrInvalidArgument

	// ErrIOError indicates a storage-layer I/O failure.
	ErrIOError

	// ErrNoSpace indicates no space is available.
	ErrNoSpace

	// ErrCancelled indicates the caller's context was cancelled.
	ErrCancelled

	// ErrNotSupported indicates the operation is not implemented.
	ErrNotSupported
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrIsDirectory:
		return "IsDirectory"
	case ErrNotDirectory:
		return "NotDirectory"
	case ErrNotEmpty:
		return "NotEmpty"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrIOError:
		return "IOError"
	case ErrNoSpace:
		return "NoSpace"
	case ErrCancelled:
		return "Cancelled"
	case ErrNotSupported:
		return "NotSupported"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// Errno maps an error code to the canonical POSIX errno. This is the
// contract the FUSE adapter consumes.
func (e ErrorCode) Errno() syscall.Errno {
	switch e {
	case ErrNotFound:
		return syscall.ENOENT
	case ErrAlreadyExists:
		return syscall.EEXIST
	case ErrPermissionDenied:
		return syscall.EPERM
	case ErrIsDirectory:
		return syscall.EISDIR
	case ErrNotDirectory:
		return syscall.ENOTDIR
	case ErrNotEmpty:
		return syscall.ENOTEMPTY
	case ErrInvalidArgument:
		return syscall.EINVAL
	case ErrIOError:
		return syscall.EIO
	case ErrNoSpace:
		return syscall.ENOSPC
	case ErrCancelled:
		return syscall.EINTR
	case ErrNotSupported:
		return syscall.ENOTSUP
	default:
		return syscall.EIO
	}
}

// StoreError is the error type returned by the metadata engine and the S3
// sub-store. Code drives dispatch; Message is for humans; Path names the
// entity when one is involved.
type StoreError struct {
	Code    ErrorCode
	Message string
	Path    string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates a StoreError with the given code and message.
func New(code ErrorCode, message string) *StoreError {
	return &StoreError{Code: code, Message: message}
}

// NewNotFoundError creates a StoreError for a missing entity.
func NewNotFoundError(path, entityType string) *StoreError {
	return &StoreError{
		Code:    ErrNotFound,
		Message: entityType + " not found",
		Path:    path,
	}
}

// NewAlreadyExistsError creates a StoreError for a duplicate entity.
func NewAlreadyExistsError(path string) *StoreError {
	return &StoreError{
		Code:    ErrAlreadyExists,
		Message: "already exists",
		Path:    path,
	}
}

// NewNotDirectoryError creates a StoreError for a directory operation on a
// non-directory.
func NewNotDirectoryError(path string) *StoreError {
	return &StoreError{
		Code:    ErrNotDirectory,
		Message: "not a directory",
		Path:    path,
	}
}

// NewIsDirectoryError creates a StoreError for a file operation on a directory.
func NewIsDirectoryError(path string) *StoreError {
	return &StoreError{
		Code:    ErrIsDirectory,
		Message: "is a directory",
		Path:    path,
	}
}

// NewNotEmptyError creates a StoreError for a non-empty directory.
func NewNotEmptyError(path string) *StoreError {
	return &StoreError{
		Code:    ErrNotEmpty,
		Message: "directory not empty",
		Path:    path,
	}
}

// NewInvalidArgumentError creates a StoreError for a validation failure.
func NewInvalidArgumentError(message string) *StoreError {
	return &StoreError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

// NewIOError creates a StoreError wrapping a storage-layer failure.
func NewIOError(message string) *StoreError {
	return &StoreError{
		Code:    ErrIOError,
		Message: message,
	}
}

// NewCancelledError creates a StoreError for a cancelled operation.
func NewCancelledError(message string) *StoreError {
	return &StoreError{
		Code:    ErrCancelled,
		Message: message,
	}
}

// CodeOf extracts the ErrorCode from an error, or ErrIOError for errors
// that did not originate in a store.
func CodeOf(err error) ErrorCode {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrIOError
}

// IsCode checks whether an error is a StoreError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == code
}

// IsNotFound checks for ErrNotFound.
func IsNotFound(err error) bool {
	return IsCode(err, ErrNotFound)
}

// IsAlreadyExists checks for ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return IsCode(err, ErrAlreadyExists)
}

// IsNotEmpty checks for ErrNotEmpty.
func IsNotEmpty(err error) bool {
	return IsCode(err, ErrNotEmpty)
}

// IsInvalidArgument checks for ErrInvalidArgument.
func IsInvalidArgument(err error) bool {
	return IsCode(err, ErrInvalidArgument)
}

// FromContextErr translates a context error into the Cancelled store error.
// Non-context errors pass through unchanged.
func FromContextErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewCancelledError(err.Error())
	}
	return err
}
