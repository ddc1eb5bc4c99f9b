package errors

import (
	"context"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreErrorMessage(t *testing.T) {
	err := NewNotFoundError("/a/b", "dentry")
	assert.Equal(t, "NotFound: dentry not found (/a/b)", err.Error())

	err = NewInvalidArgumentError("bad path")
	assert.Equal(t, "InvalidArgument: bad path", err.Error())
}

func TestCodeHelpers(t *testing.T) {
	err := NewAlreadyExistsError("x")
	assert.True(t, IsAlreadyExists(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, ErrAlreadyExists, CodeOf(err))

	// Wrapped StoreErrors still match.
	wrapped := fmt.Errorf("context: %w", NewNotEmptyError("/d"))
	assert.True(t, IsNotEmpty(wrapped))

	// Foreign errors map to IOError.
	assert.Equal(t, ErrIOError, CodeOf(fmt.Errorf("plain")))
}

func TestErrnoMapping(t *testing.T) {
	assert.Equal(t, syscall.ENOENT, ErrNotFound.Errno())
	assert.Equal(t, syscall.EEXIST, ErrAlreadyExists.Errno())
	assert.Equal(t, syscall.EISDIR, ErrIsDirectory.Errno())
	assert.Equal(t, syscall.ENOTDIR, ErrNotDirectory.Errno())
	assert.Equal(t, syscall.ENOTEMPTY, ErrNotEmpty.Errno())
	assert.Equal(t, syscall.EINVAL, ErrInvalidArgument.Errno())
	assert.Equal(t, syscall.EIO, ErrIOError.Errno())
	assert.Equal(t, syscall.ENOSPC, ErrNoSpace.Errno())
	assert.Equal(t, syscall.EINTR, ErrCancelled.Errno())
}

func TestFromContextErr(t *testing.T) {
	assert.Nil(t, FromContextErr(nil))

	err := FromContextErr(fmt.Errorf("wrap: %w", context.Canceled))
	assert.True(t, IsCode(err, ErrCancelled))

	passthrough := NewIOError("disk gone")
	assert.Equal(t, passthrough, FromContextErr(passthrough))
}
