package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by any call on a writer that was already closed or has failed.
	ErrClosed = errors.New("stream closed")

	// ErrAborted is the failure recorded when the caller abandons a writer with Abort.
	ErrAborted = errors.New("upload aborted")

	// ErrTooManyParts indicates that the written data needs more parts than the store allows.
	ErrTooManyParts = errors.New("upload exceeds the maximum number of parts")

	// ErrObjectTooLarge indicates that the written data exceeds the maximum object size.
	ErrObjectTooLarge = errors.New("upload exceeds the maximum object size")

	// ErrInvalidOption indicates an option value outside its allowed range.
	ErrInvalidOption = errors.New("invalid option")

	// ErrEmptyBucket indicates that no bucket was given.
	ErrEmptyBucket = errors.New("bucket name is empty")

	// ErrEmptyKey indicates that no object key was given.
	ErrEmptyKey = errors.New("object key is empty")
)

// StoreError occurs when a store call fails.
type StoreError struct {
	Op         string
	Bucket     string
	Key        string
	PartNumber int // zero unless Op concerns a single part
	Err        error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.PartNumber > 0 {
		return fmt.Sprintf("%s %s/%s part %d: %v", e.Op, e.Bucket, e.Key, e.PartNumber, e.Err)
	}

	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

// Unwrap returns the underlying store error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// AbortError occurs when cleaning up a failed multipart upload fails as well.
// It is always joined with the failure that caused the abort.
type AbortError struct {
	Upload MultipartUpload
	Err    error
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	return fmt.Sprintf("failed to abort multipart upload '%s' of %s/%s: %v",
		e.Upload.UploadID, e.Upload.Bucket, e.Upload.Key, e.Err)
}

// Unwrap returns the underlying store error.
func (e *AbortError) Unwrap() error {
	return e.Err
}
