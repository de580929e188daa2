package s3

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested file does not exist.
	ErrNotFound = errors.New("file under specified filepath does not exist")

	// ErrEmptyHost indicates that no host was given.
	ErrEmptyHost = errors.New("host is empty")

	// ErrEmptyAccessKey indicates that no access key was given.
	ErrEmptyAccessKey = errors.New("access key is empty")

	// ErrEmptyAccessSecret indicates that no access secret was given.
	ErrEmptyAccessSecret = errors.New("access secret is empty")

	// ErrEmptyBucketName indicates that no bucket name was given.
	ErrEmptyBucketName = errors.New("bucket name is empty")

	// ErrInvalidDays indicates a lifecycle rule with less than one day.
	ErrInvalidDays = errors.New("days must be at least 1")

	// ErrKeyOutsideDirectory indicates an object key that would be downloaded outside the target directory.
	ErrKeyOutsideDirectory = errors.New("object key resolves outside the target directory")

	// ErrInvalidConcurrency indicates a concurrency below one.
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

	// ErrNilClientDetails indicates that NewClient was called without details.
	ErrNilClientDetails = errors.New("client details are nil")
)

// BucketDoesNotExistError occurs when the given bucket does not exist.
type BucketDoesNotExistError struct {
	bucketName string
}

// Error implements the error interface.
func (e *BucketDoesNotExistError) Error() string {
	return fmt.Sprintf("bucket '%s' does not exist", e.bucketName)
}

// AbortingUploadsFailedError occurs when some stale multipart uploads could not be aborted.
type AbortingUploadsFailedError struct {
	errs []error
}

// Error implements the error interface.
func (e *AbortingUploadsFailedError) Error() string {
	return fmt.Sprintf("failed to abort %d incomplete uploads: %v", len(e.errs), e.errs)
}

// Unwrap returns the errors of the failed aborts.
func (e *AbortingUploadsFailedError) Unwrap() []error {
	return e.errs
}

// DownloadingFilesFailedError occurs when some files of a directory could not be fetched.
type DownloadingFilesFailedError struct {
	errs []error
}

// Error implements the error interface.
func (e *DownloadingFilesFailedError) Error() string {
	return fmt.Sprintf("failed to download %d files: %v", len(e.errs), e.errs)
}

// Unwrap returns the errors of the failed downloads.
func (e *DownloadingFilesFailedError) Unwrap() []error {
	return e.errs
}
