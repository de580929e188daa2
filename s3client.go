package s3

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/Clarilab/s3-stream/stream"
)

// Client holds all callable methods.
type Client interface {
	// Close closes the s3 client.
	Close()

	// IsOnline reports true if the client is online. If the health-check has not been enabled this will always return true.
	IsOnline() bool

	// Store returns the stream.Store the client uploads through.
	// It can be used with stream.Open to upload into other buckets.
	Store() stream.Store

	// OpenUploadSink opens a streaming upload to the given s3 path.
	// The object only becomes visible once the returned writer is closed without error.
	OpenUploadSink(ctx context.Context, path string, options ...stream.Option) (*stream.Writer, error)

	// UploadFile streams data of unknown length to the given s3 path.
	UploadFile(ctx context.Context, path string, data io.Reader, options ...stream.Option) (*UploadInfo, error)

	// GetFile returns the file under the given s3 path.
	// Don't forget to close the File.
	GetFile(ctx context.Context, path string) (File, error)

	// GetFileInfo returns the information of the file under the given s3 path without downloading it.
	GetFileInfo(ctx context.Context, path string) (*FileInfo, error)

	// DownloadFile downloads the requested file to the file system under given localPath.
	DownloadFile(ctx context.Context, path, localPath string) error

	// GetDirectory returns all files under the given s3 path, including sub folders, in listing order.
	// Don't forget to close the Files.
	GetDirectory(ctx context.Context, path string) ([]File, error)

	// GetDirectoryInfos returns the information of all files under the given s3 path, including sub folders.
	GetDirectoryInfos(ctx context.Context, path string) ([]*FileInfo, error)

	// DownloadDirectory downloads all files under the given s3 path into localPath, keeping their
	// relative paths. The recursive option also downloads all files from sub folders.
	DownloadDirectory(ctx context.Context, path, localPath string, recursive bool) error

	// ListFiles returns the keys of all files under the given prefix.
	// The recursive option also lists all files from sub folders.
	ListFiles(ctx context.Context, prefix string, recursive bool) ([]string, error)

	// RemoveFile deletes the file under given s3 path.
	RemoveFile(ctx context.Context, path string) error

	// CreateFileLink creates a link with expiration for a file under the given path.
	CreateFileLink(ctx context.Context, path string, expiration time.Duration) (*url.URL, error)

	// AddAbortIncompleteUploadsRule adds a lifecycle rule that makes the server discard
	// multipart uploads under prefix which were not completed within the given number of days.
	AddAbortIncompleteUploadsRule(ctx context.Context, ruleID, prefix string, days int) error

	// AbortIncompleteUploads aborts every multipart upload under prefix that is still in progress
	// and returns how many were aborted.
	AbortIncompleteUploads(ctx context.Context, prefix string) (int, error)
}
