package stream

import "context"

// Store is the remote object store a Writer uploads to.
// Implementations must be safe for concurrent use: parts of one upload are
// transferred in parallel.
type Store interface {
	// PutObject stores data as a complete object in a single request.
	PutObject(ctx context.Context, bucket, key string, data []byte, opts ObjectOptions) error

	// InitiateMultipart starts a multipart upload and returns its upload id.
	InitiateMultipart(ctx context.Context, bucket, key string, opts ObjectOptions) (string, error)

	// UploadPart transfers one part of a multipart upload.
	UploadPart(ctx context.Context, upload MultipartUpload, part Part) (CompletedPart, error)

	// CompleteMultipart assembles the given parts, in the given order, into the final object.
	CompleteMultipart(ctx context.Context, upload MultipartUpload, parts []CompletedPart) error

	// AbortMultipart discards a multipart upload and all parts transferred for it.
	AbortMultipart(ctx context.Context, upload MultipartUpload) error
}

// ObjectOptions are the object attributes set when an upload starts.
type ObjectOptions struct {
	ContentType string
}

// MultipartUpload identifies one in-progress multipart upload.
type MultipartUpload struct {
	Bucket   string
	Key      string
	UploadID string
}

// Part is a contiguous chunk of an object. Number starts at 1.
type Part struct {
	Number int
	Data   []byte
	Final  bool
}

// Size returns the length of the part payload.
func (p Part) Size() int64 {
	return int64(len(p.Data))
}

// CompletedPart is the store's receipt for a transferred part.
type CompletedPart struct {
	Number int
	ETag   string
}
