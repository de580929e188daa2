package stream

import (
	"fmt"
	"log/slog"
)

const (
	// DefaultPartSize is the size of every part but the last of a multipart upload.
	DefaultPartSize = MinPartSize

	// MinPartSize is the smallest part S3 compatible stores accept for every part but the last.
	// Smaller parts are only rejected when the upload is completed.
	MinPartSize = 5 << 20

	// DefaultConcurrency is the number of parts transferred in parallel.
	DefaultConcurrency = 3

	// MaxParts is the maximum number of parts of one multipart upload.
	MaxParts = 10000

	// MaxSinglePutSize is the maximum size of an object stored in one request.
	MaxSinglePutSize int64 = 5 << 30

	// MaxObjectSize is the maximum size of any object.
	MaxObjectSize int64 = 5 << 40
)

type options struct {
	partSize    int
	concurrency int
	maxParts    int
	maxSize     int64
	contentType string
	logger      *slog.Logger
}

func defaultOptions() *options {
	return &options{
		partSize:    DefaultPartSize,
		concurrency: DefaultConcurrency,
		maxParts:    MaxParts,
		maxSize:     MaxObjectSize,
		logger:      slog.New(slog.DiscardHandler),
	}
}

// Option configures a Writer.
type Option func(*options) error

// WithPartSize sets the part size, which is also the largest object stored with a single put.
// Any size of at least one byte is accepted, but S3 and MinIO need MinPartSize or more
// once an object takes more than one part.
func WithPartSize(size int) Option {
	return func(o *options) error {
		if size < 1 || int64(size) > MaxSinglePutSize {
			return fmt.Errorf("%w: part size %d not in [1, %d]", ErrInvalidOption, size, MaxSinglePutSize)
		}

		o.partSize = size

		return nil
	}
}

// WithConcurrency sets how many parts are transferred in parallel.
func WithConcurrency(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return fmt.Errorf("%w: concurrency %d is less than 1", ErrInvalidOption, n)
		}

		o.concurrency = n

		return nil
	}
}

// WithMaxParts lowers the part count ceiling below MaxParts.
func WithMaxParts(n int) Option {
	return func(o *options) error {
		if n < 1 || n > MaxParts {
			return fmt.Errorf("%w: max parts %d not in [1, %d]", ErrInvalidOption, n, MaxParts)
		}

		o.maxParts = n

		return nil
	}
}

// WithMaxObjectSize lowers the object size ceiling below MaxObjectSize.
func WithMaxObjectSize(size int64) Option {
	return func(o *options) error {
		if size < 1 || size > MaxObjectSize {
			return fmt.Errorf("%w: max object size %d not in [1, %d]", ErrInvalidOption, size, MaxObjectSize)
		}

		o.maxSize = size

		return nil
	}
}

// WithContentType sets the content type of the object.
// Without it the content type is detected from the first bytes written.
func WithContentType(contentType string) Option {
	return func(o *options) error {
		o.contentType = contentType

		return nil
	}
}

// WithLogger sets the logger. Nothing is logged by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger != nil {
			o.logger = logger
		}

		return nil
	}
}
