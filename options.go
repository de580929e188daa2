package s3

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Clarilab/s3-stream/stream"
)

// ClientOption is an option for the s3 client.
type ClientOption func(*client) error

// WithHealthCheck enables the health check for the s3 client.
func WithHealthCheck(interval time.Duration) ClientOption {
	const errMessage = "failed to enable health check: %w"

	return func(c *client) (err error) { //nolint:nonamedreturns // intended
		c.cancelFunc, err = c.minioClient.HealthCheck(interval)
		if err != nil {
			return fmt.Errorf(errMessage, err)
		}

		return nil
	}
}

// WithLogger sets the logger of the client and of every upload it opens.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *client) error {
		if logger != nil {
			c.logger = logger
		}

		return nil
	}
}

// WithStreamOptions sets default options for every upload opened by the client.
// Options passed to OpenUploadSink or UploadFile take precedence.
func WithStreamOptions(options ...stream.Option) ClientOption {
	return func(c *client) error {
		c.streamOptions = append(c.streamOptions, options...)

		return nil
	}
}

// WithDirectoryConcurrency sets how many files GetDirectory, GetDirectoryInfos and DownloadDirectory fetch in parallel.
func WithDirectoryConcurrency(n int) ClientOption {
	return func(c *client) error {
		if n < 1 {
			return ErrInvalidConcurrency
		}

		c.concurrency = n

		return nil
	}
}
