package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Clarilab/s3-stream/stream"
)

// UploadInfo describes a finished upload.
type UploadInfo struct {
	Path      string
	Size      int64
	Parts     int  // zero for a single put
	Multipart bool // true if the object was stored with a multipart upload
}

func (c *client) OpenUploadSink(ctx context.Context, path string, options ...stream.Option) (*stream.Writer, error) {
	const errMessage = "failed to open upload sink: %w"

	opts := make([]stream.Option, 0, len(c.streamOptions)+len(options)+1)
	opts = append(opts, stream.WithLogger(c.logger))
	opts = append(opts, c.streamOptions...)
	opts = append(opts, options...)

	w, err := stream.Open(ctx, c.store, c.bucketName, path, opts...)
	if err != nil {
		return nil, fmt.Errorf(errMessage, err)
	}

	return w, nil
}

func (c *client) UploadFile(ctx context.Context, path string, data io.Reader, options ...stream.Option) (*UploadInfo, error) {
	const errMessage = "failed to upload file: %w"

	w, err := c.OpenUploadSink(ctx, path, options...)
	if err != nil {
		return nil, fmt.Errorf(errMessage, err)
	}

	if _, err = io.Copy(w, data); err != nil {
		// a failed write has already cleaned up, only a failed read leaves the upload open
		if abortErr := w.Abort(); abortErr != nil && !errors.Is(abortErr, stream.ErrClosed) {
			err = errors.Join(err, abortErr)
		}

		return nil, fmt.Errorf(errMessage, err)
	}

	if err = w.Close(); err != nil {
		return nil, fmt.Errorf(errMessage, err)
	}

	return &UploadInfo{
		Path:      path,
		Size:      w.Size(),
		Parts:     w.Parts(),
		Multipart: w.Parts() > 0,
	}, nil
}
