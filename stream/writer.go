// Package stream uploads an object of unknown size through a sequential writer.
//
// A Writer buffers up to one part of data. As long as no more than one part
// has been written the object is stored with a single put on Close. Once more
// data arrives, the writer switches to a multipart upload for good and hands
// every full buffer to a bounded worker pool that transfers parts in parallel.
// When the pool is saturated Write blocks, so a writer never holds more than
// (concurrency + 1) * part size bytes.
//
//	w, err := stream.Open(ctx, store, "bucket", "path/to/object")
//	if err != nil {
//		return err
//	}
//
//	if _, err := io.Copy(w, src); err != nil {
//		return err
//	}
//
//	return w.Close()
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Clarilab/s3-stream/internal/workerpool"
)

// State is the lifecycle state of a Writer.
type State int

const (
	// StateUndecided means no more than one part has been written yet.
	StateUndecided State = iota
	// StateMultipart means a multipart upload is in progress.
	StateMultipart
	// StateCommitted means the object has been stored.
	StateCommitted
	// StateFailed means the upload failed or was aborted.
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUndecided:
		return "undecided"
	case StateMultipart:
		return "multipart"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Writer streams data into one object.
//
// A Writer is not safe for concurrent use. The goroutine that writes to it
// owns the buffer and the part numbering; only the part transfers run in parallel.
type Writer struct {
	ctx    context.Context //nolint:containedctx // bound to the lifetime of one upload
	store  Store
	bucket string
	key    string
	opts   *options
	logger *slog.Logger

	state State
	err   error

	buf      []byte
	size     int64
	nextPart int

	contentType string
	upload      MultipartUpload
	pool        *workerpool.Pool
	results     []*workerpool.Future[CompletedPart]

	// first failed transfer, set by the pool workers
	transferMtx sync.Mutex
	transferErr error
}

// Open returns a Writer for the object under bucket and key.
// No request is sent to the store before data is written or the writer is closed.
// ctx is used for every store call of the upload.
func Open(ctx context.Context, store Store, bucket, key string, options ...Option) (*Writer, error) {
	const errMessage = "failed to open upload stream: %w"

	switch {
	case bucket == "":
		return nil, fmt.Errorf(errMessage, ErrEmptyBucket)
	case key == "":
		return nil, fmt.Errorf(errMessage, ErrEmptyKey)
	}

	opts := defaultOptions()

	for i := range options {
		if err := options[i](opts); err != nil {
			return nil, fmt.Errorf(errMessage, err)
		}
	}

	return &Writer{
		ctx:      ctx,
		store:    store,
		bucket:   bucket,
		key:      key,
		opts:     opts,
		logger:   opts.logger.With("bucket", bucket, "key", key),
		nextPart: 1,
	}, nil
}

// Write appends p to the object. It blocks while the maximum number of parts is in flight.
// An error fails the upload: every later call returns an error wrapping ErrClosed.
func (w *Writer) Write(p []byte) (int, error) {
	const errMessage = "failed to write to upload stream: %w"

	if err := w.done(); err != nil {
		return 0, fmt.Errorf(errMessage, err)
	}

	if err := w.checkTransfers(); err != nil {
		return 0, fmt.Errorf(errMessage, w.fail(err))
	}

	if w.size+int64(len(p)) > w.opts.maxSize {
		return 0, fmt.Errorf(errMessage, w.fail(fmt.Errorf("%w: limit is %d bytes", ErrObjectTooLarge, w.opts.maxSize)))
	}

	var written int

	for len(p) > 0 {
		// a full buffer is only sent once more data follows it, so the last part is never empty
		if len(w.buf) == w.opts.partSize {
			if err := w.flush(false); err != nil {
				return written, fmt.Errorf(errMessage, w.fail(err))
			}
		}

		n := min(w.opts.partSize-len(w.buf), len(p))

		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		written += n
		w.size += int64(n)
	}

	return written, nil
}

// Close stores the object. It waits for every part in flight before completing a multipart upload.
// Closing a committed writer is a no-op; closing a failed writer returns its failure.
func (w *Writer) Close() error {
	const errMessage = "failed to close upload stream: %w"

	switch w.state {
	case StateCommitted:
		return nil
	case StateFailed:
		return fmt.Errorf(errMessage, w.done())
	case StateUndecided:
		if err := w.putObject(); err != nil {
			return fmt.Errorf(errMessage, w.fail(err))
		}
	case StateMultipart:
		if err := w.completeMultipart(); err != nil {
			return fmt.Errorf(errMessage, w.fail(err))
		}
	}

	w.state = StateCommitted
	w.buf = nil

	return nil
}

// Abort abandons the upload. Parts in flight are awaited and the multipart upload is discarded.
// The returned error only reports a failed cleanup.
func (w *Writer) Abort() error {
	const errMessage = "failed to abort upload stream: %w"

	if err := w.done(); err != nil {
		return fmt.Errorf(errMessage, err)
	}

	cleanupErr := w.cleanup()

	w.state = StateFailed
	w.err = ErrAborted
	w.buf = nil

	if cleanupErr != nil {
		w.err = errors.Join(ErrAborted, cleanupErr)

		return fmt.Errorf(errMessage, cleanupErr)
	}

	w.logger.Debug("upload aborted by caller")

	return nil
}

// State returns the lifecycle state.
func (w *Writer) State() State {
	return w.state
}

// Size returns the number of bytes accepted so far.
func (w *Writer) Size() int64 {
	return w.size
}

// Parts returns the number of parts handed to the store. It is zero for a single put.
func (w *Writer) Parts() int {
	return w.nextPart - 1
}

// Bucket returns the destination bucket.
func (w *Writer) Bucket() string {
	return w.bucket
}

// Key returns the destination key.
func (w *Writer) Key() string {
	return w.key
}

func (w *Writer) done() error {
	switch w.state {
	case StateCommitted:
		return ErrClosed
	case StateFailed:
		return fmt.Errorf("%w: %w", ErrClosed, w.err)
	default:
		return nil
	}
}

func (w *Writer) putObject() error {
	opts := ObjectOptions{ContentType: w.resolveContentType()}

	if err := w.store.PutObject(w.ctx, w.bucket, w.key, w.buf, opts); err != nil {
		return &StoreError{Op: "put object", Bucket: w.bucket, Key: w.key, Err: err}
	}

	w.logger.Debug("object stored with single put", "size", len(w.buf), "content_type", opts.ContentType)

	return nil
}

func (w *Writer) initiate() error {
	opts := ObjectOptions{ContentType: w.resolveContentType()}

	uploadID, err := w.store.InitiateMultipart(w.ctx, w.bucket, w.key, opts)
	if err != nil {
		return &StoreError{Op: "initiate multipart upload", Bucket: w.bucket, Key: w.key, Err: err}
	}

	w.upload = MultipartUpload{Bucket: w.bucket, Key: w.key, UploadID: uploadID}
	w.pool = workerpool.New(w.opts.concurrency)
	w.state = StateMultipart
	w.logger = w.logger.With("upload_id", uploadID)

	w.logger.Debug("multipart upload initiated", "content_type", opts.ContentType)

	return nil
}

// flush hands the buffer to the pool as the next part.
func (w *Writer) flush(final bool) error {
	// a non-final part must leave a part number free for the final one
	if !final && w.nextPart >= w.opts.maxParts {
		return fmt.Errorf("%w: limit is %d", ErrTooManyParts, w.opts.maxParts)
	}

	if w.state == StateUndecided {
		if err := w.initiate(); err != nil {
			return err
		}
	}

	part := Part{Number: w.nextPart, Data: w.buf, Final: final}

	future, err := workerpool.Go(w.ctx, w.pool, func() (CompletedPart, error) {
		return w.uploadPart(part)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule part %d: %w", part.Number, err)
	}

	w.logger.Debug("part scheduled", "part", part.Number, "size", len(part.Data), "final", final)

	w.results = append(w.results, future)
	w.nextPart++

	if final {
		w.buf = nil
	} else {
		w.buf = make([]byte, 0, w.opts.partSize)
	}

	return nil
}

// uploadPart runs on a pool worker.
func (w *Writer) uploadPart(part Part) (CompletedPart, error) {
	completed, err := w.store.UploadPart(w.ctx, w.upload, part)
	if err != nil {
		storeErr := &StoreError{
			Op:         "upload part",
			Bucket:     w.bucket,
			Key:        w.key,
			PartNumber: part.Number,
			Err:        err,
		}

		w.transferMtx.Lock()
		if w.transferErr == nil {
			w.transferErr = storeErr
		}
		w.transferMtx.Unlock()

		return CompletedPart{}, storeErr
	}

	return completed, nil
}

// checkTransfers reports the first failed transfer without waiting for pending ones.
func (w *Writer) checkTransfers() error {
	w.transferMtx.Lock()
	defer w.transferMtx.Unlock()

	return w.transferErr
}

func (w *Writer) completeMultipart() error {
	if err := w.flush(true); err != nil {
		return err
	}

	parts := make([]CompletedPart, 0, len(w.results))

	// results are in submission order, whatever order the transfers finished in
	for i := range w.results {
		part, err := w.results[i].Wait()
		if err != nil {
			return err
		}

		parts = append(parts, part)
	}

	w.pool.Shutdown()

	if err := w.store.CompleteMultipart(w.ctx, w.upload, parts); err != nil {
		return &StoreError{Op: "complete multipart upload", Bucket: w.bucket, Key: w.key, Err: err}
	}

	w.logger.Debug("multipart upload completed", "parts", len(parts), "size", w.size)

	w.results = nil

	return nil
}

// fail moves the writer to StateFailed, cleaning up a multipart upload first.
func (w *Writer) fail(cause error) error {
	err := cause

	if cleanupErr := w.cleanup(); cleanupErr != nil {
		err = errors.Join(cause, cleanupErr)
	}

	w.state = StateFailed
	w.err = err
	w.buf = nil

	return err
}

// cleanup waits for the transfers in flight and aborts the multipart upload, if any.
func (w *Writer) cleanup() error {
	if w.state != StateMultipart {
		return nil
	}

	w.pool.Shutdown()
	w.results = nil

	// cleanup must run even when the upload failed because ctx was cancelled
	ctx := context.WithoutCancel(w.ctx)

	if err := w.store.AbortMultipart(ctx, w.upload); err != nil {
		w.logger.Warn("failed to abort multipart upload", "error", err)

		return &AbortError{Upload: w.upload, Err: err}
	}

	w.logger.Warn("multipart upload aborted", "parts", w.Parts())

	return nil
}

func (w *Writer) resolveContentType() string {
	if w.contentType != "" {
		return w.contentType
	}

	if w.opts.contentType != "" {
		w.contentType = w.opts.contentType
	} else {
		w.contentType = mimetype.Detect(w.buf).String()
	}

	return w.contentType
}
