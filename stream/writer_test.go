package stream_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clarilab/s3-stream/stream"
	"github.com/Clarilab/s3-stream/testutils/memstore"
)

const bucketName = "test-bucket"

var errStore = errors.New("store unavailable")

func newKey() string {
	return "test/" + uuid.NewString()
}

func openWriter(t *testing.T, store stream.Store, key string, options ...stream.Option) *stream.Writer {
	t.Helper()

	w, err := stream.Open(context.Background(), store, bucketName, key, options...)
	require.NoError(t, err)

	return w
}

func Test_Open(t *testing.T) {
	t.Parallel()

	store := memstore.New()

	t.Run("empty bucket", func(t *testing.T) {
		t.Parallel()

		_, err := stream.Open(context.Background(), store, "", "key")
		require.ErrorIs(t, err, stream.ErrEmptyBucket)
	})

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()

		_, err := stream.Open(context.Background(), store, bucketName, "")
		require.ErrorIs(t, err, stream.ErrEmptyKey)
	})

	t.Run("invalid options", func(t *testing.T) {
		t.Parallel()

		for _, option := range []stream.Option{
			stream.WithPartSize(0),
			stream.WithPartSize(-1),
			stream.WithConcurrency(0),
			stream.WithMaxParts(0),
			stream.WithMaxParts(stream.MaxParts + 1),
			stream.WithMaxObjectSize(0),
			stream.WithMaxObjectSize(stream.MaxObjectSize + 1),
		} {
			_, err := stream.Open(context.Background(), store, bucketName, "key", option)
			require.ErrorIs(t, err, stream.ErrInvalidOption)
		}
	})

	t.Run("no store calls before data", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()

		w := openWriter(t, store, newKey())

		assert.Equal(t, stream.StateUndecided, w.State())
		assert.Equal(t, memstore.Calls{}, store.Calls())
	})
}

func Test_SinglePut(t *testing.T) {
	t.Parallel()

	t.Run("eleven bytes", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()
		key := newKey()

		w := openWriter(t, store, key)

		n, err := w.Write([]byte("hello world"))
		require.NoError(t, err)
		require.Equal(t, 11, n)

		require.NoError(t, w.Close())

		obj, ok := store.Object(bucketName, key)
		require.True(t, ok)
		assert.Equal(t, []byte("hello world"), obj.Data)
		assert.False(t, obj.Multipart)
		assert.Equal(t, memstore.Calls{Put: 1}, store.Calls())
		assert.Equal(t, stream.StateCommitted, w.State())
		assert.Equal(t, int64(11), w.Size())
		assert.Zero(t, w.Parts())
	})

	t.Run("exactly one part", func(t *testing.T) {
		t.Parallel()

		const partSize = 64

		store := memstore.New()
		key := newKey()
		data := randomData(t, partSize)

		w := openWriter(t, store, key, stream.WithPartSize(partSize))

		writeInChunks(t, w, data, 7)
		require.NoError(t, w.Close())

		obj, ok := store.Object(bucketName, key)
		require.True(t, ok)
		assert.Equal(t, data, obj.Data)
		assert.Equal(t, memstore.Calls{Put: 1}, store.Calls())
	})

	t.Run("empty object", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()
		key := newKey()

		w := openWriter(t, store, key)
		require.NoError(t, w.Close())

		obj, ok := store.Object(bucketName, key)
		require.True(t, ok)
		assert.Empty(t, obj.Data)
		assert.Equal(t, memstore.Calls{Put: 1}, store.Calls())
	})
}

func Test_Multipart(t *testing.T) {
	t.Parallel()

	t.Run("16 MiB in small writes", func(t *testing.T) {
		t.Parallel()

		const mib = 1 << 20

		store := memstore.New()
		key := newKey()

		w := openWriter(t, store, key, stream.WithPartSize(5*mib), stream.WithConcurrency(3))

		digits := []byte("0123456789abcdef")
		expected := bytes.Repeat(digits, mib)

		for range mib {
			_, err := w.Write(digits)
			require.NoError(t, err)
		}

		require.NoError(t, w.Close())

		obj, ok := store.Object(bucketName, key)
		require.True(t, ok)
		require.Len(t, obj.Data, 16*mib)
		require.True(t, bytes.Equal(expected, obj.Data))
		assert.True(t, obj.Multipart)

		sizes := make(map[int]int)
		finals := make(map[int]bool)

		for _, transfer := range store.Transfers() {
			sizes[transfer.Number] = transfer.Size
			finals[transfer.Number] = transfer.Final
		}

		assert.Equal(t, map[int]int{1: 5 * mib, 2: 5 * mib, 3: 5 * mib, 4: mib}, sizes)
		assert.Equal(t, map[int]bool{1: false, 2: false, 3: false, 4: true}, finals)
		assert.Equal(t, memstore.Calls{Initiate: 1, UploadPart: 4, Complete: 1}, store.Calls())
		assert.Equal(t, 4, w.Parts())
		assert.Equal(t, int64(16*mib), w.Size())
	})

	t.Run("part count is the ceiling of size over part size", func(t *testing.T) {
		t.Parallel()

		const partSize = 10

		for _, size := range []int{11, 20, 21, 99, 100, 101} {
			store := memstore.New()
			key := newKey()
			data := randomData(t, size)

			w := openWriter(t, store, key, stream.WithPartSize(partSize))

			_, err := w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			obj, ok := store.Object(bucketName, key)
			require.True(t, ok)
			assert.Equal(t, data, obj.Data)
			assert.Equal(t, (size+partSize-1)/partSize, store.Calls().UploadPart, "size %d", size)
		}
	})

	t.Run("out of order completion", func(t *testing.T) {
		t.Parallel()

		const partSize = 32

		store := memstore.New()
		store.PartDelay = func(partNumber int) time.Duration {
			if partNumber == 1 {
				return 50 * time.Millisecond
			}

			return time.Millisecond
		}

		key := newKey()
		data := randomData(t, 10*partSize+5)

		w := openWriter(t, store, key, stream.WithPartSize(partSize), stream.WithConcurrency(3))

		writeInChunks(t, w, data, 13)
		require.NoError(t, w.Close())

		transfers := store.Transfers()
		require.Len(t, transfers, 11)
		assert.NotEqual(t, 1, transfers[0].Number)

		obj, ok := store.Object(bucketName, key)
		require.True(t, ok)
		assert.Equal(t, data, obj.Data)
	})

	t.Run("in-flight transfers are bounded", func(t *testing.T) {
		t.Parallel()

		const concurrency = 3

		store := memstore.New()
		store.PartDelay = func(int) time.Duration { return 3 * time.Millisecond }

		key := newKey()
		data := randomData(t, 40*16)

		w := openWriter(t, store, key, stream.WithPartSize(16), stream.WithConcurrency(concurrency))

		writeInChunks(t, w, data, 5)
		require.NoError(t, w.Close())

		assert.LessOrEqual(t, store.PeakInFlight(), concurrency)
		assert.Equal(t, 40, store.Calls().UploadPart)
	})

	t.Run("small writes after switching stay multipart", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()
		key := newKey()

		w := openWriter(t, store, key, stream.WithPartSize(4))

		_, err := w.Write([]byte("abcde"))
		require.NoError(t, err)
		assert.Equal(t, stream.StateMultipart, w.State())

		_, err = w.Write([]byte("f"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		obj, ok := store.Object(bucketName, key)
		require.True(t, ok)
		assert.Equal(t, []byte("abcdef"), obj.Data)
		assert.True(t, obj.Multipart)
		assert.Zero(t, store.Calls().Put)
	})

	t.Run("part ceiling", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()

		fits := openWriter(t, store, newKey(), stream.WithPartSize(4), stream.WithMaxParts(3))

		_, err := fits.Write(randomData(t, 12))
		require.NoError(t, err)
		require.NoError(t, fits.Close())

		overflowStore := memstore.New()

		overflows := openWriter(t, overflowStore, newKey(), stream.WithPartSize(4), stream.WithMaxParts(3))

		_, err = overflows.Write(randomData(t, 13))
		require.ErrorIs(t, err, stream.ErrTooManyParts)
		assert.Equal(t, stream.StateFailed, overflows.State())

		calls := overflowStore.Calls()
		assert.Equal(t, 1, calls.Abort)
		assert.Zero(t, calls.Complete)
		assert.Zero(t, overflowStore.PendingUploads())
	})

	t.Run("object size ceiling", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()

		w := openWriter(t, store, newKey(), stream.WithPartSize(4), stream.WithMaxObjectSize(10))

		_, err := w.Write(randomData(t, 8))
		require.NoError(t, err)
		require.Equal(t, stream.StateMultipart, w.State())

		n, err := w.Write(randomData(t, 3))
		require.ErrorIs(t, err, stream.ErrObjectTooLarge)
		assert.Zero(t, n)
		assert.Equal(t, stream.StateFailed, w.State())
		assert.Equal(t, int64(8), w.Size())

		err = w.Close()
		require.ErrorIs(t, err, stream.ErrClosed)
		require.ErrorIs(t, err, stream.ErrObjectTooLarge)

		calls := store.Calls()
		assert.Equal(t, 1, calls.Abort)
		assert.Zero(t, calls.Complete)
		assert.Zero(t, store.PendingUploads())
	})

	t.Run("object size ceiling reached exactly", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()

		w := openWriter(t, store, newKey(), stream.WithPartSize(4), stream.WithMaxObjectSize(10))

		_, err := w.Write(randomData(t, 10))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		obj, ok := store.Object(bucketName, w.Key())
		require.True(t, ok)
		assert.Len(t, obj.Data, 10)
	})
}

func Test_WriteAfterClose(t *testing.T) {
	t.Parallel()

	store := memstore.New()

	w := openWriter(t, store, newKey())

	_, err := w.Write([]byte("mockcontent"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	calls := store.Calls()

	n, err := w.Write([]byte("mockcontent"))
	require.ErrorIs(t, err, stream.ErrClosed)
	assert.Zero(t, n)
	assert.Equal(t, calls, store.Calls())

	require.NoError(t, w.Close())
	assert.Equal(t, calls, store.Calls())
}

func Test_PartFailure(t *testing.T) {
	t.Parallel()

	t.Run("part 2 of 3 fails", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()
		store.FailPart = func(partNumber int) error {
			if partNumber == 2 {
				return errStore
			}

			return nil
		}

		key := newKey()

		w := openWriter(t, store, key, stream.WithPartSize(4))

		_, err := w.Write(randomData(t, 12))
		require.NoError(t, err)

		err = w.Close()
		require.ErrorIs(t, err, errStore)

		var storeErr *stream.StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, 2, storeErr.PartNumber)

		calls := store.Calls()
		assert.Equal(t, 1, calls.Abort)
		assert.Zero(t, calls.Complete)
		assert.Equal(t, stream.StateFailed, w.State())

		_, ok := store.Object(bucketName, key)
		assert.False(t, ok)
	})

	t.Run("failure surfaces while an earlier part is still in flight", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()
		store.PartDelay = func(partNumber int) time.Duration {
			if partNumber == 1 {
				return time.Second
			}

			return 0
		}
		store.FailPart = func(partNumber int) error {
			if partNumber == 2 {
				return errStore
			}

			return nil
		}

		w := openWriter(t, store, newKey(), stream.WithPartSize(4), stream.WithConcurrency(3))

		_, err := w.Write(randomData(t, 12))
		require.NoError(t, err)

		deadline := time.Now().Add(500 * time.Millisecond)

		for err == nil && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)

			_, err = w.Write([]byte("x"))
		}

		var storeErr *stream.StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, 2, storeErr.PartNumber)

		// part 1 was drained before the abort
		assert.Equal(t, 1, store.Calls().Abort)
		assert.Zero(t, store.PendingUploads())
	})

	t.Run("mid-stream failure surfaces from write", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()
		store.FailPart = func(partNumber int) error {
			if partNumber == 1 {
				return errStore
			}

			return nil
		}

		w := openWriter(t, store, newKey(), stream.WithPartSize(4), stream.WithConcurrency(1))

		var err error

		// with one worker the flush of part 2 waits for part 1, so the failure shows up within a few writes
		for i := 0; i < 10 && err == nil; i++ {
			_, err = w.Write([]byte("abcd"))
		}

		require.ErrorIs(t, err, errStore)
		assert.Equal(t, stream.StateFailed, w.State())

		_, err = w.Write([]byte("x"))
		require.ErrorIs(t, err, stream.ErrClosed)
		require.ErrorIs(t, err, errStore)

		err = w.Close()
		require.ErrorIs(t, err, stream.ErrClosed)
		require.ErrorIs(t, err, errStore)

		calls := store.Calls()
		assert.Equal(t, 1, calls.Abort)
		assert.Zero(t, calls.Complete)
	})

	t.Run("abort failure does not mask the cause", func(t *testing.T) {
		t.Parallel()

		errAbort := errors.New("abort rejected")

		store := memstore.New()
		store.FailAbort = errAbort
		store.FailPart = func(int) error { return errStore }

		w := openWriter(t, store, newKey(), stream.WithPartSize(4))

		_, err := w.Write(randomData(t, 9))
		require.NoError(t, err)

		err = w.Close()
		require.ErrorIs(t, err, errStore)
		require.ErrorIs(t, err, errAbort)

		var abortErr *stream.AbortError
		require.ErrorAs(t, err, &abortErr)
		assert.NotEmpty(t, abortErr.Upload.UploadID)
		assert.Equal(t, 1, store.Calls().Abort)
	})
}

func Test_StoreFailures(t *testing.T) {
	t.Parallel()

	t.Run("put fails", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()
		store.FailPut = errStore

		w := openWriter(t, store, newKey())

		_, err := w.Write([]byte("hello"))
		require.NoError(t, err)

		err = w.Close()
		require.ErrorIs(t, err, errStore)

		var storeErr *stream.StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "put object", storeErr.Op)

		err = w.Close()
		require.ErrorIs(t, err, stream.ErrClosed)
		assert.Equal(t, memstore.Calls{Put: 1}, store.Calls())
	})

	t.Run("initiate fails", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()
		store.FailInitiate = errStore

		w := openWriter(t, store, newKey(), stream.WithPartSize(4))

		_, err := w.Write(randomData(t, 5))
		require.ErrorIs(t, err, errStore)
		assert.Equal(t, memstore.Calls{Initiate: 1}, store.Calls())
	})

	t.Run("complete fails", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()
		store.FailComplete = errStore

		w := openWriter(t, store, newKey(), stream.WithPartSize(4))

		_, err := w.Write(randomData(t, 10))
		require.NoError(t, err)

		err = w.Close()
		require.ErrorIs(t, err, errStore)

		// a second close neither commits nor aborts again
		err = w.Close()
		require.ErrorIs(t, err, stream.ErrClosed)

		assert.Equal(t, memstore.Calls{Initiate: 1, UploadPart: 3, Complete: 1, Abort: 1}, store.Calls())
		assert.Zero(t, store.PendingUploads())
	})

	t.Run("cancelled context still aborts", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()

		ctx, cancel := context.WithCancel(context.Background())

		w, err := stream.Open(ctx, store, bucketName, newKey(), stream.WithPartSize(4))
		require.NoError(t, err)

		_, err = w.Write(randomData(t, 6))
		require.NoError(t, err)

		cancel()

		err = w.Close()
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, store.Calls().Abort)
		assert.Zero(t, store.PendingUploads())
	})
}

func Test_Abort(t *testing.T) {
	t.Parallel()

	t.Run("undecided", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()

		w := openWriter(t, store, newKey())

		_, err := w.Write([]byte("abandoned"))
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		_, err = w.Write([]byte("x"))
		require.ErrorIs(t, err, stream.ErrClosed)
		require.ErrorIs(t, err, stream.ErrAborted)

		assert.Equal(t, memstore.Calls{}, store.Calls())
	})

	t.Run("multipart", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()
		key := newKey()

		w := openWriter(t, store, key, stream.WithPartSize(4))

		_, err := w.Write(randomData(t, 9))
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		require.ErrorIs(t, w.Close(), stream.ErrAborted)
		require.ErrorIs(t, w.Abort(), stream.ErrClosed)

		calls := store.Calls()
		assert.Equal(t, 1, calls.Abort)
		assert.Zero(t, calls.Complete)
		assert.Zero(t, store.PendingUploads())

		_, ok := store.Object(bucketName, key)
		assert.False(t, ok)
	})
}

func Test_ContentType(t *testing.T) {
	t.Parallel()

	t.Run("explicit", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()
		key := newKey()

		w := openWriter(t, store, key, stream.WithContentType("application/json"))

		_, err := io.WriteString(w, `{"hello":"world"}`)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		obj, ok := store.Object(bucketName, key)
		require.True(t, ok)
		assert.Equal(t, "application/json", obj.ContentType)
	})

	t.Run("detected", func(t *testing.T) {
		t.Parallel()

		store := memstore.New()
		key := newKey()

		w := openWriter(t, store, key, stream.WithPartSize(8))

		_, err := io.WriteString(w, "just some plain text spanning several parts")
		require.NoError(t, err)
		require.NoError(t, w.Close())

		obj, ok := store.Object(bucketName, key)
		require.True(t, ok)
		assert.True(t, obj.Multipart)
		assert.Contains(t, obj.ContentType, "text/plain")
	})
}

func Test_State_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "undecided", stream.StateUndecided.String())
	assert.Equal(t, "multipart", stream.StateMultipart.String())
	assert.Equal(t, "committed", stream.StateCommitted.String())
	assert.Equal(t, "failed", stream.StateFailed.String())
	assert.Equal(t, "State(42)", stream.State(42).String())
}

func writeInChunks(t *testing.T, w io.Writer, data []byte, chunkSize int) {
	t.Helper()

	for len(data) > 0 {
		n := min(chunkSize, len(data))

		written, err := w.Write(data[:n])
		require.NoError(t, err)
		require.Equal(t, n, written)

		data = data[n:]
	}
}

func randomData(t *testing.T, size int) []byte {
	t.Helper()

	data := make([]byte, 0, size)

	for len(data) < size {
		id := uuid.New()
		data = append(data, id[:]...)
	}

	return data[:size]
}
