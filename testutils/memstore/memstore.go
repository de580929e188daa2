// Package memstore provides an in-memory stream.Store for tests.
//
// Besides storing objects it counts every call, records the peak number of
// parts transferred at the same time and lets tests inject failures and delays.
package memstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Clarilab/s3-stream/stream"
)

// compile-time check that Store satisfies the stream.Store interface.
var _ stream.Store = (*Store)(nil)

var (
	// ErrNoSuchUpload is returned for an unknown or finished upload id.
	ErrNoSuchUpload = errors.New("no such upload")

	// ErrInvalidPart is returned when a completion references a part that was not uploaded.
	ErrInvalidPart = errors.New("invalid part")

	// ErrInvalidPartOrder is returned when a completion lists parts out of ascending order.
	ErrInvalidPartOrder = errors.New("invalid part order")
)

// Object is a stored object.
type Object struct {
	Data        []byte
	ContentType string
	Multipart   bool
}

// Calls counts the requests a Store received.
type Calls struct {
	Put        int
	Initiate   int
	UploadPart int
	Complete   int
	Abort      int
}

// Transfer records a part stored by UploadPart.
type Transfer struct {
	UploadID string
	Number   int
	Size     int
	Final    bool
}

type upload struct {
	contentType string
	parts       map[int]uploadedPart
}

type uploadedPart struct {
	etag string
	data []byte
}

// Store is an in-memory object store. The zero value is not usable; use New.
type Store struct {
	mtx       sync.Mutex
	objects   map[string]*Object
	uploads   map[string]*upload
	calls     Calls
	inFlight  int
	peak      int
	transfers []Transfer

	// PartDelay, if set, is slept inside UploadPart before the part is stored.
	PartDelay func(partNumber int) time.Duration

	// FailPart, if set, is consulted before a part is stored; a non-nil error fails the transfer.
	FailPart func(partNumber int) error

	// FailPut, FailInitiate, FailComplete and FailAbort make the respective call fail.
	FailPut      error
	FailInitiate error
	FailComplete error
	FailAbort    error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		objects: make(map[string]*Object),
		uploads: make(map[string]*upload),
	}
}

// PutObject implements stream.Store.
func (s *Store) PutObject(ctx context.Context, bucket, key string, data []byte, opts stream.ObjectOptions) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.calls.Put++

	if err := ctx.Err(); err != nil {
		return err
	}

	if s.FailPut != nil {
		return s.FailPut
	}

	s.objects[objectName(bucket, key)] = &Object{
		Data:        bytes.Clone(data),
		ContentType: opts.ContentType,
	}

	return nil
}

// InitiateMultipart implements stream.Store.
func (s *Store) InitiateMultipart(ctx context.Context, _, _ string, opts stream.ObjectOptions) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.calls.Initiate++

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if s.FailInitiate != nil {
		return "", s.FailInitiate
	}

	uploadID := uuid.NewString()

	s.uploads[uploadID] = &upload{
		contentType: opts.ContentType,
		parts:       make(map[int]uploadedPart),
	}

	return uploadID, nil
}

// UploadPart implements stream.Store.
func (s *Store) UploadPart(ctx context.Context, mu stream.MultipartUpload, part stream.Part) (stream.CompletedPart, error) {
	s.mtx.Lock()
	s.calls.UploadPart++
	s.inFlight++
	s.peak = max(s.peak, s.inFlight)
	s.mtx.Unlock()

	defer func() {
		s.mtx.Lock()
		s.inFlight--
		s.mtx.Unlock()
	}()

	if s.PartDelay != nil {
		select {
		case <-time.After(s.PartDelay(part.Number)):
		case <-ctx.Done():
			return stream.CompletedPart{}, ctx.Err()
		}
	}

	if s.FailPart != nil {
		if err := s.FailPart(part.Number); err != nil {
			return stream.CompletedPart{}, err
		}
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	u, ok := s.uploads[mu.UploadID]
	if !ok {
		return stream.CompletedPart{}, ErrNoSuchUpload
	}

	etag := uuid.NewString()

	u.parts[part.Number] = uploadedPart{etag: etag, data: bytes.Clone(part.Data)}
	s.transfers = append(s.transfers, Transfer{
		UploadID: mu.UploadID,
		Number:   part.Number,
		Size:     len(part.Data),
		Final:    part.Final,
	})

	return stream.CompletedPart{Number: part.Number, ETag: etag}, nil
}

// CompleteMultipart implements stream.Store.
func (s *Store) CompleteMultipart(ctx context.Context, mu stream.MultipartUpload, parts []stream.CompletedPart) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.calls.Complete++

	if err := ctx.Err(); err != nil {
		return err
	}

	if s.FailComplete != nil {
		return s.FailComplete
	}

	u, ok := s.uploads[mu.UploadID]
	if !ok {
		return ErrNoSuchUpload
	}

	var content bytes.Buffer

	for i, part := range parts {
		if i > 0 && part.Number <= parts[i-1].Number {
			return fmt.Errorf("%w: part %d listed after part %d", ErrInvalidPartOrder, part.Number, parts[i-1].Number)
		}

		uploaded, ok := u.parts[part.Number]
		if !ok || uploaded.etag != part.ETag {
			return fmt.Errorf("%w: part %d", ErrInvalidPart, part.Number)
		}

		content.Write(uploaded.data)
	}

	s.objects[objectName(mu.Bucket, mu.Key)] = &Object{
		Data:        content.Bytes(),
		ContentType: u.contentType,
		Multipart:   true,
	}

	delete(s.uploads, mu.UploadID)

	return nil
}

// AbortMultipart implements stream.Store.
func (s *Store) AbortMultipart(_ context.Context, mu stream.MultipartUpload) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.calls.Abort++

	if s.FailAbort != nil {
		return s.FailAbort
	}

	if _, ok := s.uploads[mu.UploadID]; !ok {
		return ErrNoSuchUpload
	}

	delete(s.uploads, mu.UploadID)

	return nil
}

// Object returns the object under bucket and key.
func (s *Store) Object(bucket, key string) (*Object, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	obj, ok := s.objects[objectName(bucket, key)]

	return obj, ok
}

// Calls returns the number of requests received so far.
func (s *Store) Calls() Calls {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.calls
}

// PeakInFlight returns the highest number of concurrent UploadPart calls observed.
func (s *Store) PeakInFlight() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.peak
}

// Transfers returns the stored parts in the order their transfers finished.
func (s *Store) Transfers() []Transfer {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return append([]Transfer(nil), s.transfers...)
}

// PendingUploads returns the number of multipart uploads neither completed nor aborted.
func (s *Store) PendingUploads() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return len(s.uploads)
}

func objectName(bucket, key string) string {
	return bucket + "/" + key
}
