package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"

	"github.com/Clarilab/s3-stream/stream"
)

const codeNoSuchUpload = "NoSuchUpload"

// compile-time check that minioStore satisfies the stream.Store interface.
var _ stream.Store = (*minioStore)(nil)

// minioStore maps the stream.Store calls onto the low level multipart API of minio-go.
// minio.Client.PutObject would split the data into parts on its own, so the Core methods are used instead.
type minioStore struct {
	core *minio.Core
}

func newMinioStore(minioClient *minio.Client) *minioStore {
	return &minioStore{core: &minio.Core{Client: minioClient}}
}

func (s *minioStore) PutObject(ctx context.Context, bucket, key string, data []byte, opts stream.ObjectOptions) error {
	const errMessage = "failed to put object: %w"

	_, err := s.core.PutObject(
		ctx,
		bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		"",
		"",
		minio.PutObjectOptions{ContentType: opts.ContentType},
	)
	if err != nil {
		return fmt.Errorf(errMessage, err)
	}

	return nil
}

func (s *minioStore) InitiateMultipart(ctx context.Context, bucket, key string, opts stream.ObjectOptions) (string, error) {
	const errMessage = "failed to initiate multipart upload: %w"

	uploadID, err := s.core.NewMultipartUpload(ctx, bucket, key, minio.PutObjectOptions{ContentType: opts.ContentType})
	if err != nil {
		return "", fmt.Errorf(errMessage, err)
	}

	return uploadID, nil
}

func (s *minioStore) UploadPart(ctx context.Context, upload stream.MultipartUpload, part stream.Part) (stream.CompletedPart, error) {
	const errMessage = "failed to upload part: %w"

	objectPart, err := s.core.PutObjectPart(
		ctx,
		upload.Bucket,
		upload.Key,
		upload.UploadID,
		part.Number,
		bytes.NewReader(part.Data),
		part.Size(),
		minio.PutObjectPartOptions{},
	)
	if err != nil {
		return stream.CompletedPart{}, fmt.Errorf(errMessage, err)
	}

	return stream.CompletedPart{Number: part.Number, ETag: objectPart.ETag}, nil
}

func (s *minioStore) CompleteMultipart(ctx context.Context, upload stream.MultipartUpload, parts []stream.CompletedPart) error {
	const errMessage = "failed to complete multipart upload: %w"

	completeParts := make([]minio.CompletePart, 0, len(parts))

	for i := range parts {
		completeParts = append(completeParts, minio.CompletePart{
			PartNumber: parts[i].Number,
			ETag:       parts[i].ETag,
		})
	}

	_, err := s.core.CompleteMultipartUpload(
		ctx,
		upload.Bucket,
		upload.Key,
		upload.UploadID,
		completeParts,
		minio.PutObjectOptions{},
	)
	if err != nil {
		return fmt.Errorf(errMessage, err)
	}

	return nil
}

// AbortMultipart treats an upload the server no longer knows as aborted.
func (s *minioStore) AbortMultipart(ctx context.Context, upload stream.MultipartUpload) error {
	const errMessage = "failed to abort multipart upload: %w"

	err := s.core.AbortMultipartUpload(ctx, upload.Bucket, upload.Key, upload.UploadID)
	if err != nil && minio.ToErrorResponse(err).Code != codeNoSuchUpload {
		return fmt.Errorf(errMessage, err)
	}

	return nil
}
