// Package awsstore implements stream.Store on top of the AWS SDK for Go v2.
//
// It works against Amazon S3 and any server that speaks its API, given an endpoint and path-style addressing.
package awsstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/Clarilab/s3-stream/stream"
)

const codeNoSuchUpload = "NoSuchUpload"

// API is the subset of the S3 API used by Store. *s3.Client satisfies it.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)

	CreateMultipartUpload(
		ctx context.Context,
		params *s3.CreateMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.CreateMultipartUploadOutput, error)

	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)

	CompleteMultipartUpload(
		ctx context.Context,
		params *s3.CompleteMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.CompleteMultipartUploadOutput, error)

	AbortMultipartUpload(
		ctx context.Context,
		params *s3.AbortMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.AbortMultipartUploadOutput, error)
}

// compile-time checks that the SDK client satisfies API and Store satisfies stream.Store.
var (
	_ API          = (*s3.Client)(nil)
	_ stream.Store = (*Store)(nil)
)

// Store is a stream.Store backed by the AWS SDK.
type Store struct {
	api API
}

// New returns a Store sending its requests through api.
func New(api API) *Store {
	return &Store{api: api}
}

// PutObject implements stream.Store.
func (s *Store) PutObject(ctx context.Context, bucket, key string, data []byte, opts stream.ObjectOptions) error {
	const errMessage = "failed to put object: %w"

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   contentType(opts),
	})
	if err != nil {
		return fmt.Errorf(errMessage, err)
	}

	return nil
}

// InitiateMultipart implements stream.Store.
func (s *Store) InitiateMultipart(ctx context.Context, bucket, key string, opts stream.ObjectOptions) (string, error) {
	const errMessage = "failed to create multipart upload: %w"

	output, err := s.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: contentType(opts),
	})
	if err != nil {
		return "", fmt.Errorf(errMessage, err)
	}

	if aws.ToString(output.UploadId) == "" {
		return "", fmt.Errorf(errMessage, ErrMissingUploadID)
	}

	return aws.ToString(output.UploadId), nil
}

// UploadPart implements stream.Store.
func (s *Store) UploadPart(ctx context.Context, upload stream.MultipartUpload, part stream.Part) (stream.CompletedPart, error) {
	const errMessage = "failed to upload part: %w"

	output, err := s.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(upload.Bucket),
		Key:           aws.String(upload.Key),
		UploadId:      aws.String(upload.UploadID),
		PartNumber:    aws.Int32(int32(part.Number)), //nolint:gosec // part numbers never exceed stream.MaxParts
		Body:          bytes.NewReader(part.Data),
		ContentLength: aws.Int64(part.Size()),
	})
	if err != nil {
		return stream.CompletedPart{}, fmt.Errorf(errMessage, err)
	}

	return stream.CompletedPart{Number: part.Number, ETag: aws.ToString(output.ETag)}, nil
}

// CompleteMultipart implements stream.Store.
func (s *Store) CompleteMultipart(ctx context.Context, upload stream.MultipartUpload, parts []stream.CompletedPart) error {
	const errMessage = "failed to complete multipart upload: %w"

	completedParts := make([]types.CompletedPart, 0, len(parts))

	for i := range parts {
		completedParts = append(completedParts, types.CompletedPart{
			ETag:       aws.String(parts[i].ETag),
			PartNumber: aws.Int32(int32(parts[i].Number)), //nolint:gosec // part numbers never exceed stream.MaxParts
		})
	}

	_, err := s.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(upload.Bucket),
		Key:             aws.String(upload.Key),
		UploadId:        aws.String(upload.UploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completedParts},
	})
	if err != nil {
		return fmt.Errorf(errMessage, err)
	}

	return nil
}

// AbortMultipart implements stream.Store. An upload the server no longer knows counts as aborted.
func (s *Store) AbortMultipart(ctx context.Context, upload stream.MultipartUpload) error {
	const errMessage = "failed to abort multipart upload: %w"

	_, err := s.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(upload.Bucket),
		Key:      aws.String(upload.Key),
		UploadId: aws.String(upload.UploadID),
	})
	if err != nil && !isNoSuchUpload(err) {
		return fmt.Errorf(errMessage, err)
	}

	return nil
}

func isNoSuchUpload(err error) bool {
	var apiErr smithy.APIError

	return errors.As(err, &apiErr) && apiErr.ErrorCode() == codeNoSuchUpload
}

func contentType(opts stream.ObjectOptions) *string {
	if opts.ContentType == "" {
		return nil
	}

	return aws.String(opts.ContentType)
}
