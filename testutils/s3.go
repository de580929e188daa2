// Package testutils starts a MinIO container for integration tests.
package testutils

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"

	"github.com/Clarilab/s3-stream"
)

const (
	user     = "admin"
	passwd   = "password"
	imageTag = "minio/minio:RELEASE.2024-01-16T16-07-38Z"
)

// StopFunc is a function to stop the created container.
type StopFunc func() error

// Server is a running MinIO container.
type Server struct {
	Host      string
	AccessKey string
	Secret    string
}

// StartServer starts a container with a running MinIO instance.
//
// Notes:
// Only meant to be used for testing purposes.
// Host MUST have a docker engine running.
func StartServer(ctx context.Context) (*Server, StopFunc, error) {
	const errMessage = "failed to start minio server: %w"

	container, err := tcminio.Run(ctx, imageTag, tcminio.WithUsername(user), tcminio.WithPassword(passwd))
	if err != nil {
		return nil, nil, fmt.Errorf(errMessage, err)
	}

	stop := func() error { return container.Terminate(context.Background()) }

	host, err := container.ConnectionString(ctx)
	if err != nil {
		_ = stop()

		return nil, nil, fmt.Errorf(errMessage, err)
	}

	return &Server{Host: host, AccessKey: user, Secret: passwd}, stop, nil
}

// MakeBucket creates a bucket on the server.
func (s *Server) MakeBucket(ctx context.Context, bucketName string) error {
	const errMessage = "failed to make bucket: %w"

	minioClient, err := minio.New(s.Host, &minio.Options{
		Secure: false,
		Creds:  credentials.NewStaticV4(s.AccessKey, s.Secret, ""),
	})
	if err != nil {
		return fmt.Errorf(errMessage, err)
	}

	if err = minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf(errMessage, err)
	}

	return nil
}

// Details returns the connection details for a client bound to bucketName.
func (s *Server) Details(bucketName string) *s3.ClientDetails {
	return &s3.ClientDetails{
		Host:         s.Host,
		AccessKey:    s.AccessKey,
		AccessSecret: s.Secret,
		BucketName:   bucketName,
		Secure:       false,
	}
}

// NewClient starts a container with a running MinIO instance, creates the bucket
// and returns a new s3.Client, a function to stop the container on purpose and an error.
//
// Notes:
// Only meant to be used for testing purposes.
// Host MUST have a docker engine running.
func NewClient(ctx context.Context, bucketName string, options ...s3.ClientOption) (s3.Client, StopFunc, error) {
	const errMessage = "failed to create new client: %w"

	server, stop, err := StartServer(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf(errMessage, err)
	}

	if err = server.MakeBucket(ctx, bucketName); err != nil {
		_ = stop()

		return nil, nil, fmt.Errorf(errMessage, err)
	}

	conn, err := s3.NewClient(ctx, server.Details(bucketName), options...)
	if err != nil {
		_ = stop()

		return nil, nil, fmt.Errorf(errMessage, err)
	}

	return conn, stop, nil
}
