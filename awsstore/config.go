package awsstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	// ErrMissingUploadID indicates that the server accepted a multipart upload without returning its id.
	ErrMissingUploadID = errors.New("server returned no upload id")

	// ErrIncompleteCredentials indicates that only one of access key and secret key was given.
	ErrIncompleteCredentials = errors.New("access key and secret key must be given together")
)

// Config holds the connection settings for NewFromConfig.
// Empty fields fall back to the default AWS configuration chain.
type Config struct {
	Region       string
	Endpoint     string // for S3 compatible servers, e.g. "http://localhost:9000"
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// NewFromConfig loads the AWS configuration and returns a Store using a new S3 client.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	const errMessage = "failed to create aws store: %w"

	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, fmt.Errorf(errMessage, ErrIncompleteCredentials)
	}

	var loadOptions []func(*config.LoadOptions) error

	if cfg.Region != "" {
		loadOptions = append(loadOptions, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf(errMessage, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle

		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return New(client), nil
}
