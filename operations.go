package s3

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/Clarilab/s3-stream/stream"
)

const codeNoSuchLifecycleConfiguration = "NoSuchLifecycleConfiguration"

func (c *client) ListFiles(ctx context.Context, prefix string, recursive bool) ([]string, error) {
	const errMessage = "failed to list files: %w"

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objectCh := c.minioClient.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	})

	result := make([]string, 0)

	for obj := range objectCh {
		if obj.Err != nil {
			return nil, fmt.Errorf(errMessage, obj.Err)
		}

		result = append(result, obj.Key)
	}

	return result, nil
}

func (c *client) RemoveFile(ctx context.Context, path string) error {
	const errMessage = "failed to remove file: %w"

	if err := c.minioClient.RemoveObject(ctx, c.bucketName, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf(errMessage, err)
	}

	return nil
}

func (c *client) CreateFileLink(ctx context.Context, path string, expiration time.Duration) (*url.URL, error) {
	return c.minioClient.PresignedGetObject( //nolint:wrapcheck
		ctx,
		c.bucketName,
		path,
		expiration,
		c.urlValues,
	)
}

// AddAbortIncompleteUploadsRule keeps the other rules of the bucket and replaces a rule with the same id.
func (c *client) AddAbortIncompleteUploadsRule(ctx context.Context, ruleID, prefix string, days int) error {
	const (
		errMessage    = "failed to add abort incomplete uploads rule: %w"
		statusEnabled = "Enabled"
	)

	if days < 1 {
		return fmt.Errorf(errMessage, ErrInvalidDays)
	}

	config, err := c.minioClient.GetBucketLifecycle(ctx, c.bucketName)
	if err != nil {
		if minio.ToErrorResponse(err).Code != codeNoSuchLifecycleConfiguration {
			return fmt.Errorf(errMessage, err)
		}

		config = lifecycle.NewConfiguration()
	}

	config.Rules = slices.DeleteFunc(config.Rules, func(rule lifecycle.Rule) bool {
		return rule.ID == ruleID
	})

	config.Rules = append(config.Rules, lifecycle.Rule{
		ID:     ruleID,
		Status: statusEnabled,
		RuleFilter: lifecycle.Filter{
			Prefix: prefix,
		},
		AbortIncompleteMultipartUpload: lifecycle.AbortIncompleteMultipartUpload{
			DaysAfterInitiation: lifecycle.ExpirationDays(days),
		},
	})

	if err = c.minioClient.SetBucketLifecycle(ctx, c.bucketName, config); err != nil {
		return fmt.Errorf(errMessage, err)
	}

	return nil
}

func (c *client) AbortIncompleteUploads(ctx context.Context, prefix string) (int, error) {
	const errMessage = "failed to abort incomplete uploads: %w"

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	uploadCh := c.minioClient.ListIncompleteUploads(ctx, c.bucketName, prefix, true)

	var (
		aborted int
		errs    []error
	)

	for info := range uploadCh {
		if info.Err != nil {
			return aborted, fmt.Errorf(errMessage, info.Err)
		}

		upload := stream.MultipartUpload{
			Bucket:   c.bucketName,
			Key:      info.Key,
			UploadID: info.UploadID,
		}

		if err := c.store.AbortMultipart(ctx, upload); err != nil {
			errs = append(errs, err)

			continue
		}

		aborted++

		c.logger.Info("aborted incomplete upload",
			"bucket", c.bucketName,
			"key", info.Key,
			"upload_id", info.UploadID,
			"initiated", info.Initiated,
		)
	}

	if len(errs) > 0 {
		return aborted, fmt.Errorf(errMessage, &AbortingUploadsFailedError{errs})
	}

	return aborted, nil
}
