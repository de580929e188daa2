package s3

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Clarilab/s3-stream/stream"
)

// compile-time check that client satisfies the Client interface.
var _ Client = (*client)(nil)

type client struct {
	minioClient   *minio.Client
	store         *minioStore
	bucketName    string
	urlValues     url.Values
	cancelFunc    context.CancelFunc
	logger        *slog.Logger
	streamOptions []stream.Option
	concurrency   int
}

// NewClient instantiates a s3 client bound to the bucket in details.
func NewClient(ctx context.Context, details *ClientDetails, options ...ClientOption) (Client, error) {
	const errMessage = "failed to create s3 client: %w"

	if details == nil {
		return nil, fmt.Errorf(errMessage, ErrNilClientDetails)
	}

	if err := details.validate(); err != nil {
		return nil, fmt.Errorf(errMessage, err)
	}

	client := &client{
		bucketName:  details.BucketName,
		urlValues:   make(url.Values),
		logger:      slog.New(slog.DiscardHandler),
		concurrency: stream.DefaultConcurrency,
	}

	var err error

	client.minioClient, err = minio.New(details.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(details.AccessKey, details.AccessSecret, ""),
		Secure: details.Secure,
		Region: details.Region,
	})
	if err != nil {
		return nil, fmt.Errorf(errMessage, err)
	}

	client.store = newMinioStore(client.minioClient)

	for i := range options {
		if err := options[i](client); err != nil {
			client.Close()

			return nil, fmt.Errorf(errMessage, err)
		}
	}

	exists, err := client.minioClient.BucketExists(ctx, client.bucketName)
	if err != nil {
		client.Close()

		return nil, fmt.Errorf(errMessage, err)
	}

	if !exists {
		client.Close()

		return nil, fmt.Errorf(errMessage, &BucketDoesNotExistError{client.bucketName})
	}

	client.urlValues.Set("response-content-disposition", "inline")

	return client, nil
}

func (c *client) Close() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

func (c *client) IsOnline() bool {
	return c.minioClient.IsOnline()
}

func (c *client) Store() stream.Store {
	return c.store
}
