package s3

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/Clarilab/s3-stream/internal/workerpool"
)

func (c *client) GetDirectory(ctx context.Context, path string) ([]File, error) {
	const errMessage = "failed to get directory: %w"

	files, err := forEachObject(ctx, c, path, true, func(ctx context.Context, key string) (File, error) {
		return c.GetFile(ctx, key)
	})
	if err != nil {
		for i := range files {
			_ = files[i].Close()
		}

		return nil, fmt.Errorf(errMessage, err)
	}

	return files, nil
}

func (c *client) GetDirectoryInfos(ctx context.Context, path string) ([]*FileInfo, error) {
	const errMessage = "failed to get directory infos: %w"

	infos, err := forEachObject(ctx, c, path, true, c.GetFileInfo)
	if err != nil {
		return nil, fmt.Errorf(errMessage, err)
	}

	return infos, nil
}

func (c *client) DownloadDirectory(ctx context.Context, path, localPath string, recursive bool) error {
	const errMessage = "failed to download files from s3: %w"

	_, err := forEachObject(ctx, c, path, recursive, func(ctx context.Context, key string) (struct{}, error) {
		target, err := localFilePath(path, key, localPath)
		if err != nil {
			return struct{}{}, err
		}

		return struct{}{}, c.DownloadFile(ctx, key, target)
	})
	if err != nil {
		return fmt.Errorf(errMessage, err)
	}

	return nil
}

// forEachObject runs fn for every object under prefix on a pool of c.concurrency workers.
// The results are in listing order. On error the results of the successful calls are
// still returned so the caller can release them.
func forEachObject[T any](
	ctx context.Context,
	c *client,
	prefix string,
	recursive bool,
	fn func(ctx context.Context, key string) (T, error),
) ([]T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := workerpool.New(c.concurrency)

	objectCh := c.minioClient.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	})

	var (
		futures []*workerpool.Future[T]
		listErr error
	)

	for objInfo := range objectCh {
		if objInfo.Err != nil {
			listErr = objInfo.Err

			break
		}

		// a listing without recursion reports common prefixes as keys ending in a slash
		if strings.HasSuffix(objInfo.Key, "/") {
			continue
		}

		key := objInfo.Key

		future, err := workerpool.Go(ctx, pool, func() (T, error) {
			return fn(ctx, key)
		})
		if err != nil {
			listErr = err

			break
		}

		futures = append(futures, future)
	}

	pool.Shutdown()

	results := make([]T, 0, len(futures))
	errs := make([]error, 0)

	for i := range futures {
		result, err := futures[i].Wait()
		if err != nil {
			errs = append(errs, err)

			continue
		}

		results = append(results, result)
	}

	if len(errs) > 0 {
		listErr = errors.Join(listErr, &DownloadingFilesFailedError{errs})
	}

	return results, listErr
}

// localFilePath maps key below prefix to a path below localPath.
func localFilePath(prefix, key, localPath string) (string, error) {
	name := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
	if name == "" {
		name = filepath.Base(key)
	}

	name = filepath.FromSlash(name)

	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %s", ErrKeyOutsideDirectory, key)
	}

	return filepath.Join(localPath, name), nil
}
