package s3

import (
	"context"
	"fmt"
	pathpkg "path"

	"github.com/minio/minio-go/v7"
)

const codeNoSuchKey = "NoSuchKey"

func (c *client) GetFile(ctx context.Context, path string) (File, error) {
	const errMessage = "failed to get file from s3: %w"

	object, err := c.minioClient.GetObject(ctx, c.bucketName, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf(errMessage, err)
	}

	objInfo, err := object.Stat()
	if err != nil {
		_ = object.Close()

		if minio.ToErrorResponse(err).Code == codeNoSuchKey {
			return nil, fmt.Errorf(errMessage, ErrNotFound)
		}

		return nil, fmt.Errorf(errMessage, err)
	}

	return &file{ReadCloser: object, info: newFileInfo(path, objInfo)}, nil
}

func (c *client) GetFileInfo(ctx context.Context, path string) (*FileInfo, error) {
	const errMessage = "failed to get file info: %w"

	objInfo, err := c.minioClient.StatObject(ctx, c.bucketName, path, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == codeNoSuchKey {
			return nil, fmt.Errorf(errMessage, ErrNotFound)
		}

		return nil, fmt.Errorf(errMessage, err)
	}

	return newFileInfo(path, objInfo), nil
}

func (c *client) DownloadFile(ctx context.Context, path, localPath string) error {
	const errMessage = "failed to download file: %w"

	err := c.minioClient.FGetObject(ctx, c.bucketName, path, localPath, minio.GetObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == codeNoSuchKey {
			return fmt.Errorf(errMessage, ErrNotFound)
		}

		return fmt.Errorf(errMessage, err)
	}

	return nil
}

func newFileInfo(path string, objInfo minio.ObjectInfo) *FileInfo {
	return &FileInfo{
		Name:         pathpkg.Base(path),
		Path:         objInfo.Key,
		Size:         objInfo.Size,
		ContentType:  objInfo.ContentType,
		ETag:         objInfo.ETag,
		MetaData:     objInfo.UserMetadata,
		ModifiedDate: objInfo.LastModified,
	}
}
