package s3

import (
	"fmt"
	"io"
	"time"
)

// File is a file downloaded from s3.
type File interface {
	io.ReadCloser
	// Info returns the file information.
	Info() *FileInfo
	// Bytes reads the entire file and returns its content as a byte slice.
	//
	// Note: The file is closed and must not be read after using this function!
	Bytes() ([]byte, error)
}

type file struct {
	io.ReadCloser
	info *FileInfo
}

// Info implements the File interface.
func (f *file) Info() *FileInfo {
	return f.info
}

// Bytes implements the File interface.
func (f *file) Bytes() ([]byte, error) {
	const errMessage = "failed to read file: %w"

	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf(errMessage, err)
	}

	return content, nil
}

// FileInfo contains information about a file.
type FileInfo struct {
	Name         string
	Path         string
	Size         int64
	ContentType  string
	ETag         string
	MetaData     map[string]string
	ModifiedDate time.Time
}
