package storage

import (
	"context"
	"errors"
	"io"
)

// Bucket represents a logical storage zone.
// We use a named type to prevent passing random strings.
type Bucket string

// Wrapper for standard errors so checking them is consistent
var (
	ErrNotFound     = errors.New("storage: not found")
	ErrAccessDenied = errors.New("storage: access denied")
	ErrUploadFailed = errors.New("storage: upload failed")
)

// Object is one upload request: store Body at Key in Bucket.
type Object struct {
	Bucket      Bucket
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
}

type UploadInfo struct {
	Bucket Bucket
	Key    string
	ETag   string
	Size   int64
}

// Provider abstracts S3, MinIO, or an in-process fake.
// Implementations must be safe for concurrent use; one submit fans out
// one Upload call per staged file.
type Provider interface {
	// Upload stores the object, overwriting anything already at the key.
	Upload(ctx context.Context, obj Object) (UploadInfo, error)

	// Ping checks that the bucket is reachable. Used by the health check.
	Ping(ctx context.Context, bucket Bucket) error
}
