package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ Provider = (*MinioProvider)(nil)

// minioAPI is the slice of *minio.Client used here.
type minioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

type MinioProvider struct {
	client minioAPI
}

// NewMinioProvider initializes the MinIO client.
// In production, pass 'useSSL: true' for S3/Cloud.
func NewMinioProvider(endpoint, accessKeyID, secretAccessKey, region string, useSSL bool) (*MinioProvider, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioProvider{client: client}, nil
}

// Upload streams the object with a single PutObject call. minio-go switches to
// multipart on its own once the size crosses its part threshold.
func (m *MinioProvider) Upload(ctx context.Context, obj Object) (UploadInfo, error) {
	opts := minio.PutObjectOptions{
		ContentType: obj.ContentType,
	}

	info, err := m.client.PutObject(ctx, string(obj.Bucket), obj.Key, obj.Body, obj.Size, opts)
	if err != nil {
		return UploadInfo{}, mapMinioError(err)
	}

	return UploadInfo{
		Bucket: obj.Bucket,
		Key:    info.Key,
		ETag:   info.ETag,
		Size:   info.Size,
	}, nil
}

func (m *MinioProvider) Ping(ctx context.Context, bucket Bucket) error {
	exists, err := m.client.BucketExists(ctx, string(bucket))
	if err != nil {
		return mapMinioError(err)
	}
	if !exists {
		return fmt.Errorf("bucket %q: %w", bucket, ErrNotFound)
	}
	return nil
}

// --- Helper: Error Mapping ---

// mapMinioError translates MinIO SDK errors into our domain errors
func mapMinioError(err error) error {
	if err == nil {
		return nil
	}

	errResp := minio.ToErrorResponse(err)

	switch errResp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrNotFound, errResp.Message)
	case "AccessDenied":
		return fmt.Errorf("%w: %s", ErrAccessDenied, errResp.Message)
	}

	// Also check HTTP status codes if Code is empty
	if errResp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if errResp.StatusCode == http.StatusForbidden {
		return ErrAccessDenied
	}

	return fmt.Errorf("%w: %w", ErrUploadFailed, err)
}
