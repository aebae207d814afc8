package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- MOCKS ---

type MockMinio struct {
	mock.Mock
}

func (m *MockMinio) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockMinio) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

type MockS3 struct {
	mock.Mock
}

func (m *MockS3) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*manager.UploadOutput)
	return out, args.Error(1)
}

func (m *MockS3) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.HeadBucketOutput)
	return out, args.Error(1)
}

// --- TESTS ---

func TestMemoryProvider_UploadAndFail(t *testing.T) {
	p := NewMemoryProvider()
	p.FailKey("Kenya/Zillow/bad.pdf", errors.New("boom"))

	info, err := p.Upload(context.Background(), Object{
		Bucket: "docs", Key: "Kenya/Zillow/lease.pdf", Body: strings.NewReader("hello"), Size: 5, ContentType: "application/pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	_, err = p.Upload(context.Background(), Object{Bucket: "docs", Key: "Kenya/Zillow/bad.pdf", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrUploadFailed)

	obj, ok := p.Object("docs", "Kenya/Zillow/lease.pdf")
	require.True(t, ok)
	assert.Equal(t, "hello", string(obj.Data))
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Equal(t, []string{"docs/Kenya/Zillow/lease.pdf"}, p.Paths())
	assert.Equal(t, 2, p.Calls())
}

func TestMinioProvider_Upload(t *testing.T) {
	client := new(MockMinio)
	p := &MinioProvider{client: client}
	body := strings.NewReader("abc")

	client.On("PutObject", mock.Anything, "docs", "Uganda/Olx/a%20b.png", body, int64(3),
		minio.PutObjectOptions{ContentType: "image/png"}).
		Return(minio.UploadInfo{Key: "Uganda/Olx/a%20b.png", ETag: "etag-1", Size: 3}, nil)

	info, err := p.Upload(context.Background(), Object{
		Bucket: "docs", Key: "Uganda/Olx/a%20b.png", Body: body, Size: 3, ContentType: "image/png",
	})

	require.NoError(t, err)
	assert.Equal(t, "etag-1", info.ETag)
	assert.Equal(t, Bucket("docs"), info.Bucket)
	client.AssertExpectations(t)
}

func TestMinioProvider_PingMissingBucket(t *testing.T) {
	client := new(MockMinio)
	client.On("BucketExists", mock.Anything, "docs").Return(false, nil)
	p := &MinioProvider{client: client}

	err := p.Ping(context.Background(), "docs")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMapMinioError(t *testing.T) {
	assert.NoError(t, mapMinioError(nil))
	assert.ErrorIs(t, mapMinioError(minio.ErrorResponse{Code: "NoSuchBucket"}), ErrNotFound)
	assert.ErrorIs(t, mapMinioError(minio.ErrorResponse{Code: "AccessDenied"}), ErrAccessDenied)
	assert.ErrorIs(t, mapMinioError(minio.ErrorResponse{StatusCode: 403}), ErrAccessDenied)

	raw := errors.New("connection reset")
	mapped := mapMinioError(raw)
	assert.ErrorIs(t, mapped, ErrUploadFailed)
	assert.ErrorIs(t, mapped, raw)
}

func TestS3Provider_Upload(t *testing.T) {
	client := new(MockS3)
	p := &S3Provider{uploader: client, client: client}

	client.On("Upload", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "docs" &&
			aws.ToString(in.Key) == "Kenya/Zillow/lease.pdf" &&
			aws.ToInt64(in.ContentLength) == 4
	})).Return(&manager.UploadOutput{ETag: aws.String("etag-2")}, nil)

	info, err := p.Upload(context.Background(), Object{
		Bucket: "docs", Key: "Kenya/Zillow/lease.pdf", Body: strings.NewReader("data"), Size: 4, ContentType: "application/pdf",
	})

	require.NoError(t, err)
	assert.Equal(t, "etag-2", info.ETag)
	client.AssertExpectations(t)
}

func TestS3Provider_UploadMapsAPIErrors(t *testing.T) {
	client := new(MockS3)
	p := &S3Provider{uploader: client, client: client}
	client.On("Upload", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "nope"})

	_, err := p.Upload(context.Background(), Object{Bucket: "docs", Key: "k", Body: strings.NewReader("")})

	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestS3Provider_Ping(t *testing.T) {
	client := new(MockS3)
	p := &S3Provider{uploader: client, client: client}
	client.On("HeadBucket", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "NotFound"})

	assert.ErrorIs(t, p.Ping(context.Background(), "missing"), ErrNotFound)
}

func TestMapS3Error_Unknown(t *testing.T) {
	raw := errors.New("dial tcp: timeout")

	err := mapS3Error(raw)

	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.ErrorIs(t, err, raw)
}
