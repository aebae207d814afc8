package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

var _ Provider = (*S3Provider)(nil)

type S3Config struct {
	Region          string
	Endpoint        string // optional, for S3 compatible services
	AccessKeyID     string // optional, falls back to the default credential chain
	SecretAccessKey string
	ForcePathStyle  bool
}

type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type s3Header interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Provider uploads through the managed uploader, which splits large bodies
// into concurrent multipart uploads.
type S3Provider struct {
	uploader s3Uploader
	client   s3Header
}

func NewS3Provider(ctx context.Context, cfg S3Config) (*S3Provider, error) {
	if cfg.Region == "" {
		return nil, errors.New("s3: region must not be empty")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Provider{
		uploader: manager.NewUploader(client),
		client:   client,
	}, nil
}

func (p *S3Provider) Upload(ctx context.Context, obj Object) (UploadInfo, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(string(obj.Bucket)),
		Key:         aws.String(obj.Key),
		Body:        obj.Body,
		ContentType: aws.String(obj.ContentType),
	}
	if obj.Size >= 0 {
		input.ContentLength = aws.Int64(obj.Size)
	}

	out, err := p.uploader.Upload(ctx, input)
	if err != nil {
		return UploadInfo{}, mapS3Error(err)
	}

	return UploadInfo{
		Bucket: obj.Bucket,
		Key:    obj.Key,
		ETag:   aws.ToString(out.ETag),
		Size:   obj.Size,
	}, nil
}

func (p *S3Provider) Ping(ctx context.Context, bucket Bucket) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(string(bucket))})
	if err != nil {
		return mapS3Error(err)
	}
	return nil
}

// mapS3Error translates AWS API errors into our domain errors.
func mapS3Error(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.ErrorMessage())
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %s", ErrAccessDenied, apiErr.ErrorMessage())
		}
	}

	return fmt.Errorf("%w: %w", ErrUploadFailed, err)
}
