package storage

import (
	"Zyncrate/config"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store implements Store on any S3 compatible API (AWS, Cloudflare R2, ...).
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewS3Store builds an S3 client with static credentials.
func NewS3Store(ctx context.Context, cfg config.StorageConfig, bucket string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}
	awsCfg := aws.Config{
		Region:           cfg.S3Region,
		Credentials:      credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		RetryMode:        aws.RetryModeStandard,
		RetryMaxAttempts: 3,
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})
	// uploader 会按 part 缓冲 所以不要求 reader 可 Seek
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 16 * 1024 * 1024
		u.Concurrency = 2
	})

	store := &S3Store{client: client, uploader: uploader, bucket: bucket}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	log.Printf("[storage] s3 ready, endpoint=%s bucket=%s", cfg.S3Endpoint, bucket)
	return store, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// PutObject streams an object into the bucket.
func (s *S3Store) PutObject(ctx context.Context, object string, reader io.Reader, size int64, opts PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(object),
		Body:   reader,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	_, err := s.uploader.Upload(ctx, input)
	return err
}

// GetObject opens an object for reading.
func (s *S3Store) GetObject(ctx context.Context, object string) (io.ReadCloser, ObjectInfo, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(object),
	})
	if err != nil {
		return nil, ObjectInfo{}, mapS3Err(err)
	}
	info := ObjectInfo{
		ObjectName:   object,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
	}
	return out.Body, info, nil
}

// RemoveObject deletes an object. S3 answers 204 for missing keys.
func (s *S3Store) RemoveObject(ctx context.Context, object string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(object),
	})
	return mapS3Err(err)
}

// ListObjects walks every object under prefix page by page.
func (s *S3Store) ListObjects(ctx context.Context, prefix string, fn func(ObjectInfo) error) error {
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			if err := fn(ObjectInfo{
				ObjectName:   aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func mapS3Err(err error) error {
	if err == nil {
		return nil
	}
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}
