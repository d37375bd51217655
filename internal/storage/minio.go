package storage

import (
	"Zyncrate/config"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore implements Store with a MinIO client.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and creates the bucket when missing.
func NewMinioStore(ctx context.Context, cfg config.StorageConfig, bucket string) (*MinioStore, error) {
	client, err := minio.New(fmt.Sprintf("%s:%s", cfg.MinioHost, cfg.MinioPort), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioUsername, cfg.MinioPassword, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists { // 不需要人工去 minio 建立 bucket 直接后端进行操作
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	log.Printf("[storage] minio ready, bucket=%s", bucket)
	return &MinioStore{client: client, bucket: bucket}, nil
}

// PutObject uploads an object to MinIO.
func (s *MinioStore) PutObject(ctx context.Context, object string, reader io.Reader, size int64, opts PutOptions) error {
	_, err := s.client.PutObject(ctx, s.bucket, object, reader, size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	return err
}

// GetObject fetches an object and its size from MinIO.
// minio 的 GetObject 是惰性的 需要 Stat 才能拿到 NoSuchKey
func (s *MinioStore) GetObject(ctx context.Context, object string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, mapMinioErr(err)
	}
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectInfo{}, mapMinioErr(err)
	}
	info := ObjectInfo{
		ObjectName:   object,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		LastModified: stat.LastModified,
	}
	return obj, info, nil
}

// RemoveObject deletes an object from MinIO. MinIO reports success for
// missing keys, so ErrObjectNotFound is never returned here.
func (s *MinioStore) RemoveObject(ctx context.Context, object string) error {
	return mapMinioErr(s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{}))
}

// ListObjects walks every object under prefix.
func (s *MinioStore) ListObjects(ctx context.Context, prefix string, fn func(ObjectInfo) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objectsCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectsCh {
		if object.Err != nil {
			return object.Err
		}
		if err := fn(ObjectInfo{
			ObjectName:   object.Key,
			Size:         object.Size,
			ContentType:  object.ContentType,
			LastModified: object.LastModified,
		}); err != nil {
			return err
		}
	}
	return nil
}

func mapMinioErr(err error) error {
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}
