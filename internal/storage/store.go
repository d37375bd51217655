package storage

import (
	"Zyncrate/config"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrObjectNotFound is returned by GetObject/RemoveObject for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// PutOptions describes upload options for object storage.
type PutOptions struct {
	ContentType string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	ObjectName   string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Store abstracts object storage operations against one bucket.
type Store interface {
	PutObject(ctx context.Context, object string, reader io.Reader, size int64, opts PutOptions) error
	GetObject(ctx context.Context, object string) (io.ReadCloser, ObjectInfo, error)
	RemoveObject(ctx context.Context, object string) error
	ListObjects(ctx context.Context, prefix string, fn func(ObjectInfo) error) error
}

// New builds the configured store and makes sure the bucket exists.
func New(ctx context.Context, cfg config.StorageConfig, bucket string) (Store, error) {
	switch cfg.Provider {
	case config.StorageMinio:
		return NewMinioStore(ctx, cfg, bucket)
	case config.StorageS3:
		return NewS3Store(ctx, cfg, bucket)
	case config.StorageMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
