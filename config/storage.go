package config

import "fmt"

const (
	StorageMinio  = "minio"
	StorageS3     = "s3" // any S3 compatible endpoint, Cloudflare R2 included
	StorageMemory = "memory"
)

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Provider string `env:"STORAGE_PROVIDER" envDefault:"minio"`

	MinioHost     string `env:"MINIO_HOST" envDefault:"localhost"`
	MinioPort     string `env:"MINIO_PORT" envDefault:"9000"`
	MinioUsername string `env:"MINIO_USERNAME" envDefault:"minioadmin"`
	MinioPassword string `env:"MINIO_PASSWORD" envDefault:"minioadmin"`
	MinioUseSSL   bool   `env:"MINIO_USE_SSL" envDefault:"false"`

	S3Endpoint     string `env:"S3_ENDPOINT"` // e.g. https://<account>.r2.cloudflarestorage.com
	S3Region       string `env:"S3_REGION" envDefault:"auto"`
	S3AccessKey    string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey    string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`

	BucketName     string `env:"BUCKET_NAME" envDefault:"zyncrate"`
	BucketNameTest string `env:"BUCKET_NAME_TEST" envDefault:"zyncrate-test"`
}

func (s StorageConfig) validate() error {
	switch s.Provider {
	case StorageMinio, StorageMemory:
		return nil
	case StorageS3:
		if s.S3AccessKey == "" || s.S3SecretKey == "" {
			return fmt.Errorf("storage provider %q needs S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY", s.Provider)
		}
		return nil
	default:
		return fmt.Errorf("unknown storage provider %q", s.Provider)
	}
}
