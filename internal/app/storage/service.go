package storage

import (
	"context"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// StorageService defines the public interface for the avatar object store.
// Uploads never pass through this server: clients PUT directly against a
// presigned URL and then reference the object key in a profile update.
type StorageService interface {
	// PresignUpload generates a pre-signed URL for uploading an object.
	PresignUpload(
		ctx context.Context,
		key string,
		mimeType string,
		fileSize int64,
		duration time.Duration,
	) (string, error)

	// Delete removes the object with the given key.
	Delete(ctx context.Context, key string) error

	// GetObjectMetadata retrieves the object's metadata, used to verify that
	// a claimed upload actually landed before the key is stored.
	GetObjectMetadata(ctx context.Context, key string) (map[string]string, error)
}

// NewStorageService is the factory function for StorageService.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewStorageService(cfg ServiceConfig) (StorageService, error) {
	// Currently, only S3-compatible implementations are supported.
	return newS3Client(cfg)
}
