// Package storage keeps uploaded source documents on the local filesystem or
// in an S3 compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

var ErrFileNotFound = errors.New("file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Namespace   string    `json:"namespace"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	SHA256      string    `json:"sha256"`
	Path        string    `json:"path"` // backend specific location
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the file operations the import flow needs. Files are
// grouped by namespace (one per company).
type Storage interface {
	Upload(ctx context.Context, namespace, filename, contentType string, r io.Reader) (*FileInfo, error)
	Download(ctx context.Context, namespace string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)
	GetInfo(ctx context.Context, namespace string, fileID uuid.UUID) (*FileInfo, error)
	Delete(ctx context.Context, namespace string, fileID uuid.UUID) error
}

// StorageType identifies the storage backend
type StorageType string

const (
	StorageTypeNone  StorageType = "none"
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// Config holds storage configuration
type Config struct {
	Type StorageType

	LocalPath string

	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string // MinIO and other S3 compatible services
}

// New creates the Storage selected by cfg. StorageTypeNone returns nil, nil.
func New(ctx context.Context, cfg *Config) (Storage, error) {
	switch cfg.Type {
	case StorageTypeNone:
		return nil, nil
	case StorageTypeS3:
		return NewS3Storage(ctx, cfg)
	case StorageTypeLocal:
		fallthrough
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}
