package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// metadata keys stored on every object
const (
	metaFilename = "filename"
	metaUploaded = "uploaded-at"
	metaSHA256   = "sha256"
)

// S3API is the subset of *s3.Client used by S3Storage.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage implements Storage using Amazon S3 or S3-compatible services.
// Objects are keyed <namespace>/<file id>; the original name travels in the
// object metadata.
type S3Storage struct {
	client S3API
	bucket string
}

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// NewS3Storage creates a new S3 storage instance
func NewS3Storage(ctx context.Context, cfg *Config) (*S3Storage, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("S3 bucket is required")
	}
	if cfg.S3Region == "" {
		return nil, errors.New("S3 region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StorageWithClient(client, cfg.S3Bucket), nil
}

// NewS3StorageWithClient wraps an existing client.
func NewS3StorageWithClient(client S3API, bucket string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket}
}

// Upload stores a file in S3 and returns its metadata
func (s *S3Storage) Upload(ctx context.Context, namespace, filename, contentType string, r io.Reader) (*FileInfo, error) {
	fileID := uuid.New()
	key := objectKey(namespace, fileID)
	now := time.Now().UTC()

	// the SDK signs the payload, so it needs a seekable body of known length
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			metaFilename: url.QueryEscape(filename),
			metaUploaded: now.Format(time.RFC3339),
			metaSHA256:   checksum,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &FileInfo{
		ID:          fileID,
		Namespace:   namespace,
		Name:        filename,
		Size:        int64(len(data)),
		ContentType: contentType,
		SHA256:      checksum,
		Path:        key,
		CreatedAt:   now,
	}, nil
}

// Download retrieves a file from S3 by its ID
func (s *S3Storage) Download(ctx context.Context, namespace string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	key := objectKey(namespace, fileID)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, nil, translateS3Error(err, fileID, "download")
	}

	info := fileInfoFromObject(namespace, fileID, key, out.ContentLength, out.ContentType, out.Metadata)
	return out.Body, info, nil
}

// GetInfo returns metadata for a file without downloading it
func (s *S3Storage) GetInfo(ctx context.Context, namespace string, fileID uuid.UUID) (*FileInfo, error) {
	key := objectKey(namespace, fileID)
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateS3Error(err, fileID, "stat")
	}
	return fileInfoFromObject(namespace, fileID, key, out.ContentLength, out.ContentType, out.Metadata), nil
}

// Delete removes a file from S3 by its ID
func (s *S3Storage) Delete(ctx context.Context, namespace string, fileID uuid.UUID) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(namespace, fileID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func objectKey(namespace string, fileID uuid.UUID) string {
	return path.Join(sanitizeFilename(namespace), fileID.String())
}

func fileInfoFromObject(namespace string, fileID uuid.UUID, key string, size *int64, contentType *string, meta map[string]string) *FileInfo {
	info := &FileInfo{
		ID:          fileID,
		Namespace:   namespace,
		Size:        aws.ToInt64(size),
		ContentType: aws.ToString(contentType),
		SHA256:      meta[metaSHA256],
		Path:        key,
	}
	if name, err := url.QueryUnescape(meta[metaFilename]); err == nil {
		info.Name = name
	}
	if ts, err := time.Parse(time.RFC3339, meta[metaUploaded]); err == nil {
		info.CreatedAt = ts
	}
	return info
}

func translateS3Error(err error, fileID uuid.UUID, op string) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	return fmt.Errorf("failed to %s S3 object: %w", op, err)
}
