package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDir = ".meta"

// LocalStorage keeps files under basePath/<namespace>/. The body is written
// under a temporary name and renamed once complete; a JSON sidecar in .meta
// holds the FileInfo.
type LocalStorage struct {
	basePath string
	now      func() time.Time
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, now: time.Now}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, namespace, filename, contentType string, r io.Reader) (*FileInfo, error) {
	dir := s.namespaceDir(namespace)
	if err := os.MkdirAll(filepath.Join(dir, metaDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create namespace directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		ID:          uuid.New(),
		Namespace:   namespace,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
		CreatedAt:   s.now().UTC(),
	}
	info.Path = info.ID.String() + filepath.Ext(sanitizeFilename(filename))

	if err := os.Rename(tmp.Name(), filepath.Join(dir, info.Path)); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}
	if err := s.writeInfo(info); err != nil {
		os.Remove(filepath.Join(dir, info.Path))
		return nil, err
	}
	return info, nil
}

func (s *LocalStorage) Download(ctx context.Context, namespace string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.GetInfo(ctx, namespace, fileID)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.namespaceDir(namespace), info.Path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

func (s *LocalStorage) GetInfo(ctx context.Context, namespace string, fileID uuid.UUID) (*FileInfo, error) {
	data, err := os.ReadFile(s.infoPath(namespace, fileID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

// Delete removes the body first so a failure leaves the sidecar for a retry.
func (s *LocalStorage) Delete(ctx context.Context, namespace string, fileID uuid.UUID) error {
	info, err := s.GetInfo(ctx, namespace, fileID)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.namespaceDir(namespace), info.Path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(s.infoPath(namespace, fileID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}

func (s *LocalStorage) namespaceDir(namespace string) string {
	return filepath.Join(s.basePath, sanitizeFilename(namespace))
}

func (s *LocalStorage) infoPath(namespace string, fileID uuid.UUID) string {
	return filepath.Join(s.namespaceDir(namespace), metaDir, fileID.String()+".json")
}

func (s *LocalStorage) writeInfo(info *FileInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.infoPath(info.Namespace, info.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// sanitizeFilename keeps names to a single path element.
func sanitizeFilename(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(name)
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		return "_"
	}
	return name
}
