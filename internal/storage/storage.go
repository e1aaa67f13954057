package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/motorlot/apiserver/config"
)

// ErrObjectExists is returned by Put when the key is already taken.
// Objects are write-once.
var ErrObjectExists = errors.New("object already exists")

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend and turns keys into public URLs.
type Storage struct {
	backend ObjectStorage
	baseURL string
}

// NewStorage constructs a Storage wrapper for the provided backend.
// Public URLs are built as baseURL + "/" + key.
func NewStorage(backend ObjectStorage, baseURL string) *Storage {
	return &Storage{backend: backend, baseURL: strings.TrimRight(baseURL, "/")}
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "", "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	case "memory":
		backend = NewMemory(cfg.Minio.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewStorage(backend, cfg.PublicBaseURL), nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object. It fails with ErrObjectExists if key is taken.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens a reader for an object in the configured bucket.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// URL returns the public URL of key.
func (s *Storage) URL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}
