package storage

import (
	"context"
	"fmt"

	"github.com/xelth-com/esealgo/internal/config"
)

// Storage is the object store for original PDFs, signed PDFs and signature images.
// Failures are reported as apperr storage errors.
type Storage interface {
	// Put stores data under bucket/path and returns its public URL
	Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, bucket, path string) ([]byte, error)
	Remove(ctx context.Context, bucket, path string) error
	// PathFromURL recovers the object path of a public URL issued for bucket
	PathFromURL(bucket, publicURL string) (string, bool)
}

// New builds the store selected by cfg.Driver
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.LocalDir, cfg.PublicBaseURL)
	case "gcs":
		return NewGCS(ctx, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
