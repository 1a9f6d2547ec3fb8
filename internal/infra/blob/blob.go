package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/datapilot-io/datapilot/internal/config"
)

var ErrObjectNotFound = errors.New("object not found")

// Storage is write-once content storage. Keys are generated by the caller and
// never reused, so an object is never modified after Put.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// New returns the backend selected by Storage.Backend.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.Storage.Backend {
	case "local":
		return NewLocal(cfg.Storage.UploadDir)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}
