// Package filestore resolves FileRefs to byte streams. The relay treats
// file contents as opaque; backends only need to open them for the
// messaging gateway to stream out.
package filestore

import (
	"context"
	"fmt"
	"io"

	"github.com/ignite/delivery-relay/internal/config"
	"github.com/ignite/delivery-relay/internal/domain"
)

// Store opens bundle files for sending.
type Store interface {
	// Open returns the file's contents. The caller closes the reader.
	Open(ctx context.Context, ref domain.FileRef) (io.ReadCloser, error)

	// Ping verifies the backend is reachable (health checks).
	Ping(ctx context.Context) error
}

// New selects a backend from configuration.
func New(ctx context.Context, cfg config.FileStoreConfig) (Store, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStore(cfg.LocalPath)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown file store type %q", cfg.Type)
	}
}
