package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ignite/delivery-relay/internal/domain"
)

// LocalStore serves bundle files from a directory on disk.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a directory-backed store. The directory must exist.
func NewLocalStore(dir string) (*LocalStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("file store dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file store path %s is not a directory", dir)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Open(_ context.Context, ref domain.FileRef) (io.ReadCloser, error) {
	// Keys are plain filenames; reject anything that escapes the directory.
	clean := filepath.Clean(ref.Key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("invalid file key %q", ref.Key)
	}
	f, err := os.Open(filepath.Join(s.dir, clean))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref.Key, err)
	}
	return f, nil
}

func (s *LocalStore) Ping(_ context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}
