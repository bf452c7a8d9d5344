package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage implements Storage on the local filesystem. Keys map to paths
// under a base directory; Location returns absolute paths so records stay
// valid if the process is later started from a different working directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage resolves baseDir to an absolute path and creates it.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStorage{baseDir: abs}, nil
}

// Upload writes reader to baseDir/key, creating intermediate directories.
// A partially written file is removed so a failed upload leaves nothing
// behind.
func (s *LocalStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	dst := s.Location(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create blob file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		os.Remove(dst)
		return fmt.Errorf("write blob file: %w", err)
	}
	return nil
}

// Delete removes the blob file at key.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.Location(key)); err != nil {
		return fmt.Errorf("remove blob file: %w", err)
	}
	return nil
}

// Location returns the absolute filesystem path for key.
func (s *LocalStorage) Location(key string) string {
	return filepath.Join(s.baseDir, filepath.Clean(key))
}
