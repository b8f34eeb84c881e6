// Package file stores the registry as a JSON document on the local filesystem.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pinwater/pinwatch/internal/infra/storage"
)

// Config holds file backend settings.
type Config struct {
	Path string `yaml:"path"`
}

// FileStorage writes the document with write-temp-then-rename.
type FileStorage struct {
	path string
}

func NewFileStorage(cfg Config) (*FileStorage, error) {
	if cfg.Path == "" {
		return nil, errors.New("file store path is required")
	}
	return &FileStorage{path: cfg.Path}, nil
}

// Ping checks that the registry directory exists. A missing registry file
// is not an error; seed creates it.
func (f *FileStorage) Ping(ctx context.Context) error {
	dir := filepath.Dir(f.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("registry dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("registry dir %s is not a directory", dir)
	}
	return nil
}

func (f *FileStorage) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrRegistryNotFound, f.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return data, nil
}

// Write creates a temp file next to the target, syncs it and renames it over
// the target. The rename is atomic within one directory.
func (f *FileStorage) Write(ctx context.Context, doc []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create registry dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(doc); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace registry file: %w", err)
	}
	return nil
}

func (f *FileStorage) Close() error {
	return nil
}
