package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes exports into a local directory
type FileSink struct {
	dir string
}

// NewFileSink creates the export directory if needed
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	return &FileSink{dir: dir}, nil
}

// Name identifies the sink in logs and metrics
func (s *FileSink) Name() string { return "file" }

// Write stores data atomically by renaming a temp file into place
func (s *FileSink) Write(_ context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(name))

	tmp, err := os.CreateTemp(s.dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move export file into place: %w", err)
	}

	return path, nil
}
