package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements the Store interface using local disk.
// Uploads and outputs live in separate directories so finished files
// survive upload cleanup.
type LocalStore struct {
	uploadDir string
	outputDir string
}

// NewLocalStore creates a new LocalStore instance.
// If either directory is empty a subdirectory of os.TempDir() is used.
// Both directories are created if they don't exist.
func NewLocalStore(uploadDir, outputDir string) (*LocalStore, error) {
	if uploadDir == "" {
		uploadDir = filepath.Join(os.TempDir(), "videoresizer", "uploads")
	}
	if outputDir == "" {
		outputDir = filepath.Join(os.TempDir(), "videoresizer", "outputs")
	}

	if err := os.MkdirAll(uploadDir, 0750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &LocalStore{uploadDir: uploadDir, outputDir: outputDir}, nil
}

// SaveUpload writes data to a fresh file in the upload directory.
// The original extension is kept on the stored name so the media layer
// can still validate the container format from the path.
func (s *LocalStore) SaveUpload(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || stem == "." {
		stem = "upload"
	}

	file, err := os.CreateTemp(s.uploadDir, stem+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(file, data); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("write upload file: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("close upload file: %w", err)
	}

	return file.Name(), nil
}

// RemoveUpload deletes a saved upload. Missing files are not an error.
func (s *LocalStore) RemoveUpload(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload %s: %w", path, err)
	}
	return nil
}

// OutputPath returns the location in the output directory for filename.
// The name is flattened with filepath.Base so callers cannot escape the
// output directory.
func (s *LocalStore) OutputPath(filename string) string {
	return filepath.Join(s.outputDir, filepath.Base(filename))
}

// OpenOutput opens a finished output file for reading.
func (s *LocalStore) OpenOutput(ctx context.Context, filename string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.OutputPath(filename)) // #nosec G304 - path is anchored to the output directory
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return file, nil
}

// RemoveOutput deletes a finished output. Missing files are not an error.
func (s *LocalStore) RemoveOutput(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.OutputPath(filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove output %s: %w", filename, err)
	}
	return nil
}

// Publish is not supported by local-only storage.
func (s *LocalStore) Publish(_ context.Context, _ string) (string, error) {
	return "", ErrS3NotConfigured
}
