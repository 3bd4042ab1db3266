// Package storage manages the files a processing job touches: uploaded
// sources, finished outputs, and per-run scratch directories. It defines
// the Store interface (port) for hexagonal architecture and implementations
// for local disk and S3-backed publication.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrS3NotConfigured is returned when publishing is attempted
// without S3 configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// Store defines the interface for upload intake and output delivery.
// Implementations keep working files on local disk and optionally
// publish finished outputs to S3.
type Store interface {
	// SaveUpload writes an incoming file to the upload area and returns
	// its path. The stored file keeps the extension of name so format
	// detection downstream still works.
	SaveUpload(ctx context.Context, name string, data io.Reader) (path string, err error)

	// RemoveUpload deletes a previously saved upload.
	// Missing files are not an error.
	RemoveUpload(ctx context.Context, path string) error

	// OutputPath returns the path in the output area for filename.
	OutputPath(filename string) string

	// OpenOutput opens a finished output for reading.
	// The caller is responsible for closing the returned ReadCloser.
	OpenOutput(ctx context.Context, filename string) (io.ReadCloser, error)

	// RemoveOutput deletes a finished output. Missing files are not an error.
	RemoveOutput(ctx context.Context, filename string) error

	// Publish uploads a finished output to remote storage and returns its
	// public URL. Returns ErrS3NotConfigured if S3 is not configured.
	Publish(ctx context.Context, filename string) (url string, err error)
}
