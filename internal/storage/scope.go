package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Scope is a per-run scratch directory. Every intermediate file of a
// processing run lives inside it, and Close removes them all at once.
type Scope struct {
	dir string
}

// NewScope creates a fresh scratch directory under root.
// If root is empty the system temp directory is used.
func NewScope(root, prefix string) (*Scope, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0750); err != nil {
			return nil, fmt.Errorf("create scratch root: %w", err)
		}
	}

	dir, err := os.MkdirTemp(root, prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	return &Scope{dir: dir}, nil
}

// Dir returns the scope's directory.
func (s *Scope) Dir() string {
	return s.dir
}

// Path returns the location of name inside the scope.
func (s *Scope) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Close removes the scratch directory and everything in it.
func (s *Scope) Close() error {
	return os.RemoveAll(s.dir)
}
