// Package security confines CLI file access to one working directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrPathEscapes = errors.New("path escapes working directory")
	ErrEmptyPath   = errors.New("empty path not allowed")
)

// SecretPerm is the mode for files holding plaintext or signatures
const SecretPerm = 0600

// Workspace reads and writes payload files under a root directory using
// os.Root, so symlinks and ".." cannot reach outside it.
type Workspace struct {
	root *os.Root
	path string
}

// Open creates a workspace rooted at dir
func Open(dir string) (*Workspace, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open working directory: %w", err)
	}

	return &Workspace{root: root, path: absPath}, nil
}

// Close releases the root handle
func (w *Workspace) Close() error {
	return w.root.Close()
}

// Dir returns the absolute workspace directory
func (w *Workspace) Dir() string {
	return w.path
}

// Resolve turns a user path, relative or absolute, into a clean path relative
// to the workspace. Paths outside the workspace are rejected.
func (w *Workspace) Resolve(userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}

	rel := userPath
	if filepath.IsAbs(userPath) {
		var err error
		rel, err = filepath.Rel(w.path, filepath.Clean(userPath))
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
		}
	}

	rel = filepath.Clean(rel)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}
	return rel, nil
}

// ReadFile reads a file inside the workspace
func (w *Workspace) ReadFile(userPath string) ([]byte, error) {
	rel, err := w.Resolve(userPath)
	if err != nil {
		return nil, err
	}
	return w.root.ReadFile(rel)
}

// WriteFile writes a file inside the workspace with SecretPerm, creating parent directories
func (w *Workspace) WriteFile(userPath string, data []byte) error {
	rel, err := w.Resolve(userPath)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(rel); dir != "." {
		if err := w.root.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return w.root.WriteFile(rel, data, SecretPerm)
}
