// Package media stores uploaded images on local disk and normalizes them.
package media

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for relative paths that escape the store root.
var ErrInvalidPath = errors.New("invalid media path")

// Store is a directory of media files served under URLPrefix.
type Store struct {
	Root      string
	URLPrefix string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir, urlPrefix string) *Store {
	if urlPrefix == "" {
		urlPrefix = "/media"
	}
	return &Store{Root: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}
}

// Path resolves rel to an absolute file path inside the root.
func (s *Store) Path(rel string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	if clean == "/" || strings.Contains(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return filepath.Join(s.Root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Write stores data at rel, creating parent directories.
func (s *Store) Write(rel string, data []byte) error {
	p, err := s.Path(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

// Read returns the content stored at rel.
func (s *Store) Read(rel string) ([]byte, error) {
	p, err := s.Path(rel)
	if err != nil {
		return nil, err
	}
	// #nosec G304: p is confined to the store root
	return os.ReadFile(p)
}

// Remove deletes rel. Missing files are not an error.
func (s *Store) Remove(rel string) error {
	p, err := s.Path(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// URL returns the public URL of rel.
func (s *Store) URL(rel string) string {
	return s.URLPrefix + "/" + strings.TrimPrefix(filepath.ToSlash(rel), "/")
}
