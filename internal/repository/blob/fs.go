// Package blob stores assets on the local filesystem and hands out URLs
// served by the HTTP asset endpoint.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/repository"
)

// FS is a write-once blob store rooted at a directory.
type FS struct {
	root    string
	baseURL string // e.g. https://host/assets
}

var _ repository.AssetStore = (*FS)(nil)

// NewFS creates the root directory if needed.
func NewFS(root, baseURL string) (*FS, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, err
	}
	return &FS{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes data under key. Existing keys are never overwritten.
func (s *FS) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return "", err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("asset %s: %w", key, errs.ErrAlreadyExists)
		}
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return "", err
	}
	return s.URL(key), nil
}

// Open returns the stored blob for key.
func (s *FS) Open(key string) (io.ReadSeekCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, errs.ErrNotFound
	case err != nil:
		return nil, err
	}
	return f, nil
}

// URL is the public address of key.
func (s *FS) URL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// path maps a slash-separated key to a file under root, rejecting escapes.
func (s *FS) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: bad asset key %q", errs.ErrInvalidInput, key)
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: bad asset key %q", errs.ErrInvalidInput, key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
