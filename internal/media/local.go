package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/reelqueue-go/internal/apperr"
)

// LocalStore writes media files to a local directory served under
// baseURL/media/. Suitable for single-host deployments behind a public
// hostname that the remote platform can fetch from.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates a local media store rooted at dir
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir returns the directory the store writes to
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes the content to disk and returns its public URL and path
func (s *LocalStore) Save(ctx context.Context, name string, content io.Reader, contentType string) (*StoredMedia, error) {
	name = filepath.Base(name)

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return nil, apperr.NewStorageError("create media file", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, content); err != nil {
		_ = os.Remove(f.Name())
		return nil, apperr.NewStorageError("write media file", err)
	}

	return &StoredMedia{
		URL:  s.baseURL + "/media/" + name,
		Path: name,
	}, nil
}

// Delete removes a stored media file by its path
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	path = filepath.Base(path)
	if err := os.Remove(filepath.Join(s.dir, path)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.NewStorageError("delete media file", err)
	}
	return nil
}
