package media

import (
	"context"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/user/reelqueue-go/internal/apperr"
)

// GCSStore stores media as public objects in a Google Cloud Storage bucket.
// The bucket must allow public reads so the remote platform can fetch the
// video during container processing.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a GCS-backed media store
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Save uploads the content as a bucket object
func (s *GCSStore) Save(ctx context.Context, name string, content io.Reader, contentType string) (*StoredMedia, error) {
	object := path.Join(s.prefix, path.Base(name))

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, content); err != nil {
		_ = w.Close()
		return nil, apperr.NewStorageError("write media object", err)
	}
	if err := w.Close(); err != nil {
		return nil, apperr.NewStorageError("finalize media object", err)
	}

	return &StoredMedia{
		URL:  fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, object),
		Path: object,
	}, nil
}

// Delete removes a bucket object by its path
func (s *GCSStore) Delete(ctx context.Context, objectPath string) error {
	err := s.client.Bucket(s.bucket).Object(objectPath).Delete(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil
		}
		return apperr.NewStorageError("delete media object", err)
	}
	return nil
}

// Close releases the underlying GCS client
func (s *GCSStore) Close() error {
	return s.client.Close()
}
