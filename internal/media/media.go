// Package media stores the video objects behind queued uploads. The rest of
// the system treats the returned URL as an opaque, publicly fetchable
// reference and the path as an opaque deletion key.
package media

import (
	"context"
	"io"
)

// StoredMedia identifies a stored video object
type StoredMedia struct {
	// URL is a publicly fetchable reference handed to the remote platform
	URL string
	// Path is the deletion key for the object
	Path string
}

// Store defines the media storage collaborator
type Store interface {
	Save(ctx context.Context, name string, content io.Reader, contentType string) (*StoredMedia, error)
	Delete(ctx context.Context, path string) error
}
