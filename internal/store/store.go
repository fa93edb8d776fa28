package store

import (
	"context"
	"time"

	"github.com/user/reelqueue-go/internal/model"
)

// CreateUploadParams carries the immutable attributes of a new upload
type CreateUploadParams struct {
	MediaURL     string
	MediaPath    string
	Caption      string
	ScheduledFor time.Time
}

// UploadChanges is a partial change set for UpdateUpload. Nil fields are
// left untouched; a pointer to the zero value clears the column.
type UploadChanges struct {
	Status       *model.UploadStatus
	ContainerID  *string
	MediaID      *string
	PublishedAt  *time.Time
	ErrorMessage *string
}

// IsEmpty reports whether the change set contains no fields
func (c UploadChanges) IsEmpty() bool {
	return c.Status == nil && c.ContainerID == nil && c.MediaID == nil &&
		c.PublishedAt == nil && c.ErrorMessage == nil
}

// Store defines the interface for upload persistence operations
type Store interface {
	// CreateUpload validates the schedule and caption, assigns an id, and
	// inserts the record with status pending.
	CreateUpload(ctx context.Context, params CreateUploadParams) (*model.Upload, error)

	// ListUploads returns all uploads ordered by scheduled_for ascending,
	// with id as a deterministic tie-break.
	ListUploads(ctx context.Context) ([]*model.Upload, error)

	// GetUpload returns the upload with the given id
	GetUpload(ctx context.Context, id string) (*model.Upload, error)

	// NextDue returns the earliest pending upload whose scheduled time has
	// passed, or nil when no upload qualifies.
	NextDue(ctx context.Context, now time.Time) (*model.Upload, error)

	// UpdateUpload applies only the fields present in the change set.
	// An empty change set is a no-op.
	UpdateUpload(ctx context.Context, id string, changes UploadChanges) error

	// MarkPublishing transitions the upload to publishing and clears its
	// error message, but only when its current status is one of allowedFrom.
	// The guard is a single conditional UPDATE so two concurrent sweeps
	// cannot both claim the same record.
	MarkPublishing(ctx context.Context, id string, allowedFrom ...model.UploadStatus) error

	// ReapStalePublishing demotes uploads that have been publishing since
	// before the cutoff to failed, returning how many were demoted.
	ReapStalePublishing(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteUpload removes the upload with the given id
	DeleteUpload(ctx context.Context, id string) error

	// CountUploads returns the total number of uploads
	CountUploads(ctx context.Context) (int64, error)

	// Health check
	Ping(ctx context.Context) error
	Close() error
}
