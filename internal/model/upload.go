package model

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/user/reelqueue-go/internal/apperr"
)

// UploadStatus defines the lifecycle state of a queued upload
type UploadStatus string

const (
	StatusPending    UploadStatus = "pending"
	StatusPublishing UploadStatus = "publishing"
	StatusPublished  UploadStatus = "published"
	StatusFailed     UploadStatus = "failed"
)

const (
	// MaxCaptionLength is the Instagram caption limit
	MaxCaptionLength = 2200

	// ScheduleGracePeriod tolerates clock and network latency when validating
	// a schedule; anything further in the past is rejected.
	ScheduleGracePeriod = 60 * time.Second
)

// Upload represents one video queued for delayed publication
type Upload struct {
	ID           string       `gorm:"primaryKey;size:36"`
	MediaURL     string       `gorm:"size:1024;not null"`
	MediaPath    string       `gorm:"size:512;not null"`
	Caption      string       `gorm:"size:2200"`
	Status       UploadStatus `gorm:"size:20;not null;index"`
	ScheduledFor time.Time    `gorm:"not null;index"`
	PublishedAt  *time.Time
	ContainerID  string `gorm:"size:64"`
	MediaID      string `gorm:"size:64"`
	ErrorMessage string `gorm:"size:1000"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for Upload
func (Upload) TableName() string {
	return "uploads"
}

// IsPublishing reports whether the upload is currently being published
func (u *Upload) IsPublishing() bool {
	return u.Status == StatusPublishing
}

// ValidateCaption checks the caption against the Instagram length limit
func ValidateCaption(caption string) error {
	if utf8.RuneCountInString(caption) > MaxCaptionLength {
		return apperr.NewValidationError(
			fmt.Sprintf("caption exceeds the %d character limit", MaxCaptionLength))
	}
	return nil
}

// ValidateSchedule checks that the schedule is not materially in the past.
// The grace period tolerates clock skew but rejects clearly-past schedules.
func ValidateSchedule(scheduledFor, now time.Time) error {
	if !scheduledFor.After(now.Add(-ScheduleGracePeriod)) {
		return apperr.NewValidationError("schedule must be in the future")
	}
	return nil
}
