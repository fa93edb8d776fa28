// Package publisher drives queued uploads through the remote publish
// protocol and reconciles each record with the outcome.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/reelqueue-go/internal/apperr"
	"github.com/user/reelqueue-go/internal/instagram"
	"github.com/user/reelqueue-go/internal/media"
	"github.com/user/reelqueue-go/internal/metrics"
	"github.com/user/reelqueue-go/internal/model"
	"github.com/user/reelqueue-go/internal/notify"
	"github.com/user/reelqueue-go/internal/store"
)

// RemotePublisher abstracts the three-step remote publish protocol
type RemotePublisher interface {
	Publish(ctx context.Context, videoURL, caption string) (*instagram.PublishResult, error)
}

// Service owns every status transition of an upload record
type Service struct {
	store    store.Store
	remote   RemotePublisher
	media    media.Store
	notifier notify.Notifier

	// staleAfter bounds how long a record may sit in publishing before the
	// sweep demotes it to failed; zero disables the reaper.
	staleAfter time.Duration
}

// NewService creates a publish orchestrator. notifier may be nil.
func NewService(st store.Store, remote RemotePublisher, mediaStore media.Store, notifier notify.Notifier, staleAfter time.Duration) *Service {
	if notifier == nil {
		notifier = notify.Nop
	}
	return &Service{
		store:      st,
		remote:     remote,
		media:      mediaStore,
		notifier:   notifier,
		staleAfter: staleAfter,
	}
}

// RunDue publishes at most one due upload. It never fails: the periodic
// trigger is unattended, so every error is logged and, once a record has
// been claimed, persisted onto it as a failed status.
func (s *Service) RunDue(ctx context.Context) {
	s.reapStale(ctx)

	due, err := s.store.NextDue(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to select next due upload")
		return
	}
	if due == nil {
		log.Debug().Msg("No due uploads")
		return
	}

	// Claim with the pending-only guard; losing the race to a concurrent
	// sweep is not an error, the other invocation owns the record now.
	if err := s.store.MarkPublishing(ctx, due.ID, model.StatusPending); err != nil {
		log.Warn().Err(err).Str("id", due.ID).Msg("Could not claim due upload")
		return
	}

	s.publish(ctx, due)
}

// RunNow publishes a specific upload immediately. Not-found and conflict
// errors propagate so an interactive caller can react; remote publish
// failures are still recorded on the upload instead of returned.
func (s *Service) RunNow(ctx context.Context, id string) error {
	upload, err := s.store.GetUpload(ctx, id)
	if err != nil {
		return err
	}

	// Any state but an in-flight publish may be (re)published on demand
	err = s.store.MarkPublishing(ctx, id,
		model.StatusPending, model.StatusFailed, model.StatusPublished)
	if err != nil {
		return err
	}

	s.publish(ctx, upload)
	return nil
}

// ResetFailure returns an upload to pending and clears its error message.
// It applies regardless of the current status, so resetting twice or
// resetting a published record is harmless.
func (s *Service) ResetFailure(ctx context.Context, id string) error {
	pending := model.StatusPending
	empty := ""
	return s.store.UpdateUpload(ctx, id, store.UploadChanges{
		Status:       &pending,
		ErrorMessage: &empty,
	})
}

// Remove deletes an upload and its backing media object. Deleting a record
// mid-publish is rejected.
func (s *Service) Remove(ctx context.Context, id string) error {
	upload, err := s.store.GetUpload(ctx, id)
	if err != nil {
		return err
	}
	if upload.IsPublishing() {
		return apperr.NewConflictError(fmt.Sprintf("upload %s is currently publishing", id))
	}

	if err := s.store.DeleteUpload(ctx, id); err != nil {
		return err
	}

	if upload.MediaPath != "" {
		if err := s.media.Delete(ctx, upload.MediaPath); err != nil {
			log.Error().Err(err).Str("id", id).Str("path", upload.MediaPath).
				Msg("Failed to delete media object for removed upload")
		}
	}

	log.Info().Str("id", id).Msg("Upload removed")
	return nil
}

// publish drives one claimed upload through the remote protocol and writes
// the terminal outcome back to the repository
func (s *Service) publish(ctx context.Context, upload *model.Upload) {
	start := time.Now()

	result, err := s.remote.Publish(ctx, upload.MediaURL, upload.Caption)
	if err != nil {
		s.recordFailure(ctx, upload, err)
		return
	}

	published := model.StatusPublished
	publishedAt := time.Now()
	empty := ""
	changes := store.UploadChanges{
		Status:       &published,
		ContainerID:  &result.ContainerID,
		MediaID:      &result.MediaID,
		PublishedAt:  &publishedAt,
		ErrorMessage: &empty,
	}
	if err := s.store.UpdateUpload(ctx, upload.ID, changes); err != nil {
		log.Error().Err(err).Str("id", upload.ID).Msg("Failed to record published status")
		return
	}

	metrics.RecordPublish("published")
	metrics.ObservePublishDuration(time.Since(start))

	upload.Status = published
	upload.ContainerID = result.ContainerID
	upload.MediaID = result.MediaID
	s.notifier.PublishSucceeded(upload)

	log.Info().
		Str("id", upload.ID).
		Str("mediaID", result.MediaID).
		Dur("duration", time.Since(start)).
		Msg("Upload published")
}

func (s *Service) recordFailure(ctx context.Context, upload *model.Upload, cause error) {
	failed := model.StatusFailed
	msg := cause.Error()
	changes := store.UploadChanges{
		Status:       &failed,
		ErrorMessage: &msg,
	}
	if err := s.store.UpdateUpload(ctx, upload.ID, changes); err != nil {
		log.Error().Err(err).Str("id", upload.ID).Msg("Failed to record failed status")
	}

	metrics.RecordPublish("failed")
	s.notifier.PublishFailed(upload, msg)

	log.Error().Err(cause).Str("id", upload.ID).Msg("Publish failed")
}

func (s *Service) reapStale(ctx context.Context) {
	if s.staleAfter <= 0 {
		return
	}
	demoted, err := s.store.ReapStalePublishing(ctx, time.Now().Add(-s.staleAfter))
	if err != nil {
		log.Error().Err(err).Msg("Failed to reap stale publishing uploads")
		return
	}
	if demoted > 0 {
		log.Warn().Int64("count", demoted).Msg("Demoted stale publishing uploads to failed")
	}
}
