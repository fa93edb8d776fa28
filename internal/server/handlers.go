package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/user/reelqueue-go/internal/apperr"
	"github.com/user/reelqueue-go/internal/store"
)

// datetimeLocalLayout matches the value of an HTML datetime-local input
const datetimeLocalLayout = "2006-01-02T15:04"

// defaultScheduleDelay is used when the form omits a schedule
const defaultScheduleDelay = 24 * time.Hour

// handleIndex renders the dashboard with the upload queue and schedule form
func (s *Server) handleIndex(c *gin.Context) {
	uploads, err := s.store.ListUploads(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list uploads")
		c.HTML(http.StatusInternalServerError, "index.html", gin.H{
			"Error": "Failed to load uploads.",
		})
		return
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Uploads": uploads,
	})
}

// handleCreateUpload accepts a multipart video, stores the bytes, and queues
// the upload for its scheduled time
func (s *Server) handleCreateUpload(c *gin.Context) {
	ctx := c.Request.Context()

	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing video file"})
		return
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "video/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be a video"})
		return
	}

	scheduledFor, err := parseSchedule(c.PostForm("scheduled_for"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read video file"})
		return
	}
	defer func() { _ = src.Close() }()

	name := fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(file.Filename))
	stored, err := s.media.Save(ctx, name, src, contentType)
	if err != nil {
		log.Error().Err(err).Msg("Failed to store media")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store video"})
		return
	}

	upload, err := s.store.CreateUpload(ctx, store.CreateUploadParams{
		MediaURL:     stored.URL,
		MediaPath:    stored.Path,
		Caption:      strings.TrimSpace(c.PostForm("caption")),
		ScheduledFor: scheduledFor,
	})
	if err != nil {
		// The record never existed, so the stored object is an orphan
		if derr := s.media.Delete(ctx, stored.Path); derr != nil {
			log.Error().Err(derr).Str("path", stored.Path).Msg("Failed to clean up orphaned media")
		}
		s.respondError(c, err)
		return
	}

	log.Info().
		Str("id", upload.ID).
		Time("scheduledFor", upload.ScheduledFor).
		Msg("Upload queued")

	c.Redirect(http.StatusSeeOther, "/")
}

// handlePublishNow publishes a specific upload immediately
func (s *Server) handlePublishNow(c *gin.Context) {
	if err := s.orchestrator.RunNow(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// handleReset returns a failed upload to pending
func (s *Server) handleReset(c *gin.Context) {
	if err := s.orchestrator.ResetFailure(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// handleDelete removes an upload and its media object
func (s *Server) handleDelete(c *gin.Context) {
	if err := s.orchestrator.Remove(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

// statusForError maps the error taxonomy onto HTTP status codes
func statusForError(err error) int {
	switch {
	case apperr.IsValidationError(err):
		return http.StatusBadRequest
	case apperr.IsNotFoundError(err):
		return http.StatusNotFound
	case apperr.IsConflictError(err):
		return http.StatusConflict
	case apperr.IsConfigurationError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseSchedule accepts RFC 3339 or the browser datetime-local format;
// an empty value falls back to one day out
func parseSchedule(value string) (time.Time, error) {
	if value == "" {
		return time.Now().Add(defaultScheduleDelay), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(datetimeLocalLayout, value, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid scheduled_for value %q", value)
}
