package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/user/reelqueue-go/internal/apperr"
	"github.com/user/reelqueue-go/internal/config"
	"github.com/user/reelqueue-go/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stalePublishingMessage is recorded on uploads demoted by the reaper
const stalePublishingMessage = "publish attempt abandoned: record was stuck in publishing"

// MySQLStore implements Store using MySQL. All writes run in gorm's default
// autocommit mode, so every mutation is durable before the call returns.
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore creates a new MySQL store instance
func NewMySQLStore(cfg *config.DBConfig) (*MySQLStore, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.Upload{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// CreateUpload validates and inserts a new pending upload
func (s *MySQLStore) CreateUpload(ctx context.Context, params CreateUploadParams) (*model.Upload, error) {
	if params.MediaURL == "" {
		return nil, apperr.NewValidationError("media URL is required")
	}
	if err := model.ValidateCaption(params.Caption); err != nil {
		return nil, err
	}
	if err := model.ValidateSchedule(params.ScheduledFor, time.Now()); err != nil {
		return nil, err
	}

	upload := &model.Upload{
		ID:           uuid.NewString(),
		MediaURL:     params.MediaURL,
		MediaPath:    params.MediaPath,
		Caption:      params.Caption,
		Status:       model.StatusPending,
		ScheduledFor: params.ScheduledFor,
	}

	if err := s.db.WithContext(ctx).Create(upload).Error; err != nil {
		return nil, apperr.NewStorageError("create upload", err)
	}
	return upload, nil
}

// ListUploads returns all uploads in scheduled order
func (s *MySQLStore) ListUploads(ctx context.Context) ([]*model.Upload, error) {
	var uploads []*model.Upload
	result := s.db.WithContext(ctx).
		Order("scheduled_for ASC, id ASC").
		Find(&uploads)
	if result.Error != nil {
		return nil, apperr.NewStorageError("list uploads", result.Error)
	}
	return uploads, nil
}

// GetUpload retrieves an upload by id
func (s *MySQLStore) GetUpload(ctx context.Context, id string) (*model.Upload, error) {
	var upload model.Upload
	result := s.db.WithContext(ctx).Where("id = ?", id).First(&upload)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFoundError(id)
		}
		return nil, apperr.NewStorageError("get upload", result.Error)
	}
	return &upload, nil
}

// NextDue returns the earliest due pending upload, or nil
func (s *MySQLStore) NextDue(ctx context.Context, now time.Time) (*model.Upload, error) {
	var upload model.Upload
	result := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", model.StatusPending, now).
		Order("scheduled_for ASC, id ASC").
		First(&upload)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.NewStorageError("select next due upload", result.Error)
	}
	return &upload, nil
}

// UpdateUpload applies a partial change set to an upload
func (s *MySQLStore) UpdateUpload(ctx context.Context, id string, changes UploadChanges) error {
	if changes.IsEmpty() {
		return nil
	}

	values := map[string]interface{}{}
	if changes.Status != nil {
		values["status"] = *changes.Status
	}
	if changes.ContainerID != nil {
		values["container_id"] = *changes.ContainerID
	}
	if changes.MediaID != nil {
		values["media_id"] = *changes.MediaID
	}
	if changes.PublishedAt != nil {
		values["published_at"] = *changes.PublishedAt
	}
	if changes.ErrorMessage != nil {
		values["error_message"] = *changes.ErrorMessage
	}

	// MySQL reports zero affected rows for a no-change update, so existence
	// is checked explicitly instead of via RowsAffected.
	if err := s.ensureExists(ctx, id); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Model(&model.Upload{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return apperr.NewStorageError("update upload", result.Error)
	}
	return nil
}

// MarkPublishing atomically claims an upload for publishing. The status
// guard in the WHERE clause makes the pending->publishing transition safe
// against a concurrent sweep claiming the same record.
func (s *MySQLStore) MarkPublishing(ctx context.Context, id string, allowedFrom ...model.UploadStatus) error {
	if len(allowedFrom) == 0 {
		allowedFrom = []model.UploadStatus{model.StatusPending}
	}

	result := s.db.WithContext(ctx).
		Model(&model.Upload{}).
		Where("id = ? AND status IN ?", id, allowedFrom).
		Updates(map[string]interface{}{
			"status":        model.StatusPublishing,
			"error_message": "",
		})
	if result.Error != nil {
		return apperr.NewStorageError("mark publishing", result.Error)
	}
	if result.RowsAffected == 0 {
		if err := s.ensureExists(ctx, id); err != nil {
			return err
		}
		return apperr.NewConflictError(fmt.Sprintf("upload %s is already publishing", id))
	}
	return nil
}

// ReapStalePublishing demotes long-running publishing uploads to failed
func (s *MySQLStore) ReapStalePublishing(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Upload{}).
		Where("status = ? AND updated_at < ?", model.StatusPublishing, cutoff).
		Updates(map[string]interface{}{
			"status":        model.StatusFailed,
			"error_message": stalePublishingMessage,
		})
	if result.Error != nil {
		return 0, apperr.NewStorageError("reap stale publishing", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteUpload removes an upload by id
func (s *MySQLStore) DeleteUpload(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Upload{})
	if result.Error != nil {
		return apperr.NewStorageError("delete upload", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NewNotFoundError(id)
	}
	return nil
}

// CountUploads returns the total count of uploads
func (s *MySQLStore) CountUploads(ctx context.Context) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&model.Upload{}).Count(&count)
	if result.Error != nil {
		return 0, apperr.NewStorageError("count uploads", result.Error)
	}
	return count, nil
}

func (s *MySQLStore) ensureExists(ctx context.Context, id string) error {
	var count int64
	result := s.db.WithContext(ctx).Model(&model.Upload{}).Where("id = ?", id).Count(&count)
	if result.Error != nil {
		return apperr.NewStorageError("check upload existence", result.Error)
	}
	if count == 0 {
		return apperr.NewNotFoundError(id)
	}
	return nil
}

// Ping checks database connectivity
func (s *MySQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm.DB instance (for testing purposes)
func (s *MySQLStore) DB() *gorm.DB {
	return s.db
}
