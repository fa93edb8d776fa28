package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/reelqueue-go/internal/apperr"
	"github.com/user/reelqueue-go/internal/instagram"
	"github.com/user/reelqueue-go/internal/media"
	"github.com/user/reelqueue-go/internal/model"
	"github.com/user/reelqueue-go/internal/store"
)

// MockStore implements store.Store in memory for orchestrator tests
type MockStore struct {
	mu      sync.Mutex
	uploads map[string]*model.Upload
	writes  int
}

func NewMockStore() *MockStore {
	return &MockStore{uploads: make(map[string]*model.Upload)}
}

func (m *MockStore) CreateUpload(ctx context.Context, params store.CreateUploadParams) (*model.Upload, error) {
	if err := model.ValidateCaption(params.Caption); err != nil {
		return nil, err
	}
	if err := model.ValidateSchedule(params.ScheduledFor, time.Now()); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	upload := &model.Upload{
		ID:           uuid.NewString(),
		MediaURL:     params.MediaURL,
		MediaPath:    params.MediaPath,
		Caption:      params.Caption,
		Status:       model.StatusPending,
		ScheduledFor: params.ScheduledFor,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.uploads[upload.ID] = upload
	m.writes++
	return cloneUpload(upload), nil
}

// Seed inserts a record directly, bypassing validation
func (m *MockStore) Seed(upload *model.Upload) *model.Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	if upload.UpdatedAt.IsZero() {
		upload.UpdatedAt = time.Now()
	}
	m.uploads[upload.ID] = upload
	return cloneUpload(upload)
}

func (m *MockStore) ListUploads(ctx context.Context) ([]*model.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uploads := make([]*model.Upload, 0, len(m.uploads))
	for _, u := range m.uploads {
		uploads = append(uploads, cloneUpload(u))
	}
	sort.Slice(uploads, func(i, j int) bool {
		if !uploads[i].ScheduledFor.Equal(uploads[j].ScheduledFor) {
			return uploads[i].ScheduledFor.Before(uploads[j].ScheduledFor)
		}
		return uploads[i].ID < uploads[j].ID
	})
	return uploads, nil
}

func (m *MockStore) GetUpload(ctx context.Context, id string) (*model.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return nil, apperr.NewNotFoundError(id)
	}
	return cloneUpload(u), nil
}

func (m *MockStore) NextDue(ctx context.Context, now time.Time) (*model.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due *model.Upload
	for _, u := range m.uploads {
		if u.Status != model.StatusPending || u.ScheduledFor.After(now) {
			continue
		}
		if due == nil ||
			u.ScheduledFor.Before(due.ScheduledFor) ||
			(u.ScheduledFor.Equal(due.ScheduledFor) && u.ID < due.ID) {
			due = u
		}
	}
	if due == nil {
		return nil, nil
	}
	return cloneUpload(due), nil
}

func (m *MockStore) UpdateUpload(ctx context.Context, id string, changes store.UploadChanges) error {
	if changes.IsEmpty() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return apperr.NewNotFoundError(id)
	}
	if changes.Status != nil {
		u.Status = *changes.Status
	}
	if changes.ContainerID != nil {
		u.ContainerID = *changes.ContainerID
	}
	if changes.MediaID != nil {
		u.MediaID = *changes.MediaID
	}
	if changes.PublishedAt != nil {
		t := *changes.PublishedAt
		u.PublishedAt = &t
	}
	if changes.ErrorMessage != nil {
		u.ErrorMessage = *changes.ErrorMessage
	}
	u.UpdatedAt = time.Now()
	m.writes++
	return nil
}

func (m *MockStore) MarkPublishing(ctx context.Context, id string, allowedFrom ...model.UploadStatus) error {
	if len(allowedFrom) == 0 {
		allowedFrom = []model.UploadStatus{model.StatusPending}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return apperr.NewNotFoundError(id)
	}
	for _, from := range allowedFrom {
		if u.Status == from {
			u.Status = model.StatusPublishing
			u.ErrorMessage = ""
			u.UpdatedAt = time.Now()
			m.writes++
			return nil
		}
	}
	return apperr.NewConflictError(fmt.Sprintf("upload %s is already publishing", id))
}

func (m *MockStore) ReapStalePublishing(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var demoted int64
	for _, u := range m.uploads {
		if u.Status == model.StatusPublishing && u.UpdatedAt.Before(cutoff) {
			u.Status = model.StatusFailed
			u.ErrorMessage = "publish attempt abandoned: record was stuck in publishing"
			u.UpdatedAt = time.Now()
			demoted++
			m.writes++
		}
	}
	return demoted, nil
}

func (m *MockStore) DeleteUpload(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[id]; !ok {
		return apperr.NewNotFoundError(id)
	}
	delete(m.uploads, id)
	m.writes++
	return nil
}

func (m *MockStore) CountUploads(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.uploads)), nil
}

func (m *MockStore) Ping(ctx context.Context) error { return nil }
func (m *MockStore) Close() error                   { return nil }

// Writes returns how many mutating calls the store has seen
func (m *MockStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// MustGet returns a record or panics; for assertions after orchestration
func (m *MockStore) MustGet(id string) *model.Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		panic("upload not found: " + id)
	}
	return cloneUpload(u)
}

func cloneUpload(u *model.Upload) *model.Upload {
	c := *u
	if u.PublishedAt != nil {
		t := *u.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}

// FakeRemote implements RemotePublisher with a scripted outcome
type FakeRemote struct {
	mu     sync.Mutex
	result *instagram.PublishResult
	err    error
	calls  int
}

func NewFakeRemote(result *instagram.PublishResult, err error) *FakeRemote {
	return &FakeRemote{result: result, err: err}
}

func (f *FakeRemote) Publish(ctx context.Context, videoURL, caption string) (*instagram.PublishResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *FakeRemote) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// MockMedia implements media.Store and records deletions
type MockMedia struct {
	mu      sync.Mutex
	deleted []string
	saveErr error
}

func (m *MockMedia) Save(ctx context.Context, name string, content io.Reader, contentType string) (*media.StoredMedia, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	return &media.StoredMedia{URL: "http://media.example/" + name, Path: name}, nil
}

func (m *MockMedia) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *MockMedia) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

var errRemoteDown = errors.New("remote platform unavailable")
