package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/reelqueue-go/internal/apperr"
	"github.com/user/reelqueue-go/internal/media"
	"github.com/user/reelqueue-go/internal/model"
	"github.com/user/reelqueue-go/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// stubStore implements store.Store with canned behavior for handler tests
type stubStore struct {
	mu      sync.Mutex
	created []store.CreateUploadParams
	uploads []*model.Upload
}

func (s *stubStore) CreateUpload(ctx context.Context, params store.CreateUploadParams) (*model.Upload, error) {
	if err := model.ValidateSchedule(params.ScheduledFor, time.Now()); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, params)
	return &model.Upload{ID: "new-id", Status: model.StatusPending}, nil
}

func (s *stubStore) ListUploads(ctx context.Context) ([]*model.Upload, error) {
	return s.uploads, nil
}

func (s *stubStore) GetUpload(ctx context.Context, id string) (*model.Upload, error) {
	return nil, apperr.NewNotFoundError(id)
}

func (s *stubStore) NextDue(ctx context.Context, now time.Time) (*model.Upload, error) {
	return nil, nil
}

func (s *stubStore) UpdateUpload(ctx context.Context, id string, changes store.UploadChanges) error {
	return nil
}

func (s *stubStore) MarkPublishing(ctx context.Context, id string, allowedFrom ...model.UploadStatus) error {
	return nil
}

func (s *stubStore) ReapStalePublishing(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *stubStore) DeleteUpload(ctx context.Context, id string) error { return nil }
func (s *stubStore) CountUploads(ctx context.Context) (int64, error)   { return int64(len(s.uploads)), nil }
func (s *stubStore) Ping(ctx context.Context) error                    { return nil }
func (s *stubStore) Close() error                                      { return nil }

func (s *stubStore) Created() []store.CreateUploadParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.CreateUploadParams(nil), s.created...)
}

// stubOrchestrator records calls and returns scripted errors
type stubOrchestrator struct {
	mu        sync.Mutex
	dueRuns   int
	runNowErr error
	resetErr  error
	removeErr error
	lastID    string
}

func (o *stubOrchestrator) RunDue(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dueRuns++
}

func (o *stubOrchestrator) RunNow(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastID = id
	return o.runNowErr
}

func (o *stubOrchestrator) ResetFailure(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastID = id
	return o.resetErr
}

func (o *stubOrchestrator) Remove(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastID = id
	return o.removeErr
}

func (o *stubOrchestrator) DueRuns() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dueRuns
}

// stubMedia implements media.Store in memory
type stubMedia struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
}

func (m *stubMedia) Save(ctx context.Context, name string, content io.Reader, contentType string) (*media.StoredMedia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, name)
	return &media.StoredMedia{URL: "http://media.example/" + name, Path: name}, nil
}

func (m *stubMedia) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, path)
	return nil
}

func newTestServer(orchestrator Orchestrator, opts Options) (*Server, *stubStore, *stubMedia) {
	st := &stubStore{}
	mediaStore := &stubMedia{}
	return NewServer(st, orchestrator, mediaStore, opts), st, mediaStore
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestCron_OpenWithoutSecret(t *testing.T) {
	orch := &stubOrchestrator{}
	s, _, _ := newTestServer(orch, Options{})

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/cron/publish", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if orch.DueRuns() != 1 {
		t.Errorf("due runs = %d, want 1", orch.DueRuns())
	}
}

func TestCron_RejectsMissingBearer(t *testing.T) {
	orch := &stubOrchestrator{}
	s, _, _ := newTestServer(orch, Options{CronSecret: "s3cret"})

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/cron/publish", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/cron/publish", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if w := doRequest(s, req); w.Code != http.StatusUnauthorized {
		t.Errorf("status with wrong token = %d, want 401", w.Code)
	}

	if orch.DueRuns() != 0 {
		t.Error("RunDue should not execute for unauthorized requests")
	}
}

func TestCron_AcceptsMatchingBearer(t *testing.T) {
	orch := &stubOrchestrator{}
	s, _, _ := newTestServer(orch, Options{CronSecret: "s3cret"})

	req := httptest.NewRequest(http.MethodPost, "/api/cron/publish", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := doRequest(s, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if orch.DueRuns() != 1 {
		t.Errorf("due runs = %d, want 1", orch.DueRuns())
	}
}

func TestPublishNow_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, http.StatusSeeOther},
		{"not found", apperr.NewNotFoundError("x"), http.StatusNotFound},
		{"conflict", apperr.NewConflictError("busy"), http.StatusConflict},
		{"other", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := &stubOrchestrator{runNowErr: tt.err}
			s, _, _ := newTestServer(orch, Options{})

			w := doRequest(s, httptest.NewRequest(http.MethodPost, "/uploads/abc/publish", nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestDelete_ConflictWhilePublishing(t *testing.T) {
	orch := &stubOrchestrator{removeErr: apperr.NewConflictError("publishing")}
	s, _, _ := newTestServer(orch, Options{})

	w := doRequest(s, httptest.NewRequest(http.MethodPost, "/uploads/abc/delete", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestReset_Success(t *testing.T) {
	orch := &stubOrchestrator{}
	s, _, _ := newTestServer(orch, Options{})

	w := doRequest(s, httptest.NewRequest(http.MethodPost, "/uploads/abc/reset", nil))
	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
	if orch.lastID != "abc" {
		t.Errorf("reset id = %q, want abc", orch.lastID)
	}
}

func multipartUpload(t *testing.T, filename, fileContentType, caption, scheduledFor string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="video"; filename="`+filename+`"`)
	header.Set("Content-Type", fileContentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	_, _ = part.Write([]byte("fake video bytes"))

	if caption != "" {
		_ = mw.WriteField("caption", caption)
	}
	if scheduledFor != "" {
		_ = mw.WriteField("scheduled_for", scheduledFor)
	}
	_ = mw.Close()

	return body, mw.FormDataContentType()
}

func TestCreateUpload_Success(t *testing.T) {
	s, st, _ := newTestServer(&stubOrchestrator{}, Options{})

	scheduled := time.Now().Add(time.Hour).Format(time.RFC3339)
	body, contentType := multipartUpload(t, "clip.mp4", "video/mp4", "a caption", scheduled)

	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := doRequest(s, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303: %s", w.Code, w.Body.String())
	}

	created := st.Created()
	if len(created) != 1 {
		t.Fatalf("created = %d records, want 1", len(created))
	}
	if created[0].Caption != "a caption" {
		t.Errorf("caption = %q, want %q", created[0].Caption, "a caption")
	}
	if created[0].MediaURL == "" || created[0].MediaPath == "" {
		t.Error("media URL and path should be populated from the media store")
	}
}

func TestCreateUpload_RejectsNonVideo(t *testing.T) {
	s, st, _ := newTestServer(&stubOrchestrator{}, Options{})

	body, contentType := multipartUpload(t, "notes.txt", "text/plain", "", "")
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := doRequest(s, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(st.Created()) != 0 {
		t.Error("no record should be created for a non-video upload")
	}
}

func TestCreateUpload_MissingFile(t *testing.T) {
	s, _, _ := newTestServer(&stubOrchestrator{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/uploads", nil)
	w := doRequest(s, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateUpload_PastScheduleCleansUpMedia(t *testing.T) {
	s, st, mediaStore := newTestServer(&stubOrchestrator{}, Options{})

	scheduled := time.Now().Add(-time.Hour).Format(time.RFC3339)
	body, contentType := multipartUpload(t, "clip.mp4", "video/mp4", "", scheduled)

	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := doRequest(s, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(st.Created()) != 0 {
		t.Error("no record should be created for a past schedule")
	}

	mediaStore.mu.Lock()
	defer mediaStore.mu.Unlock()
	if len(mediaStore.saved) != 1 || len(mediaStore.deleted) != 1 {
		t.Errorf("saved = %d deleted = %d, want the orphaned object cleaned up",
			len(mediaStore.saved), len(mediaStore.deleted))
	}
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(&stubOrchestrator{}, Options{})

	w := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestParseSchedule(t *testing.T) {
	if _, err := parseSchedule("2026-09-01T10:30"); err != nil {
		t.Errorf("datetime-local value should parse, got %v", err)
	}
	if _, err := parseSchedule("2026-09-01T10:30:00Z"); err != nil {
		t.Errorf("RFC3339 value should parse, got %v", err)
	}
	if _, err := parseSchedule("not-a-time"); err == nil {
		t.Error("garbage value should be rejected")
	}

	got, err := parseSchedule("")
	if err != nil {
		t.Fatalf("empty value should default, got error %v", err)
	}
	if until := time.Until(got); until < 23*time.Hour || until > 25*time.Hour {
		t.Errorf("default schedule = %v out, want about one day", until)
	}
}
