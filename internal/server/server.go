// Package server exposes the HTTP trigger surface: the dashboard with the
// schedule form, the per-upload action endpoints, the cron sweep endpoint,
// and health/metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/user/reelqueue-go/internal/media"
	"github.com/user/reelqueue-go/internal/metrics"
	"github.com/user/reelqueue-go/internal/store"
)

// Orchestrator is the publish orchestrator as seen by the trigger surface
type Orchestrator interface {
	RunDue(ctx context.Context)
	RunNow(ctx context.Context, id string) error
	ResetFailure(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
}

// Options holds trigger surface settings
type Options struct {
	// CronSecret guards the cron endpoint when set; empty leaves it open
	CronSecret string
	// TemplateGlob locates the dashboard templates; empty disables the page
	TemplateGlob string
	// MediaDir, when set, is served under /media for the local media backend
	MediaDir string
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// Server handles HTTP requests
type Server struct {
	store        store.Store
	orchestrator Orchestrator
	media        media.Store
	opts         Options
	engine       *gin.Engine
	server       *http.Server
	startTime    time.Time
}

// NewServer creates the HTTP trigger surface
func NewServer(st store.Store, orchestrator Orchestrator, mediaStore media.Store, opts Options) *Server {
	s := &Server{
		store:        st,
		orchestrator: orchestrator,
		media:        mediaStore,
		opts:         opts,
		engine:       gin.New(),
		startTime:    time.Now(),
	}

	s.engine.Use(gin.Recovery(), requestLogger())
	s.setupRoutes()
	return s
}

// Engine returns the underlying gin engine (for testing purposes)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	if s.opts.TemplateGlob != "" {
		s.engine.LoadHTMLGlob(s.opts.TemplateGlob)
		s.engine.GET("/", s.handleIndex)
	}

	s.engine.POST("/uploads", s.handleCreateUpload)
	s.engine.POST("/uploads/:id/publish", s.handlePublishNow)
	s.engine.POST("/uploads/:id/reset", s.handleReset)
	s.engine.POST("/uploads/:id/delete", s.handleDelete)

	s.engine.GET("/api/cron/publish", s.handleCron)
	s.engine.POST("/api/cron/publish", s.handleCron)

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.opts.MediaDir != "" {
		s.engine.Static("/media", s.opts.MediaDir)
	}
}

// Start begins listening on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Int("port", port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info().Msg("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth returns JSON with status, database connectivity, and uptime
func (s *Server) handleHealth(c *gin.Context) {
	dbStatus := "healthy"
	if err := s.store.Ping(c.Request.Context()); err != nil {
		dbStatus = fmt.Sprintf("unhealthy: %v", err)
	}

	if count, err := s.store.CountUploads(c.Request.Context()); err == nil {
		metrics.SetUploadCount(count)
	}

	status := "healthy"
	code := http.StatusOK
	if dbStatus != "healthy" {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:   status,
		Database: dbStatus,
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleCron runs a due sweep. With a configured secret, requests must carry
// a matching bearer token; the sweep itself never reports failure.
func (s *Server) handleCron(c *gin.Context) {
	if !s.cronAuthorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	s.orchestrator.RunDue(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) cronAuthorized(c *gin.Context) bool {
	if s.opts.CronSecret == "" {
		return true
	}
	return c.GetHeader("Authorization") == "Bearer "+s.opts.CronSecret
}

// requestLogger logs each request with zerolog
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}
