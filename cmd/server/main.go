package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/user/reelqueue-go/internal/config"
	"github.com/user/reelqueue-go/internal/instagram"
	"github.com/user/reelqueue-go/internal/media"
	"github.com/user/reelqueue-go/internal/notify"
	"github.com/user/reelqueue-go/internal/publisher"
	"github.com/user/reelqueue-go/internal/scheduler"
	"github.com/user/reelqueue-go/internal/server"
	"github.com/user/reelqueue-go/internal/store"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

func main() {
	// Initialize structured JSON logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	// .env is optional; real deployments configure the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL store
	mysqlStore, err := store.NewMySQLStore(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Database connection established")

	// Initialize media storage
	mediaStore, mediaDir, err := newMediaStore(ctx, &cfg.Media)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize media storage")
	}
	log.Info().Str("backend", cfg.Media.Backend).Msg("Media storage initialized")

	// Initialize Instagram Graph API client
	igClient := instagram.NewClient(instagram.Config{
		APIVersion:   cfg.Instagram.APIVersion,
		UserID:       cfg.Instagram.UserID,
		AccessToken:  cfg.Instagram.AccessToken,
		PollInterval: cfg.Instagram.PollInterval,
		PollAttempts: cfg.Instagram.PollAttempts,
		Timeout:      cfg.Instagram.Timeout,
		RateLimit:    cfg.Instagram.RateLimit,
	})

	// Initialize outcome notifications
	notifier := newNotifier(&cfg.Notify)

	// Initialize publish orchestrator
	publishService := publisher.NewService(mysqlStore, igClient, mediaStore, notifier, cfg.Scheduler.StaleAfter)
	log.Info().Msg("Publish orchestrator initialized")

	// Initialize scheduler
	sched := scheduler.NewScheduler(publishService, &cfg.Scheduler)

	// Initialize HTTP server
	httpServer := server.NewServer(mysqlStore, publishService, mediaStore, server.Options{
		CronSecret:   cfg.Server.CronSecret,
		TemplateGlob: cfg.Server.TemplateGlob,
		MediaDir:     mediaDir,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	sched.Start(ctx)
	log.Info().Msg("Reel queue started successfully")

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	log.Info().Msg("Starting graceful shutdown...")

	// 1. Stop scheduler from triggering new sweeps
	sched.Stop()

	// 2. Stop HTTP server
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	} else {
		log.Info().Msg("HTTP server stopped")
	}

	// 3. Close database connection pool
	if err := mysqlStore.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	} else {
		log.Info().Msg("Database connection closed")
	}

	cancel()
	log.Info().Msg("Graceful shutdown completed")
}

// newMediaStore builds the configured media backend. The returned dir is
// non-empty only for the local backend, which the HTTP server serves itself.
func newMediaStore(ctx context.Context, cfg *config.MediaConfig) (media.Store, string, error) {
	switch cfg.Backend {
	case "gcs":
		gcs, err := media.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, "", err
		}
		return gcs, "", nil
	default:
		local, err := media.NewLocalStore(cfg.Dir, cfg.BaseURL)
		if err != nil {
			return nil, "", err
		}
		return local, local.Dir(), nil
	}
}

func newNotifier(cfg *config.NotifyConfig) notify.Notifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		return notify.Nop
	}
	notifier, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram notifications disabled: client init failed")
		return notify.Nop
	}
	log.Info().Msg("Telegram notifications enabled")
	return notifier
}
