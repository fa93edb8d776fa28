package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Instagram InstagramConfig
	Scheduler SchedulerConfig
	Media     MediaConfig
	Notify    NotifyConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int    `envconfig:"SERVER_PORT" default:"8080"`
	CronSecret   string `envconfig:"CRON_SECRET"`
	TemplateGlob string `envconfig:"TEMPLATE_GLOB" default:"web/templates/*"`
}

// DBConfig holds database configuration
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Database string `envconfig:"DB_NAME" default:"reelqueue"`
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"10"`
}

// InstagramConfig holds Graph API configuration. UserID and AccessToken are
// not validated at startup: their absence fails the publish operation, not
// the whole process.
type InstagramConfig struct {
	APIVersion   string        `envconfig:"IG_API_VERSION" default:"v19.0"`
	UserID       string        `envconfig:"IG_USER_ID"`
	AccessToken  string        `envconfig:"IG_ACCESS_TOKEN"`
	PollInterval time.Duration `envconfig:"IG_POLL_INTERVAL" default:"5s"`
	PollAttempts int           `envconfig:"IG_POLL_ATTEMPTS" default:"20"`
	Timeout      time.Duration `envconfig:"IG_HTTP_TIMEOUT" default:"30s"`
	RateLimit    float64       `envconfig:"IG_RATE_LIMIT" default:"2"`
}

// SchedulerConfig holds the periodic sweep configuration
type SchedulerConfig struct {
	Enabled      bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	InitialDelay time.Duration `envconfig:"SCHEDULER_INITIAL_DELAY" default:"5s"`
	Interval     time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"1m"`
	// StaleAfter demotes records stuck in publishing (e.g. after a crash
	// between status writes) back to failed so they can be reset manually.
	StaleAfter time.Duration `envconfig:"SCHEDULER_STALE_AFTER" default:"30m"`
}

// MediaConfig holds media storage configuration
type MediaConfig struct {
	Backend   string `envconfig:"MEDIA_BACKEND" default:"local"`
	Dir       string `envconfig:"MEDIA_DIR" default:"data/media"`
	BaseURL   string `envconfig:"MEDIA_BASE_URL" default:"http://localhost:8080"`
	GCSBucket string `envconfig:"MEDIA_GCS_BUCKET"`
	GCSPrefix string `envconfig:"MEDIA_GCS_PREFIX" default:"reels"`
}

// NotifyConfig holds optional publish-outcome notification settings.
// Notifications are disabled unless both values are set.
type NotifyConfig struct {
	TelegramToken  string `envconfig:"NOTIFY_TELEGRAM_TOKEN"`
	TelegramChatID int64  `envconfig:"NOTIFY_TELEGRAM_CHAT_ID" default:"0"`
}

// DSN returns the MySQL data source name
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.DB); err != nil {
		return nil, fmt.Errorf("failed to load db config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Instagram); err != nil {
		return nil, fmt.Errorf("failed to load instagram config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Scheduler); err != nil {
		return nil, fmt.Errorf("failed to load scheduler config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Media); err != nil {
		return nil, fmt.Errorf("failed to load media config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Notify); err != nil {
		return nil, fmt.Errorf("failed to load notify config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.DB.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Instagram.PollInterval <= 0 {
		return fmt.Errorf("IG_POLL_INTERVAL must be positive")
	}
	if c.Instagram.PollAttempts <= 0 {
		return fmt.Errorf("IG_POLL_ATTEMPTS must be positive")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	switch c.Media.Backend {
	case "local":
		if c.Media.Dir == "" {
			return fmt.Errorf("MEDIA_DIR is required for the local media backend")
		}
	case "gcs":
		if c.Media.GCSBucket == "" {
			return fmt.Errorf("MEDIA_GCS_BUCKET is required for the gcs media backend")
		}
	default:
		return fmt.Errorf("MEDIA_BACKEND must be local or gcs")
	}
	return nil
}
