// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	ServerPort       string `env:"SERVER_PORT" envDefault:"8080"`
	AdminAccessToken string `env:"ADMIN_ACCESS_TOKEN"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	DatabasePath     string `env:"DATABASE_PATH" envDefault:"mediabandit.db"`
	TempDir          string `env:"TEMP_DIR" envDefault:"./tmp"`

	// Admission limits
	MaxGlobalConcurrentDownloads int `env:"MAX_GLOBAL_CONCURRENT_DOWNLOADS" envDefault:"3"`
	MaxConcurrentPerUser         int `env:"MAX_CONCURRENT_PER_USER" envDefault:"2"`
	UserCooldownSeconds          int `env:"USER_COOLDOWN_SECONDS" envDefault:"5"`
	CallbackChatCooldownSeconds  int `env:"CALLBACK_CHAT_COOLDOWN_SECONDS" envDefault:"3"`
	CallbackGlobalMaxCalls       int `env:"CALLBACK_GLOBAL_MAX_CALLS" envDefault:"30"`
	CallbackGlobalWindowSeconds  int `env:"CALLBACK_GLOBAL_WINDOW_SECONDS" envDefault:"60"`

	// Download execution
	DownloadTimeoutSeconds int    `env:"DOWNLOAD_TIMEOUT" envDefault:"1200"`
	MaxFileBytes           int64  `env:"MAX_FILE_BYTES" envDefault:"2147483648"`
	YtdlpPath              string `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	YtdlpCookiesFile       string `env:"YTDLP_COOKIES_FILE"`
	YtdlpUserAgent         string `env:"YTDLP_USER_AGENT" envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36"`

	// Video cache
	VideoCacheEnabled    bool   `env:"VIDEO_CACHE_ENABLED" envDefault:"true"`
	VideoCacheDir        string `env:"VIDEO_CACHE_DIR" envDefault:"./tmp/video_cache"`
	VideoCacheTTLSeconds int    `env:"VIDEO_CACHE_TTL_SECONDS" envDefault:"3600"`
	VideoCacheMaxItems   int    `env:"VIDEO_CACHE_MAX_ITEMS" envDefault:"200"`

	// Pending tokens
	PendingTokenTTLSeconds        int `env:"PENDING_TOKEN_TTL_SECONDS" envDefault:"600"`
	PendingCleanupIntervalSeconds int `env:"PENDING_CLEANUP_INTERVAL_SECONDS" envDefault:"120"`

	// Status reporting
	StatusMinIntervalSeconds int     `env:"STATUS_MIN_INTERVAL_SECONDS" envDefault:"3"`
	StatusPercentStep        float64 `env:"STATUS_PERCENT_STEP" envDefault:"10"`

	// Optional external malware scanner
	MediaScanCommand        string `env:"MEDIA_SCAN_COMMAND"`
	MediaScanTimeoutSeconds int    `env:"MEDIA_SCAN_TIMEOUT_SECONDS" envDefault:"60"`

	// History retention
	HistoryRetentionDays int `env:"HISTORY_RETENTION_DAYS" envDefault:"30"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	logLevel := strings.ToLower(c.LogLevel)
	isValidLevel := false
	for _, level := range validLogLevels {
		if logLevel == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("invalid log level %q, must be one of: %v", c.LogLevel, validLogLevels)
	}

	if c.MaxGlobalConcurrentDownloads < 1 {
		return fmt.Errorf("MAX_GLOBAL_CONCURRENT_DOWNLOADS must be at least 1, got %d", c.MaxGlobalConcurrentDownloads)
	}
	if c.MaxConcurrentPerUser < 1 {
		return fmt.Errorf("MAX_CONCURRENT_PER_USER must be at least 1, got %d", c.MaxConcurrentPerUser)
	}
	if c.UserCooldownSeconds < 0 {
		return fmt.Errorf("USER_COOLDOWN_SECONDS must not be negative, got %d", c.UserCooldownSeconds)
	}
	if c.DownloadTimeoutSeconds < 1 {
		return fmt.Errorf("DOWNLOAD_TIMEOUT must be at least 1 second, got %d", c.DownloadTimeoutSeconds)
	}
	if c.MaxFileBytes < 1 {
		return fmt.Errorf("MAX_FILE_BYTES must be positive, got %d", c.MaxFileBytes)
	}

	if c.TempDir == "" {
		return fmt.Errorf("TEMP_DIR cannot be empty")
	}
	c.TempDir = filepath.Clean(c.TempDir)

	if c.VideoCacheEnabled {
		if c.VideoCacheDir == "" {
			return fmt.Errorf("VIDEO_CACHE_DIR cannot be empty when the cache is enabled")
		}
		c.VideoCacheDir = filepath.Clean(c.VideoCacheDir)
		if c.VideoCacheTTLSeconds < 60 {
			c.VideoCacheTTLSeconds = 60
		}
		if c.VideoCacheMaxItems < 10 {
			c.VideoCacheMaxItems = 10
		}
	}

	return nil
}

// DownloadTimeout returns the extractor timeout as a duration
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSeconds) * time.Second
}

// UserCooldown returns the per-user cooldown as a duration
func (c *Config) UserCooldown() time.Duration {
	return time.Duration(c.UserCooldownSeconds) * time.Second
}

// VideoCacheTTL returns the cache entry lifetime as a duration
func (c *Config) VideoCacheTTL() time.Duration {
	return time.Duration(c.VideoCacheTTLSeconds) * time.Second
}

// PendingTokenTTL returns the pending token lifetime as a duration
func (c *Config) PendingTokenTTL() time.Duration {
	return time.Duration(c.PendingTokenTTLSeconds) * time.Second
}
