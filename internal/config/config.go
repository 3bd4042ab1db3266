// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside the valid range.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidTimeout is returned when PROCESS_TIMEOUT_SEC is not positive.
	ErrInvalidTimeout = errors.New("config: PROCESS_TIMEOUT_SEC must be positive")
	// ErrInvalidMaxUpload is returned when MAX_UPLOAD_BYTES is not positive.
	ErrInvalidMaxUpload = errors.New("config: MAX_UPLOAD_BYTES must be positive")
	// ErrInvalidRequiredMemory is returned when REQUIRED_MEMORY_GIB is negative.
	ErrInvalidRequiredMemory = errors.New("config: REQUIRED_MEMORY_GIB must not be negative")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	UploadDir  string `env:"UPLOAD_DIR, default=/tmp/videoresizer/uploads" json:"upload_dir"`
	OutputDir  string `env:"OUTPUT_DIR, default=/tmp/videoresizer/outputs" json:"output_dir"`
	ScratchDir string `env:"SCRATCH_DIR, default=/tmp/videoresizer/scratch" json:"scratch_dir"`

	// Processing settings
	FFmpegPath        string  `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	ProcessTimeoutSec int     `env:"PROCESS_TIMEOUT_SEC, default=600" json:"process_timeout_sec"`
	RequiredMemoryGiB float64 `env:"REQUIRED_MEMORY_GIB, default=2" json:"required_memory_gib"`
	MaxUploadBytes    int64   `env:"MAX_UPLOAD_BYTES, default=2147483648" json:"max_upload_bytes"`
	// SyncProcessing makes the upload endpoint run the pipeline inline and
	// answer with the finished job instead of returning 202 immediately.
	SyncProcessing bool `env:"SYNC_PROCESSING, default=false" json:"sync_processing"`

	// CORS settings
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// ProcessTimeout returns the pipeline wall-clock budget as a duration.
func (c *Config) ProcessTimeout() time.Duration {
	return time.Duration(c.ProcessTimeoutSec) * time.Second
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error when a variable cannot be parsed into its field.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.ProcessTimeoutSec <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxUploadBytes <= 0 {
		return ErrInvalidMaxUpload
	}
	if c.RequiredMemoryGiB < 0 {
		return ErrInvalidRequiredMemory
	}
	return nil
}

// NewLogger creates a structured logger from format and level names.
// When format is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func NewLogger(format, level string) *slog.Logger {
	parsed := parseLogLevel(level)

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parsed,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parsed,
		})
	}

	return slog.New(handler)
}

// NewLogger creates a structured logger based on the configuration.
func (c *Config) NewLogger() *slog.Logger {
	return NewLogger(c.LogFormat, c.LogLevel)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, UploadDir: %s, OutputDir: %s, ScratchDir: %s, FFmpegPath: %s, ProcessTimeoutSec: %d, RequiredMemoryGiB: %.1f, MaxUploadBytes: %d, SyncProcessing: %t, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.UploadDir,
		c.OutputDir,
		c.ScratchDir,
		c.FFmpegPath,
		c.ProcessTimeoutSec,
		c.RequiredMemoryGiB,
		c.MaxUploadBytes,
		c.SyncProcessing,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
