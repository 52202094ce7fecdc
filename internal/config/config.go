// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidFormat is returned when OUTPUT_FORMAT is not one of mp3, wav or ogg.
	ErrInvalidFormat = errors.New("config: OUTPUT_FORMAT must be mp3, wav or ogg")
	// ErrInvalidChunkSize is returned when MAX_CHUNK_CHARS is not positive.
	ErrInvalidChunkSize = errors.New("config: MAX_CHUNK_CHARS must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Directory settings
	InputDir  string `env:"INPUT_DIR, default=input_files" json:"input_dir"`
	OutputDir string `env:"OUTPUT_DIR, default=output_files" json:"output_dir"`
	TempDir   string `env:"TEMP_DIR, default=/tmp/docvoice" json:"temp_dir"`

	// Pipeline settings
	OutputFormat     string `env:"OUTPUT_FORMAT, default=mp3" json:"output_format"` // "mp3", "wav" or "ogg"
	Language         string `env:"LANGUAGE" json:"language,omitempty"`              // Empty means auto-detect
	SegmentByChapter bool   `env:"SEGMENT_BY_CHAPTER, default=false" json:"segment_by_chapter"`
	CarryChapters    bool   `env:"CARRY_CHAPTERS, default=false" json:"carry_chapters"` // Carry open chapters across page boundaries
	MaxChunkChars    int    `env:"MAX_CHUNK_CHARS, default=3000" json:"max_chunk_chars"`

	// Progress settings
	ProgressFile string `env:"PROGRESS_FILE, default=progress.txt" json:"progress_file"`

	// Speech backend settings
	SpeechBaseURL string `env:"SPEECH_BASE_URL" json:"speech_base_url,omitempty"`

	// Optional S3 settings for publishing finished audio
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 publication is configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	switch strings.ToLower(c.OutputFormat) {
	case "mp3", "wav", "ogg":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidFormat, c.OutputFormat)
	}
	if c.MaxChunkChars <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidChunkSize, c.MaxChunkChars)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{InputDir: %s, OutputDir: %s, TempDir: %s, OutputFormat: %s, Language: %s, SegmentByChapter: %t, CarryChapters: %t, MaxChunkChars: %d, ProgressFile: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.InputDir,
		c.OutputDir,
		c.TempDir,
		c.OutputFormat,
		c.Language,
		c.SegmentByChapter,
		c.CarryChapters,
		c.MaxChunkChars,
		c.ProgressFile,
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
