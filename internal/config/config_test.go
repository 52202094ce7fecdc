package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "input_files", cfg.InputDir)
	assert.Equal(t, "output_files", cfg.OutputDir)
	assert.Equal(t, "/tmp/docvoice", cfg.TempDir)
	assert.Equal(t, "mp3", cfg.OutputFormat)
	assert.Empty(t, cfg.Language)
	assert.False(t, cfg.SegmentByChapter)
	assert.False(t, cfg.CarryChapters)
	assert.Equal(t, 3000, cfg.MaxChunkChars)
	assert.Equal(t, "progress.txt", cfg.ProgressFile)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("INPUT_DIR", "/books")
	t.Setenv("OUTPUT_DIR", "/audio")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("OUTPUT_FORMAT", "ogg")
	t.Setenv("LANGUAGE", "de")
	t.Setenv("SEGMENT_BY_CHAPTER", "true")
	t.Setenv("CARRY_CHAPTERS", "true")
	t.Setenv("MAX_CHUNK_CHARS", "1500")
	t.Setenv("PROGRESS_FILE", "done.txt")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/books", cfg.InputDir)
	assert.Equal(t, "/audio", cfg.OutputDir)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, "ogg", cfg.OutputFormat)
	assert.Equal(t, "de", cfg.Language)
	assert.True(t, cfg.SegmentByChapter)
	assert.True(t, cfg.CarryChapters)
	assert.Equal(t, 1500, cfg.MaxChunkChars)
	assert.Equal(t, "done.txt", cfg.ProgressFile)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidFormat(t *testing.T) {
	t.Setenv("OUTPUT_FORMAT", "flac")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestLoad_InvalidChunkSize(t *testing.T) {
	t.Setenv("MAX_CHUNK_CHARS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	cfg := &Config{
		OutputFormat:       "mp3",
		AWSAccessKeyID:     "access-key",
		AWSSecretAccessKey: "secret-key",
	}

	s := cfg.String()
	assert.NotContains(t, s, "access-key")
	assert.NotContains(t, s, "secret-key")
}
