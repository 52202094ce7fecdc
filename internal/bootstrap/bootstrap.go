// Package bootstrap provides dependency initialization for the converter.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/docvoice/docvoice/internal/config"
	"github.com/docvoice/docvoice/internal/document"
	"github.com/docvoice/docvoice/internal/job"
	"github.com/docvoice/docvoice/internal/media"
	"github.com/docvoice/docvoice/internal/progress"
	"github.com/docvoice/docvoice/internal/segment"
	"github.com/docvoice/docvoice/internal/speech"
	"github.com/docvoice/docvoice/internal/storage"
	"github.com/docvoice/docvoice/internal/synth"
	"github.com/docvoice/docvoice/internal/tag"
)

// Dependencies holds all initialized dependencies for the application.
type Dependencies struct {
	Runner *job.Runner
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize speech backend client
	speechOpts := []speech.ClientOption{}
	if cfg.SpeechBaseURL != "" {
		speechOpts = append(speechOpts, speech.WithBaseURL(cfg.SpeechBaseURL))
	}
	speechClient := speech.NewHTTPClient(speechOpts...)

	// Initialize media processor and document extractor
	processor := media.NewFFmpegProcessor("")
	extractor := document.NewPopplerExtractor("", "")

	// Initialize the pipeline stages
	segmenter := segment.New(segment.Options{
		CarryAcrossPages: cfg.CarryChapters,
	})
	synthesizer := synth.New(speechClient, processor, store, logger,
		synth.WithMaxChunkChars(cfg.MaxChunkChars),
	)
	tagger := tag.New(processor)
	record := progress.NewStore(cfg.ProgressFile)

	runner := job.NewRunner(
		extractor,
		segmenter,
		synthesizer,
		tagger,
		store,
		record,
		logger,
	)

	return &Dependencies{
		Runner: runner,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
