// Package main provides the entry point for the docvoice converter.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/docvoice/docvoice/internal/bootstrap"
	"github.com/docvoice/docvoice/internal/config"
	"github.com/docvoice/docvoice/internal/document"
	"github.com/docvoice/docvoice/internal/job"
	"github.com/docvoice/docvoice/internal/progress"
)

const (
	exitFailure         = 1
	exitNothingToResume = 2
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, progress.ErrNothingToResume) {
			os.Exit(exitNothingToResume)
		}
		os.Exit(exitFailure)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Command-line flags override environment defaults
	var (
		format     = flag.String("format", cfg.OutputFormat, "output audio format (mp3, wav or ogg)")
		title      = flag.String("title", "", "override the audio title tag")
		author     = flag.String("author", "", "override the audio artist tag")
		language   = flag.String("language", cfg.Language, "synthesis language code (empty = auto-detect)")
		byChapter  = flag.Bool("segment-by-chapter", cfg.SegmentByChapter, "split documents into one audio file per chapter")
		processAll = flag.Bool("all", false, "process every PDF in the input directory")
		resume     = flag.Bool("resume", false, "resume an interrupted batch; fails when no progress record exists")
		publish    = flag.Bool("publish", false, "publish finished audio to the configured storage target")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [document.pdf ...]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting docvoice",
		slog.String("input_dir", cfg.InputDir),
		slog.String("output_dir", cfg.OutputDir),
		slog.String("format", *format),
		slog.Bool("segment_by_chapter", *byChapter),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
	)

	if err := ensureDirs(cfg.InputDir, cfg.OutputDir); err != nil {
		return err
	}

	docs, err := resolveDocuments(flag.Args(), cfg.InputDir, *processAll)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		logger.Info("no documents to process",
			slog.String("input_dir", cfg.InputDir),
		)
		return nil
	}

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	// Cancel the batch on SIGINT/SIGTERM; the progress record makes the
	// interrupted run resumable.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := deps.Runner.Run(ctx, job.RunRequest{
		Documents: docs,
		OutputDir: cfg.OutputDir,
		Format:    strings.ToLower(*format),
		Metadata: document.Metadata{
			Title:  *title,
			Author: *author,
		},
		Language:         *language,
		SegmentByChapter: *byChapter,
		Resume:           *resume,
		Publish:          *publish,
	})
	if err != nil {
		return err
	}

	logger.Info("batch finished",
		slog.String("run_id", result.RunID),
		slog.Int("completed", len(result.Completed)),
		slog.Int("already_done", len(result.AlreadyDone)),
		slog.Int("failed", len(result.Failed)),
		slog.Int("outputs", len(result.Outputs)),
	)

	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d documents failed", len(result.Failed), len(docs))
	}
	return nil
}

// ensureDirs creates the input and output directories when missing.
func ensureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// resolveDocuments builds the work set from positional arguments, or from
// every PDF in the input directory when -all is set.
func resolveDocuments(args []string, inputDir string, all bool) ([]string, error) {
	if all {
		entries, err := os.ReadDir(inputDir)
		if err != nil {
			return nil, fmt.Errorf("read input directory: %w", err)
		}
		var docs []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
				docs = append(docs, filepath.Join(inputDir, entry.Name()))
			}
		}
		sort.Strings(docs)
		return docs, nil
	}
	return args, nil
}
