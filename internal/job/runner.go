package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/docvoice/docvoice/internal/document"
	"github.com/docvoice/docvoice/internal/job/id"
	"github.com/docvoice/docvoice/internal/progress"
	"github.com/docvoice/docvoice/internal/segment"
	"github.com/docvoice/docvoice/internal/storage"
	"github.com/docvoice/docvoice/internal/synth"
	"github.com/docvoice/docvoice/internal/tag"
)

// RunRequest describes one batch invocation.
type RunRequest struct {
	// Documents are the input document paths, processed in order.
	Documents []string `validate:"required,min=1,dive,required"`
	// OutputDir is where audio files are written.
	OutputDir string `validate:"required"`
	// Format is the output container format.
	Format string `validate:"required,oneof=mp3 wav ogg"`
	// Metadata overrides extracted metadata field by field when non-empty.
	Metadata document.Metadata
	// Language forces a synthesis language. Empty means auto-detect.
	Language string
	// SegmentByChapter enables chapter segmentation.
	SegmentByChapter bool
	// Resume requires an existing progress record and fails fast without one.
	Resume bool
	// Publish pushes finished audio files to the configured storage target.
	Publish bool
}

// RunResult summarizes a batch run.
type RunResult struct {
	// RunID identifies this invocation in logs.
	RunID string
	// Completed lists documents whose pipeline ran to the end in this run.
	Completed []string
	// AlreadyDone lists documents skipped because the progress record
	// already had them. Disjoint from Completed.
	AlreadyDone []string
	// Failed lists documents whose pipeline aborted.
	Failed []string
	// Outputs lists every audio file produced in this run.
	Outputs []string
}

// Runner drives the per-document pipeline over a batch of documents and
// checkpoints completion durably after each one.
//
// Documents, segments and chunks are processed strictly sequentially; the
// progress record has a single writer.
type Runner struct {
	extractor   document.Extractor
	segmenter   *segment.Segmenter
	synthesizer *synth.Synthesizer
	tagger      *tag.Tagger
	store       storage.Storage
	record      *progress.Store
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewRunner creates a batch Runner.
func NewRunner(
	extractor document.Extractor,
	segmenter *segment.Segmenter,
	synthesizer *synth.Synthesizer,
	tagger *tag.Tagger,
	store storage.Storage,
	record *progress.Store,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		extractor:   extractor,
		segmenter:   segmenter,
		synthesizer: synthesizer,
		tagger:      tagger,
		store:       store,
		record:      record,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Run executes the batch. A single document's failure is logged and the
// batch continues; only configuration-level conditions (invalid request,
// nothing to resume, unreadable progress record) abort the whole run.
//
// On clean completion of every requested document the progress record is
// deleted; otherwise it stays behind for resumption.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if err := r.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid run request: %w", err)
	}

	if req.Resume {
		if err := r.record.RequireRecord(); err != nil {
			return nil, err
		}
	}

	completed, err := r.record.Load()
	if err != nil {
		return nil, err
	}

	result := &RunResult{RunID: id.Generate()}

	workSet := make([]string, 0, len(req.Documents))
	for _, doc := range req.Documents {
		if completed[doc] {
			r.logger.Info("document already completed, skipping",
				slog.String("run_id", result.RunID),
				slog.String("document", doc),
			)
			result.AlreadyDone = append(result.AlreadyDone, doc)
			continue
		}
		workSet = append(workSet, doc)
	}

	if len(workSet) == 0 {
		r.logger.Info("nothing to do, all documents already completed",
			slog.String("run_id", result.RunID),
		)
		if err := r.record.Clear(); err != nil {
			return result, err
		}
		return result, nil
	}

	r.logger.Info("starting batch",
		slog.String("run_id", result.RunID),
		slog.Int("requested", len(req.Documents)),
		slog.Int("work_set", len(workSet)),
	)

	for _, doc := range workSet {
		j := New(doc)
		if err := j.Start(); err != nil {
			return result, err
		}

		if err := r.processDocument(ctx, j, req); err != nil {
			_ = j.Fail(err.Error())
			r.logger.Error("document failed",
				slog.String("run_id", result.RunID),
				slog.String("document", doc),
				slog.String("error", err.Error()),
			)
			result.Failed = append(result.Failed, doc)
			if ctx.Err() != nil {
				return result, fmt.Errorf("batch interrupted: %w", ctx.Err())
			}
			continue
		}

		// Durability checkpoint before moving to the next document.
		if err := r.record.Append(doc); err != nil {
			_ = j.Fail(err.Error())
			return result, err
		}
		_ = j.Complete()
		result.Completed = append(result.Completed, doc)
		result.Outputs = append(result.Outputs, j.Outputs...)

		r.logger.Info("document completed",
			slog.String("run_id", result.RunID),
			slog.String("document", doc),
			slog.Int("outputs", len(j.Outputs)),
			slog.Int("skipped_segments", j.SkippedSegments),
		)
	}

	if len(result.Completed)+len(result.AlreadyDone) == len(req.Documents) {
		if err := r.record.Clear(); err != nil {
			return result, err
		}
		r.logger.Info("batch complete, progress record cleared",
			slog.String("run_id", result.RunID),
		)
	} else {
		r.logger.Warn("batch finished with failures, progress record kept",
			slog.String("run_id", result.RunID),
			slog.Int("failed", len(result.Failed)),
		)
	}

	return result, nil
}

// processDocument runs the full pipeline for one document:
// extract, segment, synthesize per segment, tag, optionally publish.
func (r *Runner) processDocument(ctx context.Context, j *Job, req RunRequest) error {
	pages, meta, err := r.extractor.Extract(ctx, j.Document)
	if err != nil {
		// Unreadable input degrades to an empty document with defaulted
		// metadata; the pipeline still runs (and completes) as a no-op.
		r.logger.Warn("extraction failed, continuing with empty content",
			slog.String("document", j.Document),
			slog.String("error", err.Error()),
		)
		pages, meta = nil, document.Metadata{}
	}

	meta = meta.ApplyDefaults(j.Document).Merge(req.Metadata)
	base := document.BaseName(j.Document)
	segments := r.segmenter.Segment(pages, req.SegmentByChapter)

	if len(segments) == 0 {
		r.logger.Warn("document produced no text segments",
			slog.String("document", j.Document),
		)
		return nil
	}

	for i, seg := range segments {
		name := outputName(base, i+1, len(segments), req.Format)
		outputPath := filepath.Join(req.OutputDir, name)

		if strings.TrimSpace(seg) == "" {
			j.SkippedSegments++
			r.logger.Warn("segment is empty, skipping",
				slog.String("document", j.Document),
				slog.Int("segment", i+1),
			)
			continue
		}

		if err := r.synthesizer.Synthesize(ctx, synth.Input{
			Document:     base,
			SegmentIndex: i + 1,
			Text:         seg,
			Language:     req.Language,
			OutputPath:   outputPath,
			Format:       req.Format,
		}); err != nil {
			return err
		}

		track := 0
		if len(segments) > 1 {
			track = i + 1
		}
		if err := r.tagger.Tag(ctx, tag.Request{
			Path:     outputPath,
			Format:   req.Format,
			Metadata: meta,
			Track:    track,
		}); err != nil {
			// Tagging failure never deletes the exported audio.
			r.logger.Error("tagging failed, audio kept untagged",
				slog.String("document", j.Document),
				slog.String("output", outputPath),
				slog.String("error", err.Error()),
			)
		}

		if req.Publish {
			r.publishOutput(ctx, j.Document, outputPath)
		}

		j.AddOutput(outputPath)
		r.logger.Info("segment converted",
			slog.String("document", j.Document),
			slog.Int("segment", i+1),
			slog.String("output", outputPath),
		)
	}

	return nil
}

// publishOutput pushes one finished audio file to the storage target.
// Publication failures are logged and do not fail the document.
func (r *Runner) publishOutput(ctx context.Context, doc, outputPath string) {
	f, err := os.Open(outputPath) // #nosec G304 - path is built by this runner
	if err != nil {
		r.logger.Error("publish failed: open output",
			slog.String("document", doc),
			slog.String("output", outputPath),
			slog.String("error", err.Error()),
		)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := r.store.Publish(ctx, filepath.Base(outputPath), f)
	if err != nil {
		r.logger.Error("publish failed",
			slog.String("document", doc),
			slog.String("output", outputPath),
			slog.String("error", err.Error()),
		)
		return
	}

	r.logger.Info("output published",
		slog.String("document", doc),
		slog.String("url", url),
	)
}

// outputName builds the output file name: the base filename alone for a
// single-segment document, or base_segment_{n} (1-based) when the document
// produced several segments.
func outputName(base string, index, total int, format string) string {
	if total == 1 {
		return fmt.Sprintf("%s.%s", base, format)
	}
	return fmt.Sprintf("%s_segment_%d.%s", base, index, format)
}
