// Package synth converts a text segment into one continuous audio file:
// it chunks the segment to fit the speech backend's input ceiling, renders
// each chunk, concatenates the clips in order and exports the track to the
// requested container format.
package synth

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/abadojack/whatlanggo"

	"github.com/docvoice/docvoice/internal/media"
	"github.com/docvoice/docvoice/internal/speech"
	"github.com/docvoice/docvoice/internal/storage"
)

// detectionSample is how many leading characters feed language detection.
const detectionSample = 500

// Input describes one segment conversion request.
type Input struct {
	// Document identifies the source document, used in errors and logs.
	Document string
	// SegmentIndex is the 1-based position of the segment in the document.
	SegmentIndex int
	// Text is the segment text. Must be non-empty.
	Text string
	// Language is an explicit language code. Empty means auto-detect.
	Language string
	// OutputPath is where the exported audio file is written.
	OutputPath string
	// Format is the output container format: mp3, wav or ogg.
	Format string
}

// Synthesizer renders text segments as audio through the speech backend.
type Synthesizer struct {
	speech    speech.Synthesizer
	processor media.Processor
	store     storage.Storage
	logger    *slog.Logger
	maxChunk  int
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithMaxChunkChars overrides the default chunk ceiling.
func WithMaxChunkChars(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxChunk = n
		}
	}
}

// New creates a Synthesizer.
func New(sp speech.Synthesizer, processor media.Processor, store storage.Storage, logger *slog.Logger, opts ...Option) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Synthesizer{
		speech:    sp,
		processor: processor,
		store:     store,
		logger:    logger,
		maxChunk:  MaxChunkChars,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize converts one text segment into an audio file at in.OutputPath.
//
// A single chunk failure aborts the whole segment; no partial file is
// emitted. Transient per-chunk clips are removed on every exit path.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) error {
	lang := s.resolveLanguage(in)

	chunks := Chunks(in.Text, s.maxChunk)
	if len(chunks) == 0 {
		return fmt.Errorf("document %s segment %d: no text to synthesize", in.Document, in.SegmentIndex)
	}

	s.logger.Info("synthesizing segment",
		slog.String("document", in.Document),
		slog.Int("segment", in.SegmentIndex),
		slog.Int("chunks", len(chunks)),
		slog.String("language", lang),
	)

	var tempPaths []string
	defer func() {
		if err := s.store.CleanupTemp(ctx, tempPaths); err != nil {
			s.logger.Warn("temp clip cleanup failed",
				slog.String("document", in.Document),
				slog.String("error", err.Error()),
			)
		}
	}()

	clipPaths := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		clip, err := s.speech.Synthesize(ctx, chunk, lang)
		if err != nil {
			return fmt.Errorf("document %s segment %d chunk %d/%d: %w",
				in.Document, in.SegmentIndex, i+1, len(chunks), err)
		}

		name := fmt.Sprintf("%s_seg%d_chunk%03d", in.Document, in.SegmentIndex, i+1)
		path, err := s.store.SaveTemp(ctx, name, bytes.NewReader(clip))
		if err != nil {
			return fmt.Errorf("document %s segment %d chunk %d/%d: save clip: %w",
				in.Document, in.SegmentIndex, i+1, len(chunks), err)
		}
		tempPaths = append(tempPaths, path)
		clipPaths = append(clipPaths, path)
	}

	// Join clips into one MP3 track, then export to the target container.
	track, err := s.store.SaveTemp(ctx, fmt.Sprintf("%s_seg%d_track", in.Document, in.SegmentIndex), bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("document %s segment %d: create track file: %w", in.Document, in.SegmentIndex, err)
	}
	tempPaths = append(tempPaths, track)

	if err := s.processor.JoinClips(ctx, clipPaths, track); err != nil {
		return fmt.Errorf("document %s segment %d: join clips: %w", in.Document, in.SegmentIndex, err)
	}

	if err := s.processor.Export(ctx, track, in.OutputPath, in.Format); err != nil {
		return fmt.Errorf("document %s segment %d: export %s: %w", in.Document, in.SegmentIndex, in.Format, err)
	}

	return nil
}

// resolveLanguage picks the explicit language when given, otherwise detects
// it from the first detectionSample characters. Detection failure is
// absorbed with an "en" fallback.
func (s *Synthesizer) resolveLanguage(in Input) string {
	if in.Language != "" {
		return in.Language
	}

	sample := in.Text
	if runes := []rune(sample); len(runes) > detectionSample {
		sample = string(runes[:detectionSample])
	}

	info := whatlanggo.Detect(sample)
	code := info.Lang.Iso6391()
	if code == "" || !info.IsReliable() {
		s.logger.Warn("language detection failed, defaulting to English",
			slog.String("document", in.Document),
			slog.Int("segment", in.SegmentIndex),
		)
		return "en"
	}

	return code
}
