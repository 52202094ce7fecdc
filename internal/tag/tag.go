// Package tag embeds title/author metadata into exported audio containers.
// MP3 files get ID3v2 text frames, ogg files get Vorbis comments, and wav
// files carry no tags at all.
package tag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"

	"github.com/docvoice/docvoice/internal/document"
	"github.com/docvoice/docvoice/internal/media"
)

// ErrUnsupportedFormat is returned for container formats other than
// mp3, wav and ogg.
var ErrUnsupportedFormat = errors.New("tag: unsupported container format")

// Request describes one tagging operation.
type Request struct {
	// Path is the exported audio file.
	Path string
	// Format is the container format: mp3, wav or ogg.
	Format string
	// Metadata carries the title and author to embed.
	Metadata document.Metadata
	// Track is an optional 1-based track number for multi-segment
	// documents. Zero means no track frame is written.
	Track int
}

// Tagger writes metadata into exported audio files.
type Tagger struct {
	processor media.Processor
}

// New creates a Tagger. The media processor is used for formats whose tags
// ffmpeg embeds (ogg); mp3 tagging happens in-process.
func New(processor media.Processor) *Tagger {
	return &Tagger{processor: processor}
}

// Tag embeds the request's metadata into the audio file.
// For wav the operation is a no-op that still reports success, since the
// container has no standard tag scheme.
func (t *Tagger) Tag(ctx context.Context, req Request) error {
	switch strings.ToLower(req.Format) {
	case "mp3":
		return t.tagMP3(req)
	case "ogg":
		return t.tagOgg(ctx, req)
	case "wav":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
}

// tagMP3 writes ID3v2 frames: TIT2 (title), TPE1 (artist) and optionally
// TRCK (track number).
func (t *Tagger) tagMP3(req Request) error {
	id3, err := id3v2.Open(req.Path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("tag: open mp3: %w", err)
	}
	defer func() { _ = id3.Close() }()

	id3.SetDefaultEncoding(id3v2.EncodingUTF8)
	id3.SetTitle(req.Metadata.Title)
	id3.SetArtist(req.Metadata.Author)
	if req.Track > 0 {
		id3.AddTextFrame(id3.CommonID("Track number/Position in set"), id3v2.EncodingUTF8, strconv.Itoa(req.Track))
	}

	if err := id3.Save(); err != nil {
		return fmt.Errorf("tag: save mp3 tags: %w", err)
	}
	return nil
}

// tagOgg embeds Vorbis comments through an ffmpeg stream-copy rewrite.
func (t *Tagger) tagOgg(ctx context.Context, req Request) error {
	comments := map[string]string{
		"title":  req.Metadata.Title,
		"artist": req.Metadata.Author,
	}
	if req.Track > 0 {
		comments["track"] = strconv.Itoa(req.Track)
	}

	if err := t.processor.EmbedComments(ctx, req.Path, comments); err != nil {
		return fmt.Errorf("tag: embed ogg comments: %w", err)
	}
	return nil
}
