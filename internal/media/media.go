// Package media provides audio concatenation and container export on top of
// the ffmpeg CLI.
package media

import "context"

// Processor defines the audio operations the conversion pipeline needs.
// It acts as a port so tests can run without ffmpeg installed.
type Processor interface {
	// JoinClips concatenates MP3 clips into a single MP3 track, strictly
	// preserving the input order.
	JoinClips(ctx context.Context, clipPaths []string, output string) error

	// Export converts an MP3 track into the requested container format
	// (mp3, wav or ogg) at the output path.
	Export(ctx context.Context, input, output, format string) error

	// EmbedComments rewrites an audio file with the given metadata
	// key/value pairs attached as container-level comments (used for
	// Vorbis comments in ogg). The rewrite is a stream copy.
	EmbedComments(ctx context.Context, path string, comments map[string]string) error
}
