package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Static errors for media operations.
var (
	// ErrNoClipPaths is returned when no clip paths are provided for joining.
	ErrNoClipPaths = errors.New("no clip paths provided")
	// ErrUnsupportedFormat is returned for container formats other than
	// mp3, wav and ogg.
	ErrUnsupportedFormat = errors.New("unsupported container format")
)

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath}
}

// JoinClips concatenates MP3 clips into a single MP3 track.
// It first attempts a fast stream copy and falls back to re-encoding with
// libmp3lame if the copy fails.
func (p *FFmpegProcessor) JoinClips(ctx context.Context, clipPaths []string, output string) error {
	if len(clipPaths) == 0 {
		return ErrNoClipPaths
	}

	if len(clipPaths) == 1 {
		// Single clip: just copy the file.
		return copyFile(clipPaths[0], output)
	}

	listFile, err := createConcatList(clipPaths)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	// Try fast copy first (no re-encoding)
	err = p.joinWithCopy(ctx, listFile, output)
	if err == nil {
		return nil
	}

	return p.joinWithReencode(ctx, listFile, output)
}

// joinWithCopy concatenates clips using stream copy.
func (p *FFmpegProcessor) joinWithCopy(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	}
	return p.runFFmpeg(ctx, args)
}

// joinWithReencode concatenates clips by re-encoding with libmp3lame.
func (p *FFmpegProcessor) joinWithReencode(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		output,
	}
	return p.runFFmpeg(ctx, args)
}

// Export converts an MP3 track into the requested container format.
// Exporting to mp3 is a plain copy; wav and ogg are transcoded.
func (p *FFmpegProcessor) Export(ctx context.Context, input, output, format string) error {
	args := []string{"-y", "-i", input}

	switch strings.ToLower(format) {
	case "mp3":
		args = append(args, "-c", "copy")
	case "wav":
		args = append(args, "-c:a", "pcm_s16le")
	case "ogg":
		args = append(args, "-c:a", "libvorbis", "-q:a", "4")
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	args = append(args, output)
	return p.runFFmpeg(ctx, args)
}

// EmbedComments rewrites an audio file with metadata comments attached.
// ffmpeg cannot edit containers in place, so the file is rewritten next to
// itself and renamed over the original.
func (p *FFmpegProcessor) EmbedComments(ctx context.Context, path string, comments map[string]string) error {
	tmp := path + ".tagged" + filepath.Ext(path)

	args := []string{"-y", "-i", path, "-c", "copy"}

	// Stable ordering keeps the command deterministic.
	keys := make([]string, 0, len(comments))
	for k := range comments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-metadata", fmt.Sprintf("%s=%s", k, comments[k]))
	}

	args = append(args, tmp)

	if err := p.runFFmpeg(ctx, args); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace tagged file: %w", err)
	}
	return nil
}

// createConcatList creates a temporary file containing the list of clips
// in the format required by ffmpeg's concat demuxer.
func createConcatList(clipPaths []string) (string, error) {
	f, err := os.CreateTemp("", "ffmpeg-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range clipPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		// Escape single quotes in path
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	input, err := os.ReadFile(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	if err := os.WriteFile(dst, input, 0600); err != nil {
		return fmt.Errorf("write destination file: %w", err)
	}
	return nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
