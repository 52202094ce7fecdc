package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bogem/id3v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvoice/docvoice/internal/document"
	"github.com/docvoice/docvoice/internal/progress"
	"github.com/docvoice/docvoice/internal/segment"
	"github.com/docvoice/docvoice/internal/storage"
	"github.com/docvoice/docvoice/internal/synth"
	"github.com/docvoice/docvoice/internal/tag"
)

// fakeExtractor serves canned pages and metadata per document path.
type fakeExtractor struct {
	pages map[string][]document.Page
	meta  map[string]document.Metadata
	errs  map[string]error
}

func (f *fakeExtractor) Extract(_ context.Context, path string) ([]document.Page, document.Metadata, error) {
	if err := f.errs[path]; err != nil {
		return nil, document.Metadata{}, err
	}
	return f.pages[path], f.meta[path], nil
}

// failingSpeech fails any chunk whose text contains the trigger substring.
type failingSpeech struct {
	trigger string
	calls   int
}

func (f *failingSpeech) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	f.calls++
	if f.trigger != "" && strings.Contains(text, f.trigger) {
		return nil, errors.New("backend rejected chunk")
	}
	return []byte("clip:" + text), nil
}

// passthroughProcessor writes plausible files without invoking ffmpeg.
type passthroughProcessor struct{}

func (passthroughProcessor) JoinClips(_ context.Context, clipPaths []string, output string) error {
	var joined []byte
	for _, p := range clipPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		joined = append(joined, data...)
	}
	return os.WriteFile(output, joined, 0600)
}

func (passthroughProcessor) Export(_ context.Context, input, output, _ string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return os.WriteFile(output, data, 0600)
}

func (passthroughProcessor) EmbedComments(_ context.Context, _ string, _ map[string]string) error {
	return nil
}

type runnerFixture struct {
	runner    *Runner
	record    *progress.Store
	outputDir string
	speech    *failingSpeech
}

func newRunnerFixture(t *testing.T, extractor document.Extractor, trigger string) *runnerFixture {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	sp := &failingSpeech{trigger: trigger}
	proc := passthroughProcessor{}
	synthesizer := synth.New(sp, proc, store, nil)
	tagger := tag.New(proc)
	record := progress.NewStore(filepath.Join(t.TempDir(), "progress.txt"))

	return &runnerFixture{
		runner:    NewRunner(extractor, segment.New(segment.Options{}), synthesizer, tagger, store, record, nil),
		record:    record,
		outputDir: t.TempDir(),
		speech:    sp,
	}
}

func singlePage(texts ...string) []document.Page {
	var p document.Page
	for i, text := range texts {
		p.Blocks = append(p.Blocks, document.Block{Text: text, Y: float64(i * 10)})
	}
	return []document.Page{p}
}

func (f *runnerFixture) request(docs ...string) RunRequest {
	return RunRequest{
		Documents: docs,
		OutputDir: f.outputDir,
		Format:    "mp3",
		Language:  "en",
	}
}

func TestRun_SingleDocumentNaming(t *testing.T) {
	extractor := &fakeExtractor{
		pages: map[string][]document.Page{"book.pdf": singlePage("some text")},
		meta:  map[string]document.Metadata{},
	}
	f := newRunnerFixture(t, extractor, "")

	result, err := f.runner.Run(context.Background(), f.request("book.pdf"))
	require.NoError(t, err)

	assert.Equal(t, []string{"book.pdf"}, result.Completed)
	require.Len(t, result.Outputs, 1)
	assert.Equal(t, filepath.Join(f.outputDir, "book.mp3"), result.Outputs[0])
	assert.FileExists(t, result.Outputs[0])
}

func TestRun_MultiSegmentNaming(t *testing.T) {
	extractor := &fakeExtractor{
		pages: map[string][]document.Page{
			"book.pdf": singlePage("Chapter 1", "intro text", "Chapter 2", "more text"),
		},
		meta: map[string]document.Metadata{},
	}
	f := newRunnerFixture(t, extractor, "")

	req := f.request("book.pdf")
	req.SegmentByChapter = true

	result, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Outputs, 2)
	assert.Equal(t, filepath.Join(f.outputDir, "book_segment_1.mp3"), result.Outputs[0])
	assert.Equal(t, filepath.Join(f.outputDir, "book_segment_2.mp3"), result.Outputs[1])
}

func TestRun_MetadataOverrideAndTagging(t *testing.T) {
	extractor := &fakeExtractor{
		pages: map[string][]document.Page{"book.pdf": singlePage("some text")},
		meta: map[string]document.Metadata{
			"book.pdf": {Title: "A", Author: "B"},
		},
	}
	f := newRunnerFixture(t, extractor, "")

	req := f.request("book.pdf")
	req.Metadata = document.Metadata{Title: "C"}

	result, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Outputs, 1)

	id3, err := id3v2.Open(result.Outputs[0], id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer id3.Close()

	// Field-level override: caller title wins, extracted author survives.
	assert.Equal(t, "C", id3.Title())
	assert.Equal(t, "B", id3.Artist())
}

func TestRun_MetadataDefaults(t *testing.T) {
	extractor := &fakeExtractor{
		pages: map[string][]document.Page{"book.pdf": singlePage("some text")},
		meta:  map[string]document.Metadata{},
	}
	f := newRunnerFixture(t, extractor, "")

	result, err := f.runner.Run(context.Background(), f.request("book.pdf"))
	require.NoError(t, err)
	require.Len(t, result.Outputs, 1)

	id3, err := id3v2.Open(result.Outputs[0], id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer id3.Close()

	assert.Equal(t, "book", id3.Title())
	assert.Equal(t, document.UnknownAuthor, id3.Artist())
}

func TestRun_Resumability(t *testing.T) {
	docs := []string{"one.pdf", "two.pdf", "three.pdf"}
	extractor := &fakeExtractor{
		pages: map[string][]document.Page{
			"one.pdf":   singlePage("first document"),
			"two.pdf":   singlePage("POISON in the middle"),
			"three.pdf": singlePage("third document"),
		},
		meta: map[string]document.Metadata{},
	}
	f := newRunnerFixture(t, extractor, "POISON")

	// First run: document two fails during synthesis, the batch continues.
	result, err := f.runner.Run(context.Background(), f.request(docs...))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one.pdf", "three.pdf"}, result.Completed)
	assert.Equal(t, []string{"two.pdf"}, result.Failed)
	assert.True(t, f.record.Exists(), "record must survive a failed run")

	// Second run with a healthy backend: only document two is processed.
	f.speech.trigger = ""
	f.speech.calls = 0

	result, err = f.runner.Run(context.Background(), f.request(docs...))
	require.NoError(t, err)
	assert.Equal(t, []string{"two.pdf"}, result.Completed)
	assert.ElementsMatch(t, []string{"one.pdf", "three.pdf"}, result.AlreadyDone)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 1, f.speech.calls, "only the failed document should synthesize")

	// Clean completion deletes the record.
	assert.False(t, f.record.Exists())
}

func TestRun_EmptySegmentSkippedKeepsNumbering(t *testing.T) {
	extractor := &fakeExtractor{
		pages: map[string][]document.Page{
			"book.pdf": {
				{Blocks: []document.Block{{Text: "some text"}}},
				{Blocks: []document.Block{{Text: "   "}}},
			},
		},
		meta: map[string]document.Metadata{},
	}
	f := newRunnerFixture(t, extractor, "")

	req := f.request("book.pdf")
	req.SegmentByChapter = true

	result, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)

	// The whitespace-only second segment produces no file but still
	// counts toward the segment numbering.
	assert.Equal(t, []string{"book.pdf"}, result.Completed)
	require.Len(t, result.Outputs, 1)
	assert.Equal(t, filepath.Join(f.outputDir, "book_segment_1.mp3"), result.Outputs[0])
	assert.NoFileExists(t, filepath.Join(f.outputDir, "book_segment_2.mp3"))
	assert.Equal(t, 1, f.speech.calls)
}

func TestRun_FailedSynthesisEmitsNoFile(t *testing.T) {
	extractor := &fakeExtractor{
		pages: map[string][]document.Page{"bad.pdf": singlePage("POISON text")},
		meta:  map[string]document.Metadata{},
	}
	f := newRunnerFixture(t, extractor, "POISON")

	result, err := f.runner.Run(context.Background(), f.request("bad.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []string{"bad.pdf"}, result.Failed)
	assert.Empty(t, result.Outputs)
	assert.NoFileExists(t, filepath.Join(f.outputDir, "bad.mp3"))
}

func TestRun_ExtractionFailureCompletesAsNoOp(t *testing.T) {
	extractor := &fakeExtractor{
		errs: map[string]error{"corrupt.pdf": errors.New("unreadable")},
	}
	f := newRunnerFixture(t, extractor, "")

	result, err := f.runner.Run(context.Background(), f.request("corrupt.pdf"))
	require.NoError(t, err)

	// The document still completes (no-op) and is checkpointed.
	assert.Equal(t, []string{"corrupt.pdf"}, result.Completed)
	assert.Empty(t, result.Outputs)
	assert.False(t, f.record.Exists(), "clean completion clears the record")
}

func TestRun_NoOpWhenEverythingDone(t *testing.T) {
	extractor := &fakeExtractor{
		pages: map[string][]document.Page{"book.pdf": singlePage("text")},
		meta:  map[string]document.Metadata{},
	}
	f := newRunnerFixture(t, extractor, "")

	require.NoError(t, f.record.Append("book.pdf"))

	result, err := f.runner.Run(context.Background(), f.request("book.pdf"))
	require.NoError(t, err)
	assert.Empty(t, result.Completed)
	assert.Equal(t, []string{"book.pdf"}, result.AlreadyDone)
	assert.Equal(t, 0, f.speech.calls)
	assert.False(t, f.record.Exists())
}

func TestRun_ResumeWithoutRecordFailsFast(t *testing.T) {
	extractor := &fakeExtractor{
		pages: map[string][]document.Page{"book.pdf": singlePage("text")},
		meta:  map[string]document.Metadata{},
	}
	f := newRunnerFixture(t, extractor, "")

	req := f.request("book.pdf")
	req.Resume = true

	_, err := f.runner.Run(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, progress.ErrNothingToResume)
	assert.Equal(t, 0, f.speech.calls, "no work may start without a record")
}

func TestRun_InvalidRequest(t *testing.T) {
	extractor := &fakeExtractor{}
	f := newRunnerFixture(t, extractor, "")

	tests := []struct {
		name string
		req  RunRequest
	}{
		{"no documents", RunRequest{OutputDir: f.outputDir, Format: "mp3"}},
		{"bad format", RunRequest{Documents: []string{"a.pdf"}, OutputDir: f.outputDir, Format: "flac"}},
		{"no output dir", RunRequest{Documents: []string{"a.pdf"}, Format: "mp3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.runner.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid run request")
		})
	}
}

func TestRun_ChunkedDocument(t *testing.T) {
	// A long single-segment document exercises the chunk loop end to end.
	longText := strings.Repeat("All work and no play makes narration a dull job. ", 200)
	extractor := &fakeExtractor{
		pages: map[string][]document.Page{"long.pdf": singlePage(longText)},
		meta:  map[string]document.Metadata{},
	}
	f := newRunnerFixture(t, extractor, "")

	result, err := f.runner.Run(context.Background(), f.request("long.pdf"))
	require.NoError(t, err)
	require.Len(t, result.Outputs, 1)

	// ceil(len/3000) synthesis calls, one per chunk.
	expected := (len(longText) + synth.MaxChunkChars - 1) / synth.MaxChunkChars
	assert.Equal(t, expected, f.speech.calls)

	// The passthrough processor concatenates clips verbatim, so every
	// chunk must appear in order in the output.
	data, err := os.ReadFile(result.Outputs[0])
	require.NoError(t, err)
	assert.Equal(t, expected, strings.Count(string(data), "clip:"))
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "book.mp3", outputName("book", 1, 1, "mp3"))
	assert.Equal(t, "book_segment_1.ogg", outputName("book", 1, 2, "ogg"))
	assert.Equal(t, "book_segment_2.ogg", outputName("book", 2, 2, "ogg"))
}

func TestJob_Transitions(t *testing.T) {
	j := New("book.pdf")
	assert.Equal(t, StatusPending, j.GetStatus())

	require.NoError(t, j.Start())
	assert.Equal(t, StatusInProgress, j.GetStatus())
	assert.False(t, j.IsTerminal())

	require.NoError(t, j.Complete())
	assert.Equal(t, StatusCompleted, j.GetStatus())
	assert.True(t, j.IsTerminal())

	// Terminal states accept no further transitions.
	err := j.Fail("too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestJob_FailRecordsError(t *testing.T) {
	j := New("book.pdf")
	require.NoError(t, j.Start())
	require.NoError(t, j.Fail("synthesis exploded"))

	assert.Equal(t, StatusFailed, j.GetStatus())
	assert.Equal(t, "synthesis exploded", j.Error)
}

func TestJob_InvalidStart(t *testing.T) {
	j := New("book.pdf")
	require.NoError(t, j.Start())

	err := j.Start()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRun_PublishFailureIsNonFatal(t *testing.T) {
	extractor := &fakeExtractor{
		pages: map[string][]document.Page{"book.pdf": singlePage("text")},
		meta:  map[string]document.Metadata{},
	}
	f := newRunnerFixture(t, extractor, "")

	// LocalStorage has no publication target; the document must still
	// complete with its audio intact.
	req := f.request("book.pdf")
	req.Publish = true

	result, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"book.pdf"}, result.Completed)
	require.Len(t, result.Outputs, 1)
	assert.FileExists(t, result.Outputs[0])
}

func TestRun_OutputsAreTaggedPerSegment(t *testing.T) {
	extractor := &fakeExtractor{
		pages: map[string][]document.Page{
			"book.pdf": singlePage("Chapter 1", "intro", "Chapter 2", "outro"),
		},
		meta: map[string]document.Metadata{
			"book.pdf": {Title: "My Book", Author: "An Author"},
		},
	}
	f := newRunnerFixture(t, extractor, "")

	req := f.request("book.pdf")
	req.SegmentByChapter = true

	result, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Outputs, 2)

	for i, out := range result.Outputs {
		id3, err := id3v2.Open(out, id3v2.Options{Parse: true})
		require.NoError(t, err)

		assert.Equal(t, "My Book", id3.Title())
		assert.Equal(t, "An Author", id3.Artist())
		frame := id3.GetTextFrame(id3.CommonID("Track number/Position in set"))
		assert.Equal(t, fmt.Sprintf("%d", i+1), frame.Text)

		require.NoError(t, id3.Close())
	}
}
