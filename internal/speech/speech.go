// Package speech provides the port for the text-to-speech backend and its
// implementations. The backend imposes an input-length ceiling per call,
// which is why the synthesizer feeds it bounded chunks.
package speech

import "context"

// Synthesizer converts one bounded text chunk into an audio clip.
type Synthesizer interface {
	// Synthesize renders text in the given language and returns the clip
	// as MP3 bytes, the pipeline's working intermediate format.
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}
