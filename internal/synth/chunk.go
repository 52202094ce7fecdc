package synth

// MaxChunkChars is the default chunk ceiling, sized to stay under the
// speech backend's input limit.
const MaxChunkChars = 3000

// Chunks partitions text into slices of at most max characters by plain
// left-to-right slicing. The partition is lossless and order-preserving:
// concatenating the result reproduces text exactly. Boundaries fall on
// rune boundaries, so every chunk is valid UTF-8. A chunk boundary may
// fall mid-word; the backend tolerates that and anything smarter would
// change pronunciation continuity at the boundaries.
func Chunks(text string, max int) []string {
	if max <= 0 {
		max = MaxChunkChars
	}
	if text == "" {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+max-1)/max)
	for start := 0; start < len(runes); start += max {
		end := start + max
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
