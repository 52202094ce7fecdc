// Package document defines the document model consumed by the conversion
// pipeline: positioned text blocks grouped into pages, plus title/author
// metadata. The Extractor port decouples the pipeline from the concrete
// text-extraction backend.
package document

import (
	"context"
	"path/filepath"
	"strings"
)

// UnknownAuthor is the sentinel used when no author can be determined.
const UnknownAuthor = "Unknown Author"

// Block is a piece of extracted text with its position on the page.
// X grows left to right, Y grows top to bottom.
type Block struct {
	Text string
	X    float64
	Y    float64
}

// Page is an ordered collection of text blocks from a single page.
type Page struct {
	Blocks []Block
}

// Text returns the page text with blocks joined by newlines, in stored order.
func (p Page) Text() string {
	parts := make([]string, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n")
}

// Metadata carries the title and author embedded into the output audio.
// Empty fields mean "unknown".
type Metadata struct {
	Title  string
	Author string
}

// Merge returns a copy of m with non-empty fields from override applied.
// Override happens field by field, never as a whole-record replacement.
func (m Metadata) Merge(override Metadata) Metadata {
	out := m
	if strings.TrimSpace(override.Title) != "" {
		out.Title = override.Title
	}
	if strings.TrimSpace(override.Author) != "" {
		out.Author = override.Author
	}
	return out
}

// ApplyDefaults fills empty fields: the title falls back to the document's
// base filename (extension stripped) and the author to UnknownAuthor.
func (m Metadata) ApplyDefaults(path string) Metadata {
	out := m
	if strings.TrimSpace(out.Title) == "" {
		out.Title = BaseName(path)
	}
	if strings.TrimSpace(out.Author) == "" {
		out.Author = UnknownAuthor
	}
	return out
}

// BaseName returns the file name of path without its extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Extractor is the port for the document text/metadata extraction backend.
// Implementations must tolerate unreadable or corrupt files by returning
// empty pages and best-effort metadata together with the error; the caller
// decides whether to treat the error as fatal.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]Page, Metadata, error)
}
