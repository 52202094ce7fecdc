// Package segment partitions extracted document pages into ordered text
// segments, one per detected chapter, ready for speech synthesis.
package segment

import (
	"regexp"
	"sort"
	"strings"

	"github.com/docvoice/docvoice/internal/document"
)

// HeadingMatcher reports whether a block of text opens a new chapter.
// It is a replaceable strategy so alternate heuristics (multilingual
// vocabularies, numbering styles) can be swapped in without touching
// the pipeline.
type HeadingMatcher func(text string) bool

// headingPattern matches "chapter", "section" or "part" followed by a
// number at the start of a block, case-insensitively.
var headingPattern = regexp.MustCompile(`(?i)^(chapter|section|part)\s+\d+`)

// DefaultHeadingMatcher matches the built-in chapter/section/part heuristic.
func DefaultHeadingMatcher(text string) bool {
	return headingPattern.MatchString(strings.TrimSpace(text))
}

// Options configures segmentation behavior.
type Options struct {
	// Matcher decides which blocks start a new chapter.
	// Nil selects DefaultHeadingMatcher.
	Matcher HeadingMatcher

	// CarryAcrossPages keeps the open chapter buffer alive over page
	// boundaries, so a chapter spanning several pages stays one segment.
	// When false (the default), every page boundary flushes the buffer
	// and a multi-page chapter yields one segment per page.
	CarryAcrossPages bool
}

// Segmenter splits a page stream into chapter-sized text segments.
type Segmenter struct {
	matcher HeadingMatcher
	carry   bool
}

// New creates a Segmenter with the given options.
func New(opts Options) *Segmenter {
	matcher := opts.Matcher
	if matcher == nil {
		matcher = DefaultHeadingMatcher
	}
	return &Segmenter{
		matcher: matcher,
		carry:   opts.CarryAcrossPages,
	}
}

// Segment partitions pages into ordered text segments.
//
// With enabled=false it returns a single segment holding all page text in
// page order, pages joined by a newline. With enabled=true it walks each
// page's blocks in reading order (top to bottom, left to right), opens a
// new segment at every heading match, and closes the open segment at page
// boundaries unless CarryAcrossPages is set.
//
// Empty segments (blank or whitespace-only pages) are kept in the
// returned list so every segment holds its position; dropping them is
// the caller's call, typically with a recorded skip.
func (s *Segmenter) Segment(pages []document.Page, enabled bool) []string {
	if !enabled {
		return wholeDocument(pages)
	}

	var segments []string
	var current []string

	flush := func() {
		segments = append(segments, strings.Join(current, "\n"))
		current = current[:0]
	}

	for _, page := range pages {
		for _, block := range sortedBlocks(page) {
			text := strings.TrimSpace(block.Text)
			if text == "" {
				continue
			}
			if s.matcher(text) && len(current) > 0 {
				flush()
			}
			current = append(current, text)
		}
		// Every page closes its segment, empty or not, so segment
		// positions stay stable for downstream naming.
		if !s.carry {
			flush()
		}
	}
	if len(current) > 0 {
		flush()
	}

	return segments
}

// wholeDocument concatenates all page text into one segment.
// An all-empty document yields no segments.
func wholeDocument(pages []document.Page) []string {
	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		texts = append(texts, page.Text())
	}
	joined := strings.Join(texts, "\n")
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	return []string{joined}
}

// sortedBlocks returns the page's blocks in reading order: top to bottom,
// then left to right.
func sortedBlocks(page document.Page) []document.Block {
	blocks := make([]document.Block, len(page.Blocks))
	copy(blocks, page.Blocks)
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Y != blocks[j].Y {
			return blocks[i].Y < blocks[j].Y
		}
		return blocks[i].X < blocks[j].X
	})
	return blocks
}
