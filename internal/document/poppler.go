package document

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// PopplerExtractor implements Extractor by shelling out to the poppler
// utilities: pdftotext for positioned text blocks and pdfinfo for metadata.
type PopplerExtractor struct {
	pdftotextPath string
	pdfinfoPath   string
}

// NewPopplerExtractor creates a new PopplerExtractor.
// Empty paths default to "pdftotext" and "pdfinfo" (found via PATH).
func NewPopplerExtractor(pdftotextPath, pdfinfoPath string) *PopplerExtractor {
	if pdftotextPath == "" {
		pdftotextPath = "pdftotext"
	}
	if pdfinfoPath == "" {
		pdfinfoPath = "pdfinfo"
	}
	return &PopplerExtractor{
		pdftotextPath: pdftotextPath,
		pdfinfoPath:   pdfinfoPath,
	}
}

// bboxDoc mirrors the XHTML emitted by `pdftotext -bbox-layout`.
type bboxDoc struct {
	Pages []bboxPage `xml:"body>doc>page"`
}

type bboxPage struct {
	Flows []bboxFlow `xml:"flow"`
}

type bboxFlow struct {
	Blocks []bboxBlock `xml:"block"`
}

type bboxBlock struct {
	XMin  float64    `xml:"xMin,attr"`
	YMin  float64    `xml:"yMin,attr"`
	Lines []bboxLine `xml:"line"`
}

type bboxLine struct {
	Words []bboxWord `xml:"word"`
}

type bboxWord struct {
	Text string `xml:",chardata"`
}

// Extract reads pages and metadata from a PDF file.
// On failure it returns empty pages and zero metadata along with the error,
// so callers can degrade to a no-op conversion instead of aborting the batch.
func (e *PopplerExtractor) Extract(ctx context.Context, path string) ([]Page, Metadata, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, Metadata{}, fmt.Errorf("stat document: %w", err)
	}

	pages, err := e.extractPages(ctx, path)
	if err != nil {
		return nil, Metadata{}, err
	}

	// Metadata extraction failure is not worth failing the document over;
	// defaults cover the missing fields.
	meta, _ := e.extractMetadata(ctx, path)

	return pages, meta, nil
}

// extractPages runs pdftotext with bounding-box layout and converts the
// XML output into positioned blocks.
func (e *PopplerExtractor) extractPages(ctx context.Context, path string) ([]Page, error) {
	// #nosec G204 - pdftotextPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.pdftotextPath, "-bbox-layout", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pdftotext cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseBBoxOutput(stdout.Bytes())
}

// parseBBoxOutput decodes pdftotext -bbox-layout XML into pages of blocks.
func parseBBoxOutput(data []byte) ([]Page, error) {
	var doc bboxDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse pdftotext output: %w", err)
	}

	pages := make([]Page, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		var page Page
		for _, flow := range p.Flows {
			for _, b := range flow.Blocks {
				text := blockText(b)
				if text == "" {
					continue
				}
				page.Blocks = append(page.Blocks, Block{
					Text: text,
					X:    b.XMin,
					Y:    b.YMin,
				})
			}
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// blockText joins the words of a block: spaces within a line, newlines
// between lines.
func blockText(b bboxBlock) string {
	lines := make([]string, 0, len(b.Lines))
	for _, line := range b.Lines {
		words := make([]string, 0, len(line.Words))
		for _, w := range line.Words {
			if t := strings.TrimSpace(w.Text); t != "" {
				words = append(words, t)
			}
		}
		if len(words) > 0 {
			lines = append(lines, strings.Join(words, " "))
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractMetadata runs pdfinfo and picks the Title and Author fields.
func (e *PopplerExtractor) extractMetadata(ctx context.Context, path string) (Metadata, error) {
	// #nosec G204 - pdfinfoPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.pdfinfoPath, path)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return Metadata{}, fmt.Errorf("pdfinfo: %w", err)
	}

	return parsePDFInfo(&stdout), nil
}

// parsePDFInfo scans pdfinfo's "Key: value" output for Title and Author.
func parsePDFInfo(r *bytes.Buffer) Metadata {
	var meta Metadata
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Title":
			meta.Title = value
		case "Author":
			meta.Author = value
		}
	}
	return meta
}
