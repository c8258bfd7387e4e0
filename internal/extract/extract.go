// Package extract reads supported text formats and splits them into
// logical sections, one PageContent per section. Sections are what
// the chunker consumes; for text formats they play the role physical
// pages play for scanned documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/quarrylabs/quarry/internal/chunk"
	"github.com/quarrylabs/quarry/internal/errors"
)

// Format identifies how a document's text is sectioned.
type Format string

const (
	FormatAuto     Format = "auto"
	FormatPlain    Format = "plain"
	FormatMarkdown Format = "markdown"
	FormatLatex    Format = "latex"
)

// formatByExtension maps lowercased file extensions to their format.
var formatByExtension = map[string]Format{
	".txt":      FormatPlain,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".tex":      FormatLatex,
}

// SupportedExtensions returns the lowercased file extensions the
// extractor understands.
func SupportedExtensions() map[string]struct{} {
	out := make(map[string]struct{}, len(formatByExtension))
	for ext := range formatByExtension {
		out[ext] = struct{}{}
	}
	return out
}

// Supported reports whether the file's extension is extractable.
func Supported(path string) bool {
	_, ok := formatByExtension[strings.ToLower(filepath.Ext(path))]
	return ok
}

var (
	mdHeadingLine = regexp.MustCompile(`(?m)^#+\s`)
	latexSection  = regexp.MustCompile(`\\(?:sub)?section\{`)
	blankLine     = regexp.MustCompile(`\n\s*\n`)
)

// ParseFile reads a file and splits it into sections by its
// extension's format. Missing files are NotFound; unrecognized
// extensions are unsupported-format validation errors.
func ParseFile(path string) ([]chunk.PageContent, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Validation(fmt.Sprintf("invalid file path: %s", path))
	}

	format, ok := formatByExtension[strings.ToLower(filepath.Ext(abs))]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnsupportedFormat,
			"unsupported text format: %s", filepath.Ext(abs))
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(errors.ErrCodeFileNotFound,
				fmt.Sprintf("file not found: %s", abs))
		}
		return nil, errors.Wrap(errors.ErrCodeExtractionFailed, fmt.Errorf("read file: %w", err))
	}

	text := decodeText(raw)
	return sectionsToPages(splitByFormat(text, format), filepath.Base(abs), abs), nil
}

// ParseText splits raw text into sections. With FormatAuto the format
// is detected from the content: markdown if any line is an ATX
// heading, latex if a sectioning command appears, plain otherwise.
func ParseText(text, documentName string, format Format) ([]chunk.PageContent, error) {
	switch format {
	case FormatAuto:
		format = detectFormat(text)
	case FormatPlain, FormatMarkdown, FormatLatex:
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedFormat,
			"unsupported text format: %s", format)
	}
	return sectionsToPages(splitByFormat(text, format), documentName, "<string>"), nil
}

func detectFormat(text string) Format {
	if mdHeadingLine.MatchString(text) {
		return FormatMarkdown
	}
	if latexSection.MatchString(text) {
		return FormatLatex
	}
	return FormatPlain
}

func splitByFormat(text string, format Format) []string {
	switch format {
	case FormatMarkdown:
		return splitMarkdown(text)
	case FormatLatex:
		return splitAt(text, latexSection.FindAllStringIndex(text, -1))
	default:
		return splitPlain(text)
	}
}

// splitPlain splits on blank lines, one section per paragraph block.
func splitPlain(text string) []string {
	var out []string
	for _, part := range blankLine.Split(text, -1) {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitAt cuts text before each match so the delimiter stays with the
// section it opens. Empty leading or trailing fragments are dropped.
func splitAt(text string, matches [][]int) []string {
	var out []string
	prev := 0
	for _, loc := range matches {
		if loc[0] > prev {
			out = append(out, text[prev:loc[0]])
		}
		prev = loc[0]
	}
	if prev < len(text) {
		out = append(out, text[prev:])
	}

	filtered := out[:0]
	for _, s := range out {
		if strings.TrimSpace(s) != "" {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func sectionsToPages(sections []string, documentName, documentPath string) []chunk.PageContent {
	pages := make([]chunk.PageContent, len(sections))
	for i, section := range sections {
		pages[i] = chunk.PageContent{
			DocumentName: documentName,
			DocumentPath: documentPath,
			PageNumber:   i + 1,
			TotalPages:   len(sections),
			Text:         section,
		}
	}
	return pages
}

// decodeText interprets raw bytes as UTF-8, falling back to Latin-1
// for legacy files. Latin-1 maps every byte to the same code point,
// so the fallback never fails; it just mislabels Windows-1252
// punctuation as control characters, which downstream tolerates.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}
