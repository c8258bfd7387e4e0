// Package chunk turns extracted page or section text into ordered,
// overlapping retrieval units ready for embedding.
package chunk

import "time"

// PageContent is the content of one page or logical section of a
// document, as produced by an extraction collaborator.
//
// For PDFs, PageNumber and TotalPages are physical page indices. For
// text files they are logical section indices (markdown heading, LaTeX
// section, paragraph) — "page" means "section" there.
type PageContent struct {
	DocumentName string
	DocumentPath string
	PageNumber   int // 1-indexed
	TotalPages   int
	Text         string
}

// Chunk is a retrieval-unit slice of a page's text with overlap and
// metadata. Chunks are immutable once written to the store; updates are
// delete-then-reinsert, never in-place edits.
type Chunk struct {
	DocumentName string
	DocumentPath string
	Collection   string
	PageNumber   int
	TotalPages   int
	// ChunkIndex is 0-indexed and sequential across all pages of one
	// Pages invocation, in page order. Not reset per page.
	ChunkIndex int
	Text       string
	// PageRawText is the full untrimmed source page, duplicated across
	// every chunk of that page so full-page retrieval is always
	// possible even when the match was a small fragment.
	PageRawText string
	// IngestedAt is taken once per Pages invocation and shared by all
	// chunks it produces.
	IngestedAt time.Time
}

// Default chunking parameters (~450 tokens per chunk).
const (
	DefaultMaxChars     = 1800
	DefaultOverlapChars = 200
)
