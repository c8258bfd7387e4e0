package chunk

import (
	"regexp"
	"strings"
	"time"
)

// sentenceBoundary matches the terminal punctuation of a sentence
// followed by whitespace. Go's regexp has no lookbehind, so the match
// is split manually: the punctuation stays with the preceding sentence
// and the whitespace is dropped.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// Pages splits page contents into overlapping chunks for embedding.
//
// Splitting prefers sentence boundaries. A single sentence longer than
// maxChars is never split further — it is emitted whole, since
// mid-sentence splitting would corrupt the semantic unit being
// embedded. Each chunk carries the full raw page text for reference.
//
// Pages never fails: all-whitespace pages emit nothing, and text with
// no sentence boundary degrades to one large chunk.
func Pages(pages []PageContent, maxChars, overlapChars int, collection string) []Chunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlapChars < 0 {
		overlapChars = DefaultOverlapChars
	}

	now := time.Now().UTC()
	var chunks []Chunk
	index := 0

	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}

		for _, body := range splitText(text, maxChars, overlapChars) {
			chunks = append(chunks, Chunk{
				DocumentName: page.DocumentName,
				DocumentPath: page.DocumentPath,
				Collection:   collection,
				PageNumber:   page.PageNumber,
				TotalPages:   page.TotalPages,
				ChunkIndex:   index,
				Text:         body,
				PageRawText:  page.Text,
				IngestedAt:   now,
			})
			index++
		}
	}

	return chunks
}

// splitText splits text into chunks at sentence boundaries with overlap.
func splitText(text string, maxChars, overlapChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	sentences := splitSentences(text)

	var chunks []string
	var current []string
	currentLen := 0

	for _, sentence := range sentences {
		if currentLen+len(sentence) > maxChars && len(current) > 0 {
			closed := strings.Join(current, " ")
			chunks = append(chunks, closed)
			current, currentLen = overlapSeed(closed, overlapChars)
		}
		current = append(current, sentence)
		currentLen += len(sentence) + 1 // +1 for the joining space
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

// overlapSeed returns the starting buffer for the chunk following
// closed: the last overlapChars characters, trimmed left to the first
// interior space so the overlap starts on a word boundary. If the
// closed chunk is no longer than the overlap, or the tail has no
// interior space, the next buffer starts empty rather than with a
// fragment.
func overlapSeed(closed string, overlapChars int) ([]string, int) {
	if overlapChars <= 0 || len(closed) <= overlapChars {
		return nil, 0
	}
	tail := closed[len(closed)-overlapChars:]
	idx := strings.IndexByte(tail, ' ')
	if idx < 0 {
		return nil, 0
	}
	tail = tail[idx+1:]
	if tail == "" {
		return nil, 0
	}
	return []string{tail}, len(tail)
}

// splitSentences splits text after each `.`, `!`, or `?` that is
// followed by whitespace. The inter-sentence whitespace is consumed.
func splitSentences(text string) []string {
	locs := sentenceBoundary.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	sentences := make([]string, 0, len(locs)+1)
	start := 0
	for _, loc := range locs {
		// loc[0] is the punctuation mark; keep it with the sentence.
		sentences = append(sentences, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}
