package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Hash-vector feature weights.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// commonStopWords are filtered before hashing so that high-frequency
// function words do not dominate the vector.
var commonStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "to": true, "was": true,
	"were": true, "with": true,
}

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEmbedder generates embeddings by feature hashing: tokens and
// character trigrams are hashed into a fixed-dimension vector, which
// is then normalized to unit length. No network, no model download,
// fully deterministic. Semantic quality is reduced accordingly; it is
// the fallback backend and the workhorse of the test suite.
type StaticEmbedder struct {
	dim int
}

// NewStaticEmbedder creates a static embedder with the given vector
// dimension (DefaultDimension when dim <= 0).
func NewStaticEmbedder(dim int) *StaticEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &StaticEmbedder{dim: dim}
}

// Embed generates the embedding for a single text. Empty or
// whitespace-only text maps to the zero vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dim), nil
	}

	vector := make([]float32, e.dim)
	for _, token := range tokenize(trimmed) {
		if commonStopWords[token] {
			continue
		}
		vector[hashToIndex(token, e.dim)] += tokenWeight
	}
	for _, ngram := range extractNgrams(normalizeForNgrams(trimmed), ngramSize) {
		vector[hashToIndex(ngram, e.dim)] += ngramWeight
	}

	normalizeInPlace(vector)
	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		results[i] = vec
	}
	return results, nil
}

// Dimension returns the fixed vector dimension.
func (e *StaticEmbedder) Dimension() int {
	return e.dim
}

// ModelName identifies the hashing scheme, including the dimension so
// different configurations never share cache entries.
func (e *StaticEmbedder) ModelName() string {
	return fmt.Sprintf("static-hash-%d", e.dim)
}

func tokenize(text string) []string {
	words := tokenPattern.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, strings.ToLower(w))
	}
	return tokens
}

func normalizeForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i+n <= len(text); i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

var _ Embedder = (*StaticEmbedder)(nil)
