// Package embed turns text into fixed-dimension vectors. The store
// only ever sees the Embedder interface; which backend produces the
// vectors is a construction-time decision.
package embed

import "context"

// DefaultDimension is the embedding dimension used when a backend is
// not configured otherwise.
const DefaultDimension = 768

// Embedder produces fixed-dimension embedding vectors for text.
// Implementations must be deterministic for a given model: the same
// text always yields the same vector.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one vector
	// per input in the same order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed vector dimension.
	Dimension() int

	// ModelName identifies the backing model, for cache keys and logs.
	ModelName() string
}
