package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder records how many texts reach the inner embedder.
type countingEmbedder struct {
	inner Embedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls += len(texts)
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimension() int    { return c.inner.Dimension() }
func (c *countingEmbedder) ModelName() string { return c.inner.ModelName() }

func TestCachedEmbedderAvoidsRecomputation(t *testing.T) {
	counter := &countingEmbedder{inner: NewStaticEmbedder(32)}
	cached := NewCachedEmbedder(counter, 10)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "repeated query")
	require.NoError(t, err)
	assert.Equal(t, 1, counter.calls)

	second, err := cached.Embed(ctx, "repeated query")
	require.NoError(t, err)
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, first, second)
}

func TestCachedEmbedderBatchPartialHits(t *testing.T) {
	counter := &countingEmbedder{inner: NewStaticEmbedder(32)}
	cached := NewCachedEmbedder(counter, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, 1, counter.calls)

	vecs, err := cached.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	// Only the two misses went to the inner embedder.
	assert.Equal(t, 3, counter.calls)

	// All hits now.
	_, err = cached.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, 3, counter.calls)
}

func TestCachedEmbedderPassthrough(t *testing.T) {
	inner := NewStaticEmbedder(48)
	cached := NewCachedEmbedder(inner, 0)

	assert.Equal(t, 48, cached.Dimension())
	assert.Equal(t, inner.ModelName(), cached.ModelName())
}
