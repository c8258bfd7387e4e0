package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/extract"
	"github.com/quarrylabs/quarry/internal/store"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	st, err := store.Open(store.Config{Dir: t.TempDir(), Dimension: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st, embed.NewStaticEmbedder(64), nil)
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestFileEndToEnd(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	path := writeDoc(t, "notes.txt", "Cats sleep a lot.\n\nDogs chase balls.")

	res, err := p.IngestFile(ctx, path, Options{Collection: "animals"})
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", res.DocumentName)
	assert.Equal(t, "animals", res.Collection)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, res.Chunks)

	// The stored chunks are retrievable by semantic search.
	query, err := p.Embedder.Embed(ctx, "Dogs chase balls.")
	require.NoError(t, err)
	rows, err := p.Store.Search(ctx, query, 1, store.Filters{Collection: "animals"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Dogs chase balls.", rows[0].Text)
	assert.Equal(t, "notes.txt", rows[0].DocumentName)
}

func TestIngestFileDefaultCollection(t *testing.T) {
	p := newTestPipeline(t)
	path := writeDoc(t, "doc.txt", "Some text.")

	res, err := p.IngestFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultCollection, res.Collection)
}

func TestIngestFileMissing(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.IngestFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), Options{})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestIngestFileUnsupportedFormat(t *testing.T) {
	p := newTestPipeline(t)
	path := writeDoc(t, "image.png", "not really an image")

	_, err := p.IngestFile(context.Background(), path, Options{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnsupportedFormat, errors.GetCode(err))
}

func TestIngestFileInvalidCollection(t *testing.T) {
	p := newTestPipeline(t)
	path := writeDoc(t, "doc.txt", "text")

	_, err := p.IngestFile(context.Background(), path, Options{Collection: "o'clock"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidCollection, errors.GetCode(err))
}

func TestOverwriteReplacesInsteadOfDuplicating(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	path := writeDoc(t, "doc.txt", "Version one.")

	_, err := p.IngestFile(ctx, path, Options{Collection: "c"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("Version two, expanded."), 0o644))
	res, err := p.IngestFile(ctx, path, Options{Collection: "c", Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chunks)

	n, err := p.Store.Count(ctx, store.Filters{DocumentName: "doc.txt", Collection: "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWithoutOverwriteDuplicates(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	path := writeDoc(t, "doc.txt", "Same content.")

	for range 2 {
		_, err := p.IngestFile(ctx, path, Options{Collection: "c"})
		require.NoError(t, err)
	}

	n, err := p.Store.Count(ctx, store.Filters{DocumentName: "doc.txt"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIngestContent(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	res, err := p.IngestContent(ctx, "# Title\nbody\n\n# Other\nmore", "pasted.md", extract.FormatAuto, Options{})
	require.NoError(t, err)
	assert.Equal(t, "pasted.md", res.DocumentName)
	assert.Equal(t, 2, res.Pages)

	_, err = p.IngestContent(ctx, "text", "", extract.FormatAuto, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestIngestEmptyDocument(t *testing.T) {
	p := newTestPipeline(t)
	path := writeDoc(t, "empty.txt", "   \n\n  \n")

	res, err := p.IngestFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Zero(t, res.Chunks)
}

func TestDocumentNameOverrideReachesStoredRows(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	path := writeDoc(t, "a.txt", "Content in a subdirectory file.")

	_, err := p.IngestFile(ctx, path, Options{
		Collection:   "c",
		DocumentName: "sub/a.txt",
		Overwrite:    true,
	})
	require.NoError(t, err)

	// Rows live under the override name, never the file's base name.
	n, err := p.Store.Count(ctx, store.Filters{DocumentName: "sub/a.txt", Collection: "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = p.Store.Count(ctx, store.Filters{DocumentName: "a.txt"})
	require.NoError(t, err)
	assert.Zero(t, n)

	// A delete by the override name removes them.
	deleted, err := p.Store.Delete(ctx, store.Filters{DocumentName: "sub/a.txt", Collection: "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestSyncIngestorOverwrites(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	path := writeDoc(t, "doc.txt", "Stable content.")

	require.NoError(t, p.Ingest(ctx, path, "c", "sub/doc.txt"))
	require.NoError(t, p.Ingest(ctx, path, "c", "sub/doc.txt"))

	n, err := p.Store.Count(ctx, store.Filters{DocumentName: "sub/doc.txt", Collection: "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
