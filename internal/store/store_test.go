package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/chunk"
	"github.com/quarrylabs/quarry/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Dir: t.TempDir(), Dimension: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testChunk(doc, collection string, page, index int, text string) chunk.Chunk {
	return chunk.Chunk{
		DocumentName: doc,
		DocumentPath: "/docs/" + doc,
		Collection:   collection,
		PageNumber:   page,
		TotalPages:   2,
		ChunkIndex:   index,
		Text:         text,
		PageRawText:  "raw page text for " + doc,
		IngestedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestInsertAndSearchRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []chunk.Chunk{
		testChunk("a.txt", "notes", 1, 0, "alpha"),
		testChunk("a.txt", "notes", 1, 1, "beta"),
		testChunk("a.txt", "notes", 2, 2, "gamma"),
	}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}

	n, err := s.Insert(ctx, chunks, vectors)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := s.Search(ctx, []float32{0, 1, 0, 0}, 2, Filters{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "beta", rows[0].Text)
	assert.Equal(t, "a.txt", rows[0].DocumentName)
	assert.Equal(t, "notes", rows[0].Collection)
	assert.Equal(t, 1, rows[0].PageNumber)
	assert.Equal(t, 1, rows[0].ChunkIndex)
	assert.InDelta(t, 0, rows[0].Distance, 1e-6)
	assert.InDelta(t, 1, rows[0].Similarity(), 1e-6)
	assert.True(t, rows[0].Distance <= rows[1].Distance)
}

func TestSearchBeforeFirstInsert(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 5, Filters{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSearchCollectionIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx,
		[]chunk.Chunk{
			testChunk("a.txt", "math", 1, 0, "integral"),
			testChunk("b.txt", "physics", 1, 0, "momentum"),
		},
		[][]float32{
			{1, 0, 0, 0},
			{1, 0, 0, 0},
		})
	require.NoError(t, err)

	rows, err := s.Search(ctx, []float32{1, 0, 0, 0}, 10, Filters{Collection: "math"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "integral", rows[0].Text)

	rows, err = s.Search(ctx, []float32{1, 0, 0, 0}, 10, Filters{Collection: "physics"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "momentum", rows[0].Text)
}

func TestSearchDocumentFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx,
		[]chunk.Chunk{
			testChunk("a.txt", "notes", 1, 0, "first"),
			testChunk("b.txt", "notes", 1, 0, "second"),
		},
		[][]float32{
			{1, 0, 0, 0},
			{0.9, 0.1, 0, 0},
		})
	require.NoError(t, err)

	rows, err := s.Search(ctx, []float32{1, 0, 0, 0}, 10, Filters{DocumentName: "b.txt"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "second", rows[0].Text)
}

func TestSearchDimensionMismatch(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Search(context.Background(), []float32{1, 0}, 5, Filters{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDimensionMismatch, errors.GetCode(err))
}

func TestInsertValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, []chunk.Chunk{testChunk("a.txt", "notes", 1, 0, "x")}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))

	_, err = s.Insert(ctx,
		[]chunk.Chunk{testChunk("a.txt", "notes", 1, 0, "x")},
		[][]float32{{1, 0}})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDimensionMismatch, errors.GetCode(err))

	n, err := s.Insert(ctx, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteDocumentCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx,
		[]chunk.Chunk{
			testChunk("a.txt", "notes", 1, 0, "one"),
			testChunk("a.txt", "notes", 1, 1, "two"),
			testChunk("b.txt", "notes", 1, 0, "three"),
		},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 1, 0},
		})
	require.NoError(t, err)

	deleted, err := s.DeleteDocument(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// Second delete of the same document is a no-op.
	deleted, err = s.DeleteDocument(ctx, "a.txt")
	require.NoError(t, err)
	assert.Zero(t, deleted)

	// The survivor is still searchable.
	rows, err := s.Search(ctx, []float32{0, 0, 1, 0}, 10, Filters{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "three", rows[0].Text)
}

func TestDeleteCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx,
		[]chunk.Chunk{
			testChunk("a.txt", "math", 1, 0, "one"),
			testChunk("b.txt", "math", 1, 0, "two"),
			testChunk("c.txt", "physics", 1, 0, "three"),
		},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 1, 0},
		})
	require.NoError(t, err)

	deleted, err := s.DeleteCollection(ctx, "math")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	colls, err := s.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, colls, 1)
	assert.Equal(t, CollectionInfo{Collection: "physics", DocumentCount: 1, ChunkCount: 1}, colls[0])
}

func TestDeleteBeforeFirstInsert(t *testing.T) {
	s := newTestStore(t)

	deleted, err := s.DeleteDocument(context.Background(), "ghost.txt")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestGetPageText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testChunk("a.txt", "notes", 2, 0, "body")
	c.PageRawText = "the raw second page"
	_, err := s.Insert(ctx, []chunk.Chunk{c}, [][]float32{{1, 0, 0, 0}})
	require.NoError(t, err)

	text, err := s.GetPageText(ctx, "a.txt", 2, "")
	require.NoError(t, err)
	assert.Equal(t, "the raw second page", text)

	text, err = s.GetPageText(ctx, "a.txt", 2, "notes")
	require.NoError(t, err)
	assert.Equal(t, "the raw second page", text)

	_, err = s.GetPageText(ctx, "a.txt", 2, "physics")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = s.GetPageText(ctx, "a.txt", 9, "")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, errors.ErrCodePageNotFound, errors.GetCode(err))
}

func TestGetPageTextBeforeFirstInsert(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPageText(context.Background(), "a.txt", 1, "")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestListDocumentsRollup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx,
		[]chunk.Chunk{
			testChunk("a.txt", "notes", 1, 0, "one"),
			testChunk("a.txt", "notes", 1, 1, "two"),
			testChunk("a.txt", "notes", 2, 2, "three"),
			testChunk("b.txt", "other", 1, 0, "four"),
		},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 1, 0},
			{0, 0, 0, 1},
		})
	require.NoError(t, err)

	docs, err := s.ListDocuments(ctx, "")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "notes", docs[0].Collection)
	assert.Equal(t, "a.txt", docs[0].DocumentName)
	assert.Equal(t, 3, docs[0].ChunkCount)
	assert.Equal(t, 2, docs[0].PagesIndexed)
	assert.Equal(t, 2, docs[0].TotalPages)
	assert.False(t, docs[0].LastIngestedAt.IsZero())

	docs, err = s.ListDocuments(ctx, "other")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b.txt", docs[0].DocumentName)
}

func TestCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx, Filters{})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Insert(ctx,
		[]chunk.Chunk{
			testChunk("a.txt", "notes", 1, 0, "one"),
			testChunk("b.txt", "notes", 1, 0, "two"),
		},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
		})
	require.NoError(t, err)

	n, err = s.Count(ctx, Filters{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Count(ctx, Filters{DocumentName: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOptimizeAndIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Both are no-ops before the table exists.
	require.NoError(t, s.CreateCollectionIndex(ctx))
	require.NoError(t, s.Optimize(ctx))

	_, err := s.Insert(ctx,
		[]chunk.Chunk{testChunk("a.txt", "notes", 1, 0, "one")},
		[][]float32{{1, 0, 0, 0}})
	require.NoError(t, err)

	require.NoError(t, s.CreateCollectionIndex(ctx))
	// Rebuilding an existing index replaces it.
	require.NoError(t, s.CreateCollectionIndex(ctx))
	require.NoError(t, s.Optimize(ctx))
}

func TestQuotedNamesSurviveFiltering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testChunk("o'reilly.txt", "books", 1, 0, "it's a chapter")
	_, err := s.Insert(ctx, []chunk.Chunk{c}, [][]float32{{1, 0, 0, 0}})
	require.NoError(t, err)

	rows, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5, Filters{DocumentName: "o'reilly.txt"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "it's a chapter", rows[0].Text)

	deleted, err := s.DeleteDocument(ctx, "o'reilly.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestSearchSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Config{Dir: dir, Dimension: 4})
	require.NoError(t, err)
	_, err = s.Insert(ctx,
		[]chunk.Chunk{testChunk("a.txt", "notes", 1, 0, "persisted")},
		[][]float32{{0, 1, 0, 0}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// A fresh handle rebuilds the in-memory graph from disk lazily.
	s2, err := Open(Config{Dir: dir, Dimension: 4})
	require.NoError(t, err)
	defer s2.Close()

	rows, err := s2.Search(ctx, []float32{0, 1, 0, 0}, 1, Filters{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "persisted", rows[0].Text)
}
