// Package pipeline composes extraction, chunking, embedding, and
// storage into one ingestion path: file or raw text in, persisted
// chunk rows out.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/quarrylabs/quarry/internal/chunk"
	"github.com/quarrylabs/quarry/internal/collection"
	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/extract"
	"github.com/quarrylabs/quarry/internal/store"
)

// DefaultCollection receives documents ingested without an explicit
// collection.
const DefaultCollection = "default"

// Pipeline drives a document from source text to stored chunks.
type Pipeline struct {
	Store        *store.Store
	Embedder     embed.Embedder
	MaxChars     int
	OverlapChars int
	Logger       *slog.Logger
}

// New creates a pipeline with default chunk bounds.
func New(st *store.Store, embedder embed.Embedder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Store:        st,
		Embedder:     embedder,
		MaxChars:     chunk.DefaultMaxChars,
		OverlapChars: chunk.DefaultOverlapChars,
		Logger:       logger,
	}
}

// Options adjust a single ingestion call.
type Options struct {
	// Collection namespaces the document; DefaultCollection if empty.
	Collection string

	// DocumentName overrides the stored name; the file's base name if
	// empty. Pass a root-relative path when syncing a directory so
	// identically named files in subdirectories cannot collide.
	DocumentName string

	// Overwrite deletes the document's existing chunks first, so
	// re-ingestion replaces instead of duplicating.
	Overwrite bool
}

// Result reports what one ingestion stored.
type Result struct {
	DocumentName string
	Collection   string
	Pages        int
	Chunks       int
}

// IngestFile extracts a file, chunks it, embeds the chunks, and
// persists them.
func (p *Pipeline) IngestFile(ctx context.Context, path string, opts Options) (Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, errors.Validation(fmt.Sprintf("invalid file path: %s", path))
	}
	if _, err := os.Stat(abs); err != nil {
		return Result{}, errors.NotFound(errors.ErrCodeFileNotFound,
			fmt.Sprintf("file not found: %s", abs))
	}
	if !extract.Supported(abs) {
		return Result{}, errors.Newf(errors.ErrCodeUnsupportedFormat,
			"unsupported file format: %s", filepath.Ext(abs))
	}

	pages, err := extract.ParseFile(abs)
	if err != nil {
		return Result{}, err
	}

	name := opts.DocumentName
	if name == "" {
		name = filepath.Base(abs)
	}
	return p.ingestPages(ctx, pages, name, opts)
}

// IngestContent chunks and stores raw text without touching the
// filesystem. Format selects the sectioning strategy;
// extract.FormatAuto detects it from the content.
func (p *Pipeline) IngestContent(ctx context.Context, text, documentName string, format extract.Format, opts Options) (Result, error) {
	if documentName == "" {
		return Result{}, errors.Validation("document name must not be empty")
	}
	pages, err := extract.ParseText(text, documentName, format)
	if err != nil {
		return Result{}, err
	}
	return p.ingestPages(ctx, pages, documentName, opts)
}

func (p *Pipeline) ingestPages(ctx context.Context, pages []chunk.PageContent, documentName string, opts Options) (Result, error) {
	coll := DefaultCollection
	if opts.Collection != "" {
		validated, err := collection.ValidateName(opts.Collection)
		if err != nil {
			return Result{}, err
		}
		coll = validated
	}

	// Extraction names pages after the file's base name; the stored
	// rows must carry the resolved name or overwrite and sync deletes
	// would miss them.
	for i := range pages {
		pages[i].DocumentName = documentName
	}

	if opts.Overwrite {
		if _, err := p.Store.Delete(ctx, store.Filters{
			DocumentName: documentName,
			Collection:   coll,
		}); err != nil {
			return Result{}, err
		}
	}

	chunks := chunk.Pages(pages, p.MaxChars, p.OverlapChars, coll)
	result := Result{DocumentName: documentName, Collection: coll, Pages: len(pages)}
	if len(chunks) == 0 {
		p.Logger.Info("nothing to ingest",
			slog.String("document", documentName),
			slog.String("collection", coll))
		return result, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Result{}, errors.External(errors.ErrCodeEmbeddingFailed,
			fmt.Errorf("embed %q: %w", documentName, err))
	}

	stored, err := p.Store.Insert(ctx, chunks, vectors)
	if err != nil {
		return Result{}, err
	}
	result.Chunks = stored

	p.Logger.Info("ingested document",
		slog.String("document", documentName),
		slog.String("collection", coll),
		slog.Int("pages", result.Pages),
		slog.Int("chunks", result.Chunks))
	return result, nil
}

// Ingest re-ingests one file during a sync run, always overwriting
// any chunks from a previous version of the file.
func (p *Pipeline) Ingest(ctx context.Context, path, coll, documentName string) error {
	_, err := p.IngestFile(ctx, path, Options{
		Collection:   coll,
		DocumentName: documentName,
		Overwrite:    true,
	})
	return err
}
