// Package mcp exposes the index to AI clients over the Model Context
// Protocol: semantic search, content ingestion, listing, and sync as
// tools on a stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/pipeline"
	"github.com/quarrylabs/quarry/internal/store"
	"github.com/quarrylabs/quarry/internal/syncer"
	"github.com/quarrylabs/quarry/pkg/version"
)

// Server bridges MCP clients to the store, the ingestion pipeline,
// and the sync engine.
type Server struct {
	mcp      *mcp.Server
	store    *store.Store
	pipeline *pipeline.Pipeline
	engine   *syncer.Engine
	embedder embed.Embedder
	logger   *slog.Logger
}

// NewServer creates the MCP server and registers its tools.
func NewServer(st *store.Store, p *pipeline.Pipeline, eng *syncer.Engine, embedder embed.Embedder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    st,
		pipeline: p,
		engine:   eng,
		embedder: embedder,
		logger:   logger,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "quarry",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search over the indexed documents. Returns the most similar chunks with document, page, and similarity metadata. Optionally restricted to one collection or document.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ingest_content",
		Description: "Index raw text content under a document name without touching the filesystem. Markdown, LaTeX, and plain text are sectioned automatically.",
	}, s.ingestContentHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_page",
		Description: "Fetch the full raw text of one page or section of an indexed document, for reading context around a search hit.",
	}, s.getPageHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_documents",
		Description: "List indexed documents with page and chunk counts, optionally restricted to one collection.",
	}, s.listDocumentsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_collections",
		Description: "List the collection names present in the index.",
	}, s.listCollectionsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "sync",
		Description: "Reconcile the index with all registered directories: ingest new and changed files, drop chunks of deleted files.",
	}, s.syncHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", 6))
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"the search query text"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 5"`
	Collection string `json:"collection,omitempty" jsonschema:"restrict results to this collection"`
	Document   string `json:"document,omitempty" jsonschema:"restrict results to this document name"`
}

// SearchHit is one search result.
type SearchHit struct {
	Text         string  `json:"text" jsonschema:"the matched chunk text"`
	DocumentName string  `json:"document_name" jsonschema:"name of the source document"`
	Collection   string  `json:"collection" jsonschema:"collection the chunk belongs to"`
	PageNumber   int     `json:"page_number" jsonschema:"1-indexed page or section number"`
	TotalPages   int     `json:"total_pages" jsonschema:"page count of the source document"`
	Similarity   float64 `json:"similarity" jsonschema:"cosine similarity between 0 and 1, higher is closer"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchHit `json:"results" jsonschema:"results ordered by descending similarity"`
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, fmt.Errorf("query parameter is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 5
	}

	vector, err := s.embedder.Embed(ctx, input.Query)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	rows, err := s.store.Search(ctx, vector, limit, store.Filters{
		Collection:   input.Collection,
		DocumentName: input.Document,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	out := SearchOutput{Results: make([]SearchHit, 0, len(rows))}
	for _, row := range rows {
		out.Results = append(out.Results, SearchHit{
			Text:         row.Text,
			DocumentName: row.DocumentName,
			Collection:   row.Collection,
			PageNumber:   row.PageNumber,
			TotalPages:   row.TotalPages,
			Similarity:   row.Similarity(),
		})
	}
	return nil, out, nil
}

// IngestContentInput is the input schema for the ingest_content tool.
type IngestContentInput struct {
	Content      string `json:"content" jsonschema:"the raw text to index"`
	DocumentName string `json:"document_name" jsonschema:"name to store the content under"`
	Collection   string `json:"collection,omitempty" jsonschema:"collection to file the document into, default 'default'"`
	Format       string `json:"format,omitempty" jsonschema:"one of auto, plain, markdown, latex; default auto"`
}

// IngestContentOutput is the output schema for the ingest_content
// tool.
type IngestContentOutput struct {
	DocumentName string `json:"document_name" jsonschema:"stored document name"`
	Collection   string `json:"collection" jsonschema:"collection the document was filed into"`
	Pages        int    `json:"pages" jsonschema:"number of sections detected"`
	Chunks       int    `json:"chunks" jsonschema:"number of chunks stored"`
}

func (s *Server) ingestContentHandler(ctx context.Context, _ *mcp.CallToolRequest, input IngestContentInput) (*mcp.CallToolResult, IngestContentOutput, error) {
	if input.Content == "" {
		return nil, IngestContentOutput{}, fmt.Errorf("content parameter is required")
	}
	format := input.Format
	if format == "" {
		format = "auto"
	}

	res, err := s.pipeline.IngestContent(ctx, input.Content, input.DocumentName,
		extractFormat(format), pipeline.Options{Collection: input.Collection, Overwrite: true})
	if err != nil {
		return nil, IngestContentOutput{}, err
	}
	return nil, IngestContentOutput{
		DocumentName: res.DocumentName,
		Collection:   res.Collection,
		Pages:        res.Pages,
		Chunks:       res.Chunks,
	}, nil
}

// GetPageInput is the input schema for the get_page tool.
type GetPageInput struct {
	DocumentName string `json:"document_name" jsonschema:"name of the indexed document"`
	PageNumber   int    `json:"page_number" jsonschema:"1-indexed page or section number"`
	Collection   string `json:"collection,omitempty" jsonschema:"restrict the lookup to this collection"`
}

// GetPageOutput is the output schema for the get_page tool.
type GetPageOutput struct {
	Text string `json:"text" jsonschema:"the raw text of the page"`
}

func (s *Server) getPageHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetPageInput) (*mcp.CallToolResult, GetPageOutput, error) {
	text, err := s.store.GetPageText(ctx, input.DocumentName, input.PageNumber, input.Collection)
	if err != nil {
		return nil, GetPageOutput{}, err
	}
	return nil, GetPageOutput{Text: text}, nil
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct {
	Collection string `json:"collection,omitempty" jsonschema:"restrict the listing to this collection"`
}

// DocumentEntry describes one indexed document.
type DocumentEntry struct {
	DocumentName string `json:"document_name" jsonschema:"stored document name"`
	Collection   string `json:"collection" jsonschema:"collection the document belongs to"`
	TotalPages   int    `json:"total_pages" jsonschema:"page count of the document"`
	PagesIndexed int    `json:"pages_indexed" jsonschema:"distinct pages with stored chunks"`
	ChunkCount   int    `json:"chunk_count" jsonschema:"number of stored chunks"`
	LastIngested string `json:"last_ingested" jsonschema:"RFC3339 timestamp of the newest chunk"`
}

// ListDocumentsOutput is the output schema for the list_documents
// tool.
type ListDocumentsOutput struct {
	Documents []DocumentEntry `json:"documents" jsonschema:"indexed documents"`
}

func (s *Server) listDocumentsHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListDocumentsInput) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	docs, err := s.store.ListDocuments(ctx, input.Collection)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}
	out := ListDocumentsOutput{Documents: make([]DocumentEntry, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, DocumentEntry{
			DocumentName: d.DocumentName,
			Collection:   d.Collection,
			TotalPages:   d.TotalPages,
			PagesIndexed: d.PagesIndexed,
			ChunkCount:   d.ChunkCount,
			LastIngested: d.LastIngestedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

// CollectionEntry describes one collection present in the index.
type CollectionEntry struct {
	Collection    string `json:"collection" jsonschema:"collection name"`
	DocumentCount int    `json:"document_count" jsonschema:"distinct documents in the collection"`
	ChunkCount    int    `json:"chunk_count" jsonschema:"stored chunks in the collection"`
}

// ListCollectionsOutput is the output schema for the list_collections
// tool.
type ListCollectionsOutput struct {
	Collections []CollectionEntry `json:"collections" jsonschema:"per-collection rollups"`
}

func (s *Server) listCollectionsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, ListCollectionsOutput, error) {
	infos, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, ListCollectionsOutput{}, err
	}
	out := ListCollectionsOutput{Collections: make([]CollectionEntry, 0, len(infos))}
	for _, info := range infos {
		out.Collections = append(out.Collections, CollectionEntry{
			Collection:    info.Collection,
			DocumentCount: info.DocumentCount,
			ChunkCount:    info.ChunkCount,
		})
	}
	return nil, out, nil
}

// SyncCollectionResult is one collection's sync outcome.
type SyncCollectionResult struct {
	Collection string   `json:"collection" jsonschema:"collection name"`
	Ingested   int      `json:"ingested" jsonschema:"files ingested or re-ingested"`
	Deleted    int      `json:"deleted" jsonschema:"documents removed from the index"`
	Skipped    int      `json:"skipped" jsonschema:"unchanged files"`
	Failed     int      `json:"failed" jsonschema:"files that could not be processed"`
	Errors     []string `json:"errors,omitempty" jsonschema:"per-file failure messages"`
}

// SyncOutput is the output schema for the sync tool.
type SyncOutput struct {
	Results []SyncCollectionResult `json:"results" jsonschema:"one entry per registered collection"`
}

func (s *Server) syncHandler(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, SyncOutput, error) {
	results, err := s.engine.SyncAll(ctx)
	if err != nil {
		return nil, SyncOutput{}, err
	}

	out := SyncOutput{Results: make([]SyncCollectionResult, 0, len(results))}
	for coll, res := range results {
		entry := SyncCollectionResult{
			Collection: coll,
			Ingested:   res.Ingested,
			Deleted:    res.Deleted,
			Skipped:    res.Skipped,
			Failed:     res.Failed,
		}
		for _, fe := range res.Errors {
			entry.Errors = append(entry.Errors, fmt.Sprintf("%s: %s", fe.Path, fe.Message))
		}
		out.Results = append(out.Results, entry)
	}
	return nil, out, nil
}
