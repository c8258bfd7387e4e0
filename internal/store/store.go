// Package store owns the persisted chunk table: schema, lazy table
// creation, insert, predicate-filtered vector search, rollups, and
// predicate delete. It is the single write path for indexed chunks.
//
// Rows live in a SQLite database inside a dedicated data directory.
// Embedding vectors are stored as little-endian float32 BLOBs. An
// optional in-memory HNSW graph accelerates unfiltered searches;
// filtered queries scan the predicate-matching rows directly.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quarrylabs/quarry/internal/chunk"
	"github.com/quarrylabs/quarry/internal/errors"
)

const (
	tableName = "chunks"

	// DefaultDimension is the embedding dimension the store expects
	// unless configured otherwise.
	DefaultDimension = 768

	timeLayout = time.RFC3339Nano
)

// Config configures the vector store.
type Config struct {
	// Dir is the data directory; the chunk table lives in chunks.db
	// inside it. Created if absent.
	Dir string

	// Dimension is the fixed embedding dimension (default: 768).
	Dimension int

	// DisableANN turns off the in-memory HNSW fast path; every search
	// then scans rows. Mainly for tests and tiny indexes.
	DisableANN bool

	// Logger receives structured store events; slog.Default() if nil.
	Logger *slog.Logger
}

// Store is the persisted chunk table plus its search paths.
// Safe for concurrent use; writes are serialized by SQLite.
type Store struct {
	db     *sql.DB
	dim    int
	logger *slog.Logger

	// tableReady is the fast path of the double-checked lazy table
	// creation; createMu serializes the slow path so concurrent
	// first-time inserts cannot race the CREATE TABLE.
	tableReady atomic.Bool
	createMu   sync.Mutex

	ann *annIndex // nil when disabled
}

// Open opens (or creates) the store under cfg.Dir.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.Validation("store directory must not be empty")
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("create store directory: %w", err))
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		filepath.ToSlash(filepath.Join(cfg.Dir, "chunks.db")))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("open chunk database: %w", err))
	}
	// Single connection: one writer, and the WAL readers we need go
	// through it as well. Avoids SQLITE_BUSY on overlapping statements.
	db.SetMaxOpenConns(1)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		dim:    dim,
		logger: logger,
	}
	if !cfg.DisableANN {
		s.ann = newANNIndex(dim)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dimension returns the fixed embedding dimension.
func (s *Store) Dimension() int {
	return s.dim
}

// Insert persists chunks with their embedding vectors.
// len(chunks) must equal len(vectors) and every vector must have the
// configured dimension. The chunk table is created lazily with the
// first batch; creation is guarded so concurrent first inserts create
// it exactly once. Returns the number of rows written.
func (s *Store) Insert(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, errors.Newf(errors.ErrCodeInvalidInput,
			"chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return 0, errors.Newf(errors.ErrCodeDimensionMismatch,
				"vector %d: expected dimension %d, got %d", i, s.dim, len(v))
		}
	}

	if err := s.ensureTable(ctx); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("begin insert: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks
			(text, vector, document_name, document_path, collection,
			 page_number, total_pages, chunk_index, page_raw_text, ingestion_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(chunks))
	for i, c := range chunks {
		res, err := stmt.ExecContext(ctx,
			c.Text,
			encodeVector(vectors[i]),
			c.DocumentName,
			c.DocumentPath,
			c.Collection,
			c.PageNumber,
			c.TotalPages,
			c.ChunkIndex,
			c.PageRawText,
			c.IngestedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("insert chunk %d: %w", i, err))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("chunk row id: %w", err))
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("commit insert: %w", err))
	}

	if s.ann != nil {
		s.ann.add(ids, vectors)
	}

	s.logger.Info("inserted chunks",
		slog.Int("count", len(chunks)),
		slog.String("document", chunks[0].DocumentName),
		slog.String("collection", chunks[0].Collection))
	return len(chunks), nil
}

// ensureTable creates the chunk table if it does not exist yet.
// Double-checked: the atomic fast path skips the mutex once the table
// is known to exist; the slow path re-checks existence after acquiring
// the lock so the loser of a concurrent first insert sees the winner's
// table instead of racing a second CREATE.
func (s *Store) ensureTable(ctx context.Context) error {
	if s.tableReady.Load() {
		return nil
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	if s.tableReady.Load() {
		return nil
	}
	exists, err := s.tableExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS chunks (
				id                  INTEGER PRIMARY KEY AUTOINCREMENT,
				text                TEXT NOT NULL,
				vector              BLOB NOT NULL,
				document_name       TEXT NOT NULL,
				document_path       TEXT NOT NULL,
				collection          TEXT NOT NULL,
				page_number         INTEGER NOT NULL,
				total_pages         INTEGER NOT NULL,
				chunk_index         INTEGER NOT NULL,
				page_raw_text       TEXT NOT NULL,
				ingestion_timestamp TEXT NOT NULL
			)
		`); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("create chunk table: %w", err))
		}
		s.logger.Debug("created chunk table")
	}
	s.tableReady.Store(true)
	return nil
}

// tableExists reports whether the chunk table has been created.
func (s *Store) tableExists(ctx context.Context) (bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, tableName).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("check chunk table: %w", err))
	}
	return true, nil
}
