package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quarrylabs/quarry/internal/errors"
)

// Row is one search hit: the stored chunk plus its cosine distance
// from the query vector.
type Row struct {
	ID           int64
	Text         string
	DocumentName string
	DocumentPath string
	Collection   string
	PageNumber   int
	TotalPages   int
	ChunkIndex   int
	PageRawText  string
	IngestedAt   time.Time
	Distance     float64
}

// Similarity is 1 minus the cosine distance; higher is closer.
func (r Row) Similarity() float64 {
	return 1 - r.Distance
}

// DocumentInfo is a per-document rollup over the chunk table.
type DocumentInfo struct {
	Collection     string
	DocumentName   string
	DocumentPath   string
	TotalPages     int
	PagesIndexed   int
	ChunkCount     int
	LastIngestedAt time.Time
}

const rowColumns = `id, text, document_name, document_path, collection,
	page_number, total_pages, chunk_index, page_raw_text, ingestion_timestamp`

// Search returns the k rows nearest the query vector, closest first.
// Filters narrow the candidate set before ranking. Searching before
// any insert returns an empty result, not an error.
//
// Unfiltered searches go through the in-memory HNSW graph when it is
// enabled; filtered searches rank the matching rows exactly.
func (s *Store) Search(ctx context.Context, query []float32, k int, filters Filters) ([]Row, error) {
	if len(query) != s.dim {
		return nil, errors.Newf(errors.ErrCodeDimensionMismatch,
			"query vector: expected dimension %d, got %d", s.dim, len(query))
	}
	if k <= 0 {
		return nil, errors.Validation("result count must be positive")
	}

	exists, err := s.tableExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []Row{}, nil
	}

	if filters.empty() && s.ann != nil {
		return s.searchANN(ctx, query, k)
	}
	return s.searchScan(ctx, query, k, filters)
}

// searchANN ranks via the HNSW graph, then hydrates the winning rows
// from the database.
func (s *Store) searchANN(ctx context.Context, query []float32, k int) ([]Row, error) {
	if err := s.ann.ensureLoaded(ctx, s.db); err != nil {
		return nil, err
	}

	ids, dists := s.ann.search(normalizeVector(query), k)
	if len(ids) == 0 {
		return []Row{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM chunks WHERE id IN (%s)`, rowColumns, placeholders), args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("fetch search rows: %w", err))
	}
	defer rows.Close()

	byID := make(map[int64]Row, len(ids))
	for rows.Next() {
		row, _, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		byID[row.ID] = row
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("iterate search rows: %w", err))
	}

	// Preserve the graph's distance ordering.
	out := make([]Row, 0, len(ids))
	for i, id := range ids {
		row, ok := byID[id]
		if !ok {
			continue
		}
		row.Distance = dists[i]
		out = append(out, row)
	}
	return out, nil
}

// searchScan ranks the predicate-matching rows exactly.
func (s *Store) searchScan(ctx context.Context, query []float32, k int, filters Filters) ([]Row, error) {
	sel := fmt.Sprintf(`SELECT %s, vector FROM chunks`, rowColumns)
	if pred := filters.wherePredicate(); pred != "" {
		sel += " WHERE " + pred
	}

	rows, err := s.db.QueryContext(ctx, sel)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("scan search rows: %w", err))
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, blob, err := scanRowWithVector(rows)
		if err != nil {
			return nil, err
		}
		vec := decodeVector(blob)
		if len(vec) != len(query) {
			continue
		}
		row.Distance = cosineDistance(query, vec)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("iterate search rows: %w", err))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	if out == nil {
		out = []Row{}
	}
	return out, nil
}

// GetPageText returns the raw text of one page of a document, taken
// from any chunk of that page. A non-empty collection narrows the
// lookup; otherwise any collection matches.
func (s *Store) GetPageText(ctx context.Context, documentName string, pageNumber int, collection string) (string, error) {
	exists, err := s.tableExists(ctx)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errors.NotFound(errors.ErrCodePageNotFound,
			fmt.Sprintf("page %d of document %q not found", pageNumber, documentName))
	}

	sel := `SELECT page_raw_text FROM chunks WHERE document_name = ? AND page_number = ?`
	args := []any{documentName, pageNumber}
	if collection != "" {
		sel += ` AND collection = ?`
		args = append(args, collection)
	}
	sel += ` LIMIT 1`

	var text string
	err = s.db.QueryRowContext(ctx, sel, args...).Scan(&text)
	if err == sql.ErrNoRows {
		return "", errors.NotFound(errors.ErrCodePageNotFound,
			fmt.Sprintf("page %d of document %q not found", pageNumber, documentName))
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("fetch page text: %w", err))
	}
	return text, nil
}

// ListDocuments rolls the chunk table up to one entry per
// (collection, document) pair. An empty collection lists every
// collection; before any insert the result is empty.
func (s *Store) ListDocuments(ctx context.Context, collection string) ([]DocumentInfo, error) {
	exists, err := s.tableExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []DocumentInfo{}, nil
	}

	sel := `
		SELECT collection, document_name,
		       MAX(document_path), MAX(total_pages),
		       COUNT(DISTINCT page_number), COUNT(*),
		       MAX(ingestion_timestamp)
		FROM chunks`
	var args []any
	if collection != "" {
		sel += ` WHERE collection = ?`
		args = append(args, collection)
	}
	sel += ` GROUP BY collection, document_name ORDER BY collection, document_name`

	rows, err := s.db.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("list documents: %w", err))
	}
	defer rows.Close()

	out := []DocumentInfo{}
	for rows.Next() {
		var (
			info     DocumentInfo
			lastText string
		)
		if err := rows.Scan(&info.Collection, &info.DocumentName, &info.DocumentPath,
			&info.TotalPages, &info.PagesIndexed, &info.ChunkCount, &lastText); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("scan document rollup: %w", err))
		}
		if ts, err := time.Parse(timeLayout, lastText); err == nil {
			info.LastIngestedAt = ts
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("iterate document rollups: %w", err))
	}
	return out, nil
}

// CollectionInfo is a per-collection rollup over the chunk table.
type CollectionInfo struct {
	Collection    string
	DocumentCount int
	ChunkCount    int
}

// ListCollections rolls the chunk table up to one entry per
// collection, sorted by name.
func (s *Store) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	exists, err := s.tableExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []CollectionInfo{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, COUNT(DISTINCT document_name), COUNT(*)
		FROM chunks
		GROUP BY collection
		ORDER BY collection`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("list collections: %w", err))
	}
	defer rows.Close()

	out := []CollectionInfo{}
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Collection, &info.DocumentCount, &info.ChunkCount); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("scan collection rollup: %w", err))
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("iterate collection rollups: %w", err))
	}
	return out, nil
}

// Count returns the number of stored chunks matching the filters.
func (s *Store) Count(ctx context.Context, filters Filters) (int, error) {
	exists, err := s.tableExists(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	sel := `SELECT COUNT(*) FROM chunks`
	if pred := filters.wherePredicate(); pred != "" {
		sel += " WHERE " + pred
	}
	var n int
	if err := s.db.QueryRowContext(ctx, sel).Scan(&n); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("count chunks: %w", err))
	}
	return n, nil
}

func scanRow(rows *sql.Rows) (Row, []byte, error) {
	var (
		row    Row
		tsText string
	)
	if err := rows.Scan(&row.ID, &row.Text, &row.DocumentName, &row.DocumentPath,
		&row.Collection, &row.PageNumber, &row.TotalPages, &row.ChunkIndex,
		&row.PageRawText, &tsText); err != nil {
		return Row{}, nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("scan chunk row: %w", err))
	}
	if ts, err := time.Parse(timeLayout, tsText); err == nil {
		row.IngestedAt = ts
	}
	return row, nil, nil
}

func scanRowWithVector(rows *sql.Rows) (Row, []byte, error) {
	var (
		row    Row
		tsText string
		blob   []byte
	)
	if err := rows.Scan(&row.ID, &row.Text, &row.DocumentName, &row.DocumentPath,
		&row.Collection, &row.PageNumber, &row.TotalPages, &row.ChunkIndex,
		&row.PageRawText, &tsText, &blob); err != nil {
		return Row{}, nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("scan chunk row: %w", err))
	}
	if ts, err := time.Parse(timeLayout, tsText); err == nil {
		row.IngestedAt = ts
	}
	return row, blob, nil
}
