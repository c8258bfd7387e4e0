package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/coder/hnsw"

	"github.com/quarrylabs/quarry/internal/errors"
)

// annIndex is an in-memory HNSW graph over the chunk rows, keyed by
// row id. It accelerates unfiltered searches; filtered searches bypass
// it entirely. The graph is rebuilt lazily from the database on the
// first search after Open, then kept current by Insert and the delete
// operations.
//
// Deletion is lazy: removed ids stay in the graph as orphans and are
// filtered out of results. Deleting nodes from coder/hnsw can corrupt
// the graph when the last node goes, so orphaning is the safe path.
type annIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[int64]
	live   map[int64]struct{}
	dim    int
	loaded bool
}

func newANNIndex(dim int) *annIndex {
	graph := hnsw.NewGraph[int64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 36
	graph.Ml = 0.25

	return &annIndex{
		graph: graph,
		live:  make(map[int64]struct{}),
		dim:   dim,
	}
}

// ensureLoaded backfills the graph from rows persisted before this
// process started. Runs at most once; inserts that happened in this
// process are already in the graph and are skipped via the live set.
func (a *annIndex) ensureLoaded(ctx context.Context, db *sql.DB) error {
	a.mu.RLock()
	loaded := a.loaded
	a.mu.RUnlock()
	if loaded {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded {
		return nil
	}

	rows, err := db.QueryContext(ctx, `SELECT id, vector FROM chunks`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("load vectors: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("scan vector row: %w", err))
		}
		if _, ok := a.live[id]; ok {
			continue
		}
		vec := decodeVector(blob)
		if len(vec) != a.dim {
			continue
		}
		a.graph.Add(hnsw.MakeNode(id, normalizeVector(vec)))
		a.live[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("iterate vector rows: %w", err))
	}

	a.loaded = true
	return nil
}

// add registers freshly inserted rows. Vectors are copied and
// normalized before entering the graph.
func (a *annIndex) add(ids []int64, vectors [][]float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, id := range ids {
		a.graph.Add(hnsw.MakeNode(id, normalizeVector(vectors[i])))
		a.live[id] = struct{}{}
	}
}

// remove orphans the given ids. Their nodes stay in the graph but stop
// appearing in search results.
func (a *annIndex) remove(ids []int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range ids {
		delete(a.live, id)
	}
}

// search returns up to k live row ids ordered by ascending cosine
// distance to the query, together with the distances. The query must
// already be normalized.
func (a *annIndex) search(query []float32, k int) ([]int64, []float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.live) == 0 {
		return nil, nil
	}

	// Overfetch by the orphan count so lazy-deleted nodes cannot
	// crowd live results out of the top k.
	orphans := a.graph.Len() - len(a.live)
	nodes := a.graph.Search(query, k+orphans)

	ids := make([]int64, 0, k)
	dists := make([]float64, 0, k)
	for _, node := range nodes {
		if _, ok := a.live[node.Key]; !ok {
			continue
		}
		ids = append(ids, node.Key)
		dists = append(dists, float64(a.graph.Distance(query, node.Value)))
		if len(ids) == k {
			break
		}
	}
	return ids, dists
}
