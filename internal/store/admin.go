package store

import (
	"context"
	"fmt"

	"github.com/quarrylabs/quarry/internal/errors"
)

// DeleteDocument removes every chunk of a document and reports how
// many rows went away. Deleting from an empty store, or a document
// that was never ingested, is a no-op returning 0.
func (s *Store) DeleteDocument(ctx context.Context, documentName string) (int, error) {
	return s.deleteWhere(ctx, Filters{DocumentName: documentName})
}

// DeleteCollection removes every chunk in a collection and reports how
// many rows went away.
func (s *Store) DeleteCollection(ctx context.Context, collection string) (int, error) {
	return s.deleteWhere(ctx, Filters{Collection: collection})
}

// Delete removes the rows matching the filters, which may combine
// document and collection. At least one filter must be set.
func (s *Store) Delete(ctx context.Context, filters Filters) (int, error) {
	return s.deleteWhere(ctx, filters)
}

// deleteWhere removes the rows matching the filters. The count is
// total rows before minus total rows after, so concurrent inserts to
// unrelated rows are not miscounted as deletions within the
// transaction.
func (s *Store) deleteWhere(ctx context.Context, filters Filters) (int, error) {
	if filters.empty() {
		return 0, errors.Validation("delete requires a filter")
	}

	exists, err := s.tableExists(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	pred := filters.wherePredicate()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("begin delete: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	var before int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&before); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("count before delete: %w", err))
	}

	// Collect the doomed ids first so the ANN graph can orphan them.
	var ids []int64
	if s.ann != nil {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE `+pred)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("collect delete ids: %w", err))
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("scan delete id: %w", err))
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("iterate delete ids: %w", err))
		}
		rows.Close()
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE `+pred); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("delete chunks: %w", err))
	}

	var after int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&after); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("count after delete: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("commit delete: %w", err))
	}

	if s.ann != nil && len(ids) > 0 {
		s.ann.remove(ids)
	}

	deleted := before - after
	if deleted > 0 {
		s.logger.Info("deleted chunks",
			"count", deleted,
			"document", filters.DocumentName,
			"collection", filters.Collection)
	}
	return deleted, nil
}

// CreateCollectionIndex (re)builds the B-tree index on the collection
// column. A no-op before the first insert.
func (s *Store) CreateCollectionIndex(ctx context.Context) error {
	exists, err := s.tableExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, `DROP INDEX IF EXISTS idx_chunks_collection`); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("drop collection index: %w", err))
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX idx_chunks_collection ON chunks (collection)`); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("create collection index: %w", err))
	}
	s.logger.Debug("rebuilt collection index")
	return nil
}

// Optimize checkpoints the WAL and compacts the database file.
// A no-op before the first insert.
func (s *Store) Optimize(ctx context.Context) error {
	exists, err := s.tableExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("checkpoint wal: %w", err))
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("vacuum store: %w", err))
	}
	s.logger.Debug("optimized chunk database")
	return nil
}
