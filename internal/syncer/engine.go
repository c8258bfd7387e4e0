package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/registry"
	"github.com/quarrylabs/quarry/internal/store"
)

// Ingestor re-ingests one file. The pipeline implements it; tests
// stub it. Implementations must overwrite any chunks from a previous
// version of the document.
type Ingestor interface {
	Ingest(ctx context.Context, path, collection, documentName string) error
}

// FileError is one per-file failure inside an otherwise successful
// sync.
type FileError struct {
	Path    string
	Message string
}

// Result reports one collection's sync outcome. Failed files never
// abort the run; they are counted and listed so callers can surface
// partial success.
type Result struct {
	Collection string
	Ingested   int
	Deleted    int
	Skipped    int
	Failed     int
	Errors     []FileError
}

// Engine drives sync runs. It composes the registry (fingerprints),
// the store (chunk rows), and an external ingestor (extraction,
// chunking, embedding).
type Engine struct {
	Registry   *registry.Registry
	Store      *store.Store
	Ingestor   Ingestor
	Logger     *slog.Logger
	Extensions map[string]struct{}

	// LockPath guards SyncAll against concurrent runs from other
	// processes. Empty disables locking.
	LockPath string
}

// Sync reconciles one registered collection with its directory.
// Per-file ingestion and deletion failures are recorded and the run
// continues; only registry or store failures abort.
func (e *Engine) Sync(ctx context.Context, collection string) (Result, error) {
	reg, err := e.Registry.GetRegistration(ctx, collection)
	if err != nil {
		return Result{}, err
	}

	plan, err := ComputePlan(ctx, reg.Directory, collection, e.Registry, e.Extensions)
	if err != nil {
		return Result{}, err
	}
	e.logger().Info("computed sync plan",
		slog.String("collection", collection),
		slog.Int("to_ingest", len(plan.ToIngest)),
		slog.Int("to_delete", len(plan.ToDelete)),
		slog.Int("unchanged", plan.Unchanged))

	result := Result{Collection: collection, Skipped: plan.Unchanged}

	for _, path := range plan.ToIngest {
		docName, err := filepath.Rel(reg.Directory, path)
		if err != nil {
			docName = filepath.Base(path)
		}

		if err := e.Ingestor.Ingest(ctx, path, collection, docName); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, FileError{Path: path, Message: err.Error()})
			e.logger().Warn("sync ingest failed",
				slog.String("collection", collection),
				slog.String("document", docName),
				slog.String("error", err.Error()))
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			// Deleted between ingest and stat; the next run will
			// reconcile it.
			result.Failed++
			result.Errors = append(result.Errors, FileError{Path: path, Message: err.Error()})
			continue
		}
		if err := e.Registry.UpsertFile(ctx, registry.FileRecord{
			Path:         path,
			Collection:   collection,
			DocumentName: docName,
			Mtime:        fileMtime(info),
			Size:         info.Size(),
			IngestedAt:   time.Now().UTC(),
		}); err != nil {
			return Result{}, err
		}
		result.Ingested++
		e.logger().Info("sync ingested",
			slog.String("collection", collection),
			slog.String("document", docName))
	}

	if len(plan.ToDelete) > 0 {
		records, err := e.Registry.ListFiles(ctx, collection)
		if err != nil {
			return Result{}, err
		}
		byDocName := make(map[string][]registry.FileRecord)
		for _, rec := range records {
			byDocName[rec.DocumentName] = append(byDocName[rec.DocumentName], rec)
		}

		for _, docName := range plan.ToDelete {
			if _, err := e.Store.Delete(ctx, store.Filters{
				DocumentName: docName,
				Collection:   collection,
			}); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, FileError{Path: docName, Message: err.Error()})
				continue
			}
			for _, rec := range byDocName[docName] {
				if err := e.Registry.DeleteFile(ctx, rec.Path); err != nil {
					return Result{}, err
				}
			}
			result.Deleted++
			e.logger().Info("sync deleted",
				slog.String("collection", collection),
				slog.String("document", docName))
		}
	}

	return result, nil
}

// SyncAll syncs every registered collection, then rebuilds the
// collection index and compacts the store. A file lock serializes
// concurrent runs across processes; a held lock fails fast instead of
// queueing.
func (e *Engine) SyncAll(ctx context.Context) (map[string]Result, error) {
	if e.LockPath != "" {
		lock := flock.New(e.LockPath)
		locked, err := lock.TryLock()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, fmt.Errorf("acquire sync lock: %w", err))
		}
		if !locked {
			return nil, errors.Conflict(errors.ErrCodeSyncBusy,
				"another sync is already running")
		}
		defer func() { _ = lock.Unlock() }()
	}

	registrations, err := e.Registry.ListRegistrations(ctx)
	if err != nil {
		return nil, err
	}

	results := make(map[string]Result, len(registrations))
	for _, reg := range registrations {
		res, err := e.Sync(ctx, reg.Collection)
		if err != nil {
			return nil, err
		}
		results[reg.Collection] = res
	}

	if err := e.Store.CreateCollectionIndex(ctx); err != nil {
		return nil, err
	}
	if err := e.Store.Optimize(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
