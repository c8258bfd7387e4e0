package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quarrylabs/quarry/internal/errors"
)

// Watcher re-syncs registered directories when their contents change.
// Filesystem events are debounced so an editor save burst or a bulk
// copy triggers one sync, not one per event.
type Watcher struct {
	Engine   *Engine
	Debounce time.Duration
	Logger   *slog.Logger

	// OnSync, when set, observes each completed sync.
	OnSync func(map[string]Result)
}

// Watch blocks until ctx is canceled, running a full sync whenever
// the watched trees settle after a change. Every registered directory
// and its subdirectories are watched; directories created while
// watching are picked up from their create events.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, fmt.Errorf("create watcher: %w", err))
	}
	defer fsw.Close()

	registrations, err := w.Engine.Registry.ListRegistrations(ctx)
	if err != nil {
		return err
	}
	for _, reg := range registrations {
		if err := addRecursive(fsw, reg.Directory); err != nil {
			return err
		}
		w.logger().Info("watching directory",
			slog.String("collection", reg.Collection),
			slog.String("directory", reg.Directory))
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			// New directories must be added while the burst is still
			// in flight, or files created inside them are missed.
			if event.Op.Has(fsnotify.Create) {
				_ = addRecursive(fsw, event.Name)
			}
			timer.Reset(debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger().Warn("watch error", slog.String("error", err.Error()))

		case <-timer.C:
			results, err := w.Engine.SyncAll(ctx)
			if err != nil {
				if errors.IsConflict(err) {
					// Another process holds the sync lock; try again
					// after the next change.
					w.logger().Warn("sync skipped", slog.String("error", err.Error()))
					continue
				}
				return err
			}
			for coll, res := range results {
				w.logger().Info("watch sync finished",
					slog.String("collection", coll),
					slog.Int("ingested", res.Ingested),
					slog.Int("deleted", res.Deleted),
					slog.Int("skipped", res.Skipped),
					slog.Int("failed", res.Failed))
			}
			if w.OnSync != nil {
				w.OnSync(results)
			}
		}
	}
}

// addRecursive watches path and every non-hidden directory below it.
// Non-directory paths are ignored.
func addRecursive(fsw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Raced with a delete; nothing to watch.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, fmt.Errorf("watch %s: %w", p, err))
		}
		return nil
	})
}

func (w *Watcher) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
