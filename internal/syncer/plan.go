package syncer

import (
	"context"
	"fmt"
	"os"

	"github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/registry"
)

// Plan is the computed diff between disk and registry for one
// collection.
type Plan struct {
	// ToIngest are absolute paths that are new or whose mtime or size
	// no longer matches their registry fingerprint.
	ToIngest []string

	// ToDelete are document names of files that were ingested before
	// but are gone from disk.
	ToDelete []string

	// Unchanged counts files whose fingerprints still match. Purely
	// informational.
	Unchanged int
}

// ComputePlan diffs the files under directory against the registry's
// fingerprints for the collection. A file needs ingestion if it has no
// record or if either its mtime or its size differs; content is never
// read. Records whose path no longer exists on disk are queued for
// deletion by document name.
func ComputePlan(ctx context.Context, directory, collection string, reg *registry.Registry, exts map[string]struct{}) (Plan, error) {
	diskFiles, err := DiscoverFiles(directory, exts)
	if err != nil {
		return Plan{}, err
	}
	onDisk := make(map[string]struct{}, len(diskFiles))
	for _, p := range diskFiles {
		onDisk[p] = struct{}{}
	}

	records, err := reg.ListFiles(ctx, collection)
	if err != nil {
		return Plan{}, err
	}
	known := make(map[string]registry.FileRecord, len(records))
	for _, rec := range records {
		known[rec.Path] = rec
	}

	var plan Plan
	for _, path := range diskFiles {
		info, err := os.Stat(path)
		if err != nil {
			return Plan{}, errors.Wrap(errors.ErrCodeInternal, fmt.Errorf("stat %s: %w", path, err))
		}
		rec, ok := known[path]
		if !ok || rec.Mtime != fileMtime(info) || rec.Size != info.Size() {
			plan.ToIngest = append(plan.ToIngest, path)
		} else {
			plan.Unchanged++
		}
	}

	for _, rec := range records {
		if _, ok := onDisk[rec.Path]; !ok {
			plan.ToDelete = append(plan.ToDelete, rec.DocumentName)
		}
	}
	return plan, nil
}

// fileMtime is the modification time in fractional seconds since the
// epoch, matching how the registry stores it.
func fileMtime(info os.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / 1e9
}
