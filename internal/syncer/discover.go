// Package syncer keeps the chunk store consistent with registered
// directories: it discovers files on disk, diffs them against the
// registry's fingerprints, and drives re-ingestion and deletion so
// repeated runs converge without duplicating or orphaning chunks.
package syncer

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quarrylabs/quarry/internal/errors"
)

// DiscoverFiles recursively finds files under root whose lowercased
// extension is in exts. Hidden files and directories (dot-prefixed,
// which also covers macOS "._" resource forks) are skipped at any
// depth. Returns absolute paths in sorted order so repeated syncs are
// reproducible and diffable.
func DiscoverFiles(root string, exts map[string]struct{}) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Validation(fmt.Sprintf("invalid directory path: %s", root))
	}

	var out []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != abs && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := exts[strings.ToLower(filepath.Ext(name))]; ok {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, fmt.Errorf("walk %s: %w", abs, err))
	}

	sort.Strings(out)
	return out, nil
}
