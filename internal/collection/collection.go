// Package collection validates and derives collection names.
//
// A collection is a logical namespace partitioning documents, chunks,
// and file records. Names are interpolated into store predicates, so a
// single quote in a name would break predicate construction — names
// containing one are rejected outright rather than escaped.
package collection

import (
	"path/filepath"
	"strings"

	"github.com/quarrylabs/quarry/internal/errors"
)

// ValidateName validates and normalizes a collection name.
// Strips whitespace; rejects empty names and names containing single
// quotes.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New(errors.ErrCodeInvalidCollection, "collection name must not be empty", nil)
	}
	if strings.Contains(name, "'") {
		return "", errors.Newf(errors.ErrCodeInvalidCollection,
			"collection name must not contain single quotes: %q", name)
	}
	return name, nil
}

// Derive returns the collection name for a document path: the explicit
// override when given, otherwise the leaf name of the file's parent
// directory. The result is validated either way.
func Derive(filePath, explicit string) (string, error) {
	if explicit != "" {
		return ValidateName(explicit)
	}
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err)
	}
	return ValidateName(filepath.Base(filepath.Dir(abs)))
}
