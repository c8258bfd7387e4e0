package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/errors"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.db")

	r1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, r1.Close())

	r2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, r2.Close())
}

func TestRegisterAndGet(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	dir := t.TempDir()

	reg, err := r.Register(ctx, dir, "notes")
	require.NoError(t, err)
	assert.Equal(t, "notes", reg.Collection)
	assert.True(t, filepath.IsAbs(reg.Directory))
	assert.False(t, reg.RegisteredAt.IsZero())

	got, err := r.GetRegistration(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, reg.Directory, got.Directory)
	assert.WithinDuration(t, reg.RegisteredAt, got.RegisteredAt, time.Second)
}

func TestRegisterMissingDirectory(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Register(context.Background(), filepath.Join(t.TempDir(), "absent"), "notes")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, errors.ErrCodeDirectoryNotFound, errors.GetCode(err))
}

func TestRegisterConflicts(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	dirA := t.TempDir()
	dirB := t.TempDir()

	regA, err := r.Register(ctx, dirA, "notes")
	require.NoError(t, err)

	// Same directory again, even under a new collection name.
	_, err = r.Register(ctx, dirA, "other")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, errors.ErrCodeDuplicateDirectory, errors.GetCode(err))
	assert.Contains(t, err.Error(), "notes")

	// Same collection name for a different directory. The message
	// names the directory already holding the collection.
	_, err = r.Register(ctx, dirB, "notes")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, errors.ErrCodeDuplicateCollection, errors.GetCode(err))
	assert.Contains(t, err.Error(), regA.Directory)
}

func TestRegisterValidatesCollectionName(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Register(ctx, t.TempDir(), "o'clock")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidCollection, errors.GetCode(err))

	_, err = r.Register(ctx, t.TempDir(), "   ")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	// Padded names are stored trimmed.
	reg, err := r.Register(ctx, t.TempDir(), "  math  ")
	require.NoError(t, err)
	assert.Equal(t, "math", reg.Collection)

	got, err := r.GetRegistration(ctx, "math")
	require.NoError(t, err)
	assert.Equal(t, reg.Directory, got.Directory)
}

func TestGetRegistrationNotFound(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.GetRegistration(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, errors.ErrCodeCollectionNotFound, errors.GetCode(err))
}

func TestListRegistrationsOrdered(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Register(ctx, t.TempDir(), "zeta")
	require.NoError(t, err)
	_, err = r.Register(ctx, t.TempDir(), "alpha")
	require.NoError(t, err)

	regs, err := r.ListRegistrations(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "alpha", regs[0].Collection)
	assert.Equal(t, "zeta", regs[1].Collection)
}

func TestDeregisterReturnsTrackedDocuments(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	dir := t.TempDir()

	reg, err := r.Register(ctx, dir, "notes")
	require.NoError(t, err)

	for _, name := range []string{"b.txt", "a.txt"} {
		require.NoError(t, r.UpsertFile(ctx, FileRecord{
			Path:         filepath.Join(reg.Directory, name),
			Collection:   "notes",
			DocumentName: name,
			Mtime:        1700000000.5,
			Size:         42,
			IngestedAt:   time.Now().UTC(),
		}))
	}

	names, err := r.Deregister(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)

	_, err = r.GetRegistration(ctx, "notes")
	assert.True(t, errors.IsNotFound(err))

	files, err := r.ListFiles(ctx, "notes")
	require.NoError(t, err)
	assert.Empty(t, files)

	// The directory and the collection name are free again.
	_, err = r.Register(ctx, dir, "notes")
	require.NoError(t, err)
}

func TestDeregisterUnknownCollection(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Deregister(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestFileRecordLifecycle(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	dir := t.TempDir()

	reg, err := r.Register(ctx, dir, "notes")
	require.NoError(t, err)

	path := filepath.Join(reg.Directory, "doc.txt")
	_, found, err := r.GetFile(ctx, path)
	require.NoError(t, err)
	assert.False(t, found)

	rec := FileRecord{
		Path:         path,
		Collection:   "notes",
		DocumentName: "doc.txt",
		Mtime:        1700000000.25,
		Size:         128,
		IngestedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, r.UpsertFile(ctx, rec))

	got, found, err := r.GetFile(ctx, path)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec.DocumentName, got.DocumentName)
	assert.Equal(t, rec.Mtime, got.Mtime)
	assert.Equal(t, rec.Size, got.Size)
	assert.Equal(t, rec.IngestedAt, got.IngestedAt)

	// Upsert replaces in place.
	rec.Size = 256
	require.NoError(t, r.UpsertFile(ctx, rec))
	got, _, err = r.GetFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(256), got.Size)

	require.NoError(t, r.DeleteFile(ctx, path))
	_, found, err = r.GetFile(ctx, path)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting again is a no-op.
	require.NoError(t, r.DeleteFile(ctx, path))
}

func TestListFilesOrderedByPath(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	reg, err := r.Register(ctx, t.TempDir(), "notes")
	require.NoError(t, err)

	for _, name := range []string{"z.txt", "a.txt", "m.txt"} {
		require.NoError(t, r.UpsertFile(ctx, FileRecord{
			Path:         filepath.Join(reg.Directory, name),
			Collection:   "notes",
			DocumentName: name,
			Mtime:        1,
			Size:         1,
			IngestedAt:   time.Now().UTC(),
		}))
	}

	files, err := r.ListFiles(ctx, "notes")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.txt", files[0].DocumentName)
	assert.Equal(t, "m.txt", files[1].DocumentName)
	assert.Equal(t, "z.txt", files[2].DocumentName)
}

func TestDeriveUniqueCollection(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	parent := t.TempDir()
	dirA := filepath.Join(parent, "docs")
	require.NoError(t, os.Mkdir(dirA, 0o755))

	name, err := r.DeriveUniqueCollection(ctx, dirA)
	require.NoError(t, err)
	assert.Equal(t, "docs", name)

	// Take the leaf name with another directory.
	other := filepath.Join(t.TempDir(), "docs")
	require.NoError(t, os.Mkdir(other, 0o755))
	_, err = r.Register(ctx, other, "docs")
	require.NoError(t, err)

	name, err = r.DeriveUniqueCollection(ctx, dirA)
	require.NoError(t, err)
	assert.Equal(t, "docs-"+filepath.Base(parent), name)

	// Take the leaf-parent name too; the hashed form is the fallback.
	_, err = r.Register(ctx, dirA, name)
	require.NoError(t, err)

	sibling := filepath.Join(parent, "inner", "docs")
	require.NoError(t, os.MkdirAll(sibling, 0o755))
	derived, err := r.DeriveUniqueCollection(ctx, sibling)
	require.NoError(t, err)
	assert.Equal(t, "docs", derived[:4])

	// Derivation is deterministic.
	again, err := r.DeriveUniqueCollection(ctx, sibling)
	require.NoError(t, err)
	assert.Equal(t, derived, again)
}
