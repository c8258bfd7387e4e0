// Package registry tracks which directories are registered for sync
// and which file versions have been ingested. It is a fingerprint
// store, not a source of truth for chunk content: the answer it gives
// is "have I seen this exact file version before".
//
// Two tables in one SQLite file: directories (one row per registered
// directory, collection names unique) and files (one row per ingested
// file, keyed by absolute path, referencing its collection).
package registry

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quarrylabs/quarry/internal/collection"
	"github.com/quarrylabs/quarry/internal/errors"
)

const timeLayout = time.RFC3339Nano

// Registration is one registered directory and its collection.
type Registration struct {
	Directory    string
	Collection   string
	RegisteredAt time.Time
}

// FileRecord fingerprints one ingested file. Mtime is the filesystem
// modification time in fractional seconds since the epoch; together
// with Size it decides whether a file needs re-ingestion.
type FileRecord struct {
	Path         string
	Collection   string
	DocumentName string
	Mtime        float64
	Size         int64
	IngestedAt   time.Time
}

// Registry is the embedded registration and fingerprint database.
type Registry struct {
	db *sql.DB
}

// Open opens (or creates) the registry database at path. Parent
// directories are created, WAL mode is enabled for concurrent-reader
// safety, foreign keys are enforced, and the schema is initialized if
// absent. Idempotent.
func Open(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("create registry directory: %w", err))
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("open registry: %w", err))
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS directories (
			directory     TEXT PRIMARY KEY,
			collection    TEXT NOT NULL UNIQUE,
			registered_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS files (
			path          TEXT PRIMARY KEY,
			collection    TEXT NOT NULL,
			document_name TEXT NOT NULL,
			mtime         REAL NOT NULL,
			size          INTEGER NOT NULL,
			ingested_at   TEXT NOT NULL,
			FOREIGN KEY (collection) REFERENCES directories(collection)
		);
		CREATE INDEX IF NOT EXISTS idx_files_collection_path
			ON files(collection, path);
	`); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("init registry schema: %w", err))
	}

	return &Registry{db: db}, nil
}

// Close releases the underlying database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Register records a directory for incremental sync under the given
// collection name. The directory must exist; its path is resolved to
// an absolute, symlink-free form before storage, and the collection
// name is trimmed and validated. Registering the same directory
// twice, or reusing a collection name for a different directory,
// fails with a conflict that names which collision occurred.
func (r *Registry) Register(ctx context.Context, directory, coll string) (Registration, error) {
	coll, err := collection.ValidateName(coll)
	if err != nil {
		return Registration{}, err
	}
	resolved, err := resolveDir(directory)
	if err != nil {
		return Registration{}, err
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO directories (directory, collection, registered_at) VALUES (?, ?, ?)`,
		resolved, coll, now.Format(timeLayout))
	if err != nil {
		return Registration{}, r.registerConflict(ctx, resolved, coll, err)
	}

	return Registration{Directory: resolved, Collection: coll, RegisteredAt: now}, nil
}

// registerConflict turns a unique-constraint failure into a conflict
// error that says whether the directory or the collection collided.
func (r *Registry) registerConflict(ctx context.Context, resolved, collection string, cause error) error {
	if !strings.Contains(cause.Error(), "UNIQUE") && !strings.Contains(cause.Error(), "constraint") {
		return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("register directory: %w", cause))
	}

	var existingDir, existingCollection string
	err := r.db.QueryRowContext(ctx,
		`SELECT directory, collection FROM directories WHERE directory = ? OR collection = ?`,
		resolved, collection).Scan(&existingDir, &existingCollection)
	if err == nil && existingDir == resolved {
		return errors.Conflict(errors.ErrCodeDuplicateDirectory,
			fmt.Sprintf("directory already registered: %s (collection %q)", resolved, existingCollection))
	}
	if existingDir == "" {
		return errors.Conflict(errors.ErrCodeDuplicateCollection,
			fmt.Sprintf("collection %q already in use", collection))
	}
	return errors.Conflict(errors.ErrCodeDuplicateCollection,
		fmt.Sprintf("collection %q already in use for directory %s", collection, existingDir))
}

// Deregister removes a registration and every file record under it.
// It returns the document names that were tracked so the caller can
// delete the corresponding chunks from the vector store; this method
// never touches the vector store itself.
func (r *Registry) Deregister(ctx context.Context, collection string) ([]string, error) {
	if _, err := r.GetRegistration(ctx, collection); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT document_name FROM files WHERE collection = ? ORDER BY document_name`,
		collection)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("list tracked documents: %w", err))
	}
	defer rows.Close()

	documentNames := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("scan document name: %w", err))
		}
		documentNames = append(documentNames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("iterate document names: %w", err))
	}

	// Files first: their foreign key references the directory row.
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE collection = ?`, collection); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("delete file records: %w", err))
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM directories WHERE collection = ?`, collection); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("delete registration: %w", err))
	}
	return documentNames, nil
}

// GetRegistration looks up a registration by collection name.
func (r *Registry) GetRegistration(ctx context.Context, collection string) (Registration, error) {
	var (
		reg    Registration
		tsText string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT directory, collection, registered_at FROM directories WHERE collection = ?`,
		collection).Scan(&reg.Directory, &reg.Collection, &tsText)
	if err == sql.ErrNoRows {
		return Registration{}, errors.NotFound(errors.ErrCodeCollectionNotFound,
			fmt.Sprintf("collection %q is not registered", collection))
	}
	if err != nil {
		return Registration{}, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("get registration: %w", err))
	}
	if ts, err := time.Parse(timeLayout, tsText); err == nil {
		reg.RegisteredAt = ts
	}
	return reg, nil
}

// ListRegistrations returns every registered directory, ordered by
// collection name.
func (r *Registry) ListRegistrations(ctx context.Context) ([]Registration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT directory, collection, registered_at FROM directories ORDER BY collection`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("list registrations: %w", err))
	}
	defer rows.Close()

	out := []Registration{}
	for rows.Next() {
		var (
			reg    Registration
			tsText string
		)
		if err := rows.Scan(&reg.Directory, &reg.Collection, &tsText); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("scan registration: %w", err))
		}
		if ts, err := time.Parse(timeLayout, tsText); err == nil {
			reg.RegisteredAt = ts
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("iterate registrations: %w", err))
	}
	return out, nil
}

// GetFile looks up a file record by absolute path. A missing record is
// reported as found=false, not as an error: an unknown file is the
// normal state before first ingestion.
func (r *Registry) GetFile(ctx context.Context, path string) (FileRecord, bool, error) {
	rec, err := scanFileRow(r.db.QueryRowContext(ctx,
		`SELECT path, collection, document_name, mtime, size, ingested_at FROM files WHERE path = ?`,
		path))
	if err == sql.ErrNoRows {
		return FileRecord{}, false, nil
	}
	if err != nil {
		return FileRecord{}, false, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("get file record: %w", err))
	}
	return rec, true, nil
}

// UpsertFile inserts or replaces a file record, keyed on path.
func (r *Registry) UpsertFile(ctx context.Context, rec FileRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO files
			(path, collection, document_name, mtime, size, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Path, rec.Collection, rec.DocumentName, rec.Mtime, rec.Size,
		rec.IngestedAt.UTC().Format(timeLayout))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("upsert file record: %w", err))
	}
	return nil
}

// ListFiles returns every file record for a collection, ordered by
// path.
func (r *Registry) ListFiles(ctx context.Context, collection string) ([]FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT path, collection, document_name, mtime, size, ingested_at
		FROM files WHERE collection = ? ORDER BY path
	`, collection)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("list file records: %w", err))
	}
	defer rows.Close()

	out := []FileRecord{}
	for rows.Next() {
		rec, err := scanFileRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("iterate file records: %w", err))
	}
	return out, nil
}

// DeleteFile removes a single file record by path. Deleting an
// unknown path is a no-op.
func (r *Registry) DeleteFile(ctx context.Context, path string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("delete file record: %w", err))
	}
	return nil
}

// DeriveUniqueCollection picks a collection name for auto-registering
// a directory: the directory's leaf name; on collision the leaf plus
// the parent's leaf; on a second collision the leaf plus an 8-character
// stable hash of the resolved absolute path. Deterministic, and the
// hash step always terminates the search.
func (r *Registry) DeriveUniqueCollection(ctx context.Context, directory string) (string, error) {
	resolved, err := resolveDir(directory)
	if err != nil {
		return "", err
	}

	leaf := filepath.Base(resolved)
	candidates := []string{
		leaf,
		leaf + "-" + filepath.Base(filepath.Dir(resolved)),
		leaf + "-" + pathHash(resolved),
	}
	for _, name := range candidates {
		taken, err := r.collectionTaken(ctx, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
	return "", errors.Conflict(errors.ErrCodeDuplicateCollection,
		fmt.Sprintf("could not derive a unique collection name for %s", resolved))
}

func (r *Registry) collectionTaken(ctx context.Context, collection string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM directories WHERE collection = ?`, collection).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("check collection name: %w", err))
	}
	return true, nil
}

func pathHash(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:8]
}

// resolveDir resolves a directory path to absolute, symlink-free form
// and verifies it exists and is a directory.
func resolveDir(directory string) (string, error) {
	abs, err := filepath.Abs(directory)
	if err != nil {
		return "", errors.Validation(fmt.Sprintf("invalid directory path: %s", directory))
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFound(errors.ErrCodeDirectoryNotFound,
				fmt.Sprintf("directory not found: %s", abs))
		}
		return "", errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("resolve directory: %w", err))
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", errors.NotFound(errors.ErrCodeDirectoryNotFound,
			fmt.Sprintf("directory not found: %s", resolved))
	}
	return resolved, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileRow(row rowScanner) (FileRecord, error) {
	var (
		rec    FileRecord
		tsText string
	)
	if err := row.Scan(&rec.Path, &rec.Collection, &rec.DocumentName,
		&rec.Mtime, &rec.Size, &tsText); err != nil {
		return FileRecord{}, err
	}
	if ts, err := time.Parse(timeLayout, tsText); err == nil {
		rec.IngestedAt = ts
	}
	return rec, nil
}

func scanFileRows(rows *sql.Rows) (FileRecord, error) {
	rec, err := scanFileRow(rows)
	if err != nil {
		return FileRecord{}, errors.Wrap(errors.ErrCodeStoreFailed, fmt.Errorf("scan file record: %w", err))
	}
	return rec, nil
}
