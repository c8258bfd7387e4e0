package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with a fresh data directory and
// returns its combined output.
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("QUARRY_DATA_DIR", dataDir)
	t.Setenv("QUARRY_DIMENSION", "32")
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "quarry")
	assert.Contains(t, out, "dev")
}

func TestVersionShort(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestDeleteRequiresFilter(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "delete")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--document or --collection")
}

func TestPageRejectsNonNumericPage(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "page", "doc.txt", "two")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page number")
}

func TestIngestSearchAndListing(t *testing.T) {
	dataDir := t.TempDir()
	doc := filepath.Join(t.TempDir(), "animals.txt")
	require.NoError(t, os.WriteFile(doc,
		[]byte("Whales are marine mammals.\n\nBees pollinate flowers."), 0o644))

	out, err := runCLI(t, dataDir, "ingest", doc, "--collection", "nature")
	require.NoError(t, err)
	assert.Contains(t, out, "animals.txt")
	assert.Contains(t, out, "2 pages")

	out, err = runCLI(t, dataDir, "search", "Bees pollinate flowers.", "--collection", "nature", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Bees pollinate flowers.")

	out, err = runCLI(t, dataDir, "collections")
	require.NoError(t, err)
	assert.Contains(t, out, "nature")

	out, err = runCLI(t, dataDir, "documents", "--collection", "nature")
	require.NoError(t, err)
	assert.Contains(t, out, "animals.txt")

	out, err = runCLI(t, dataDir, "page", "animals.txt", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Bees pollinate flowers.")

	out, err = runCLI(t, dataDir, "delete", "--document", "animals.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 2 chunks")
}

func TestRegisterSyncDeregister(t *testing.T) {
	dataDir := t.TempDir()
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "note.md"),
		[]byte("# Heading\n\nSome note text."), 0o644))

	out, err := runCLI(t, dataDir, "register", docs, "--collection", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "notes")

	out, err = runCLI(t, dataDir, "registrations")
	require.NoError(t, err)
	assert.Contains(t, out, "notes")

	out, err = runCLI(t, dataDir, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "notes: 1 ingested")

	out, err = runCLI(t, dataDir, "sync", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "1 unchanged")

	out, err = runCLI(t, dataDir, "deregister", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "deregistered collection")

	out, err = runCLI(t, dataDir, "collections")
	require.NoError(t, err)
	assert.Contains(t, out, "no collections")
}

func TestSearchJSONFormat(t *testing.T) {
	dataDir := t.TempDir()
	doc := filepath.Join(t.TempDir(), "single.txt")
	require.NoError(t, os.WriteFile(doc, []byte("A single page of text."), 0o644))

	_, err := runCLI(t, dataDir, "ingest", doc)
	require.NoError(t, err)

	out, err := runCLI(t, dataDir, "search", "A single page of text.", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"document_name": "single.txt"`)
	assert.Contains(t, out, `"similarity"`)
}
