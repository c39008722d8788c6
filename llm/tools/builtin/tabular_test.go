package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSummarizeCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "prices.csv", "symbol,price\nAAPL,175.2\nMSFT,415.5\nGOOGL,140.1\nAMZN,178.3\nTSLA,245.7\n")

	got, err := SummarizeCSV(path, CSVSampleRows)
	require.NoError(t, err)
	assert.Equal(t, "Columns: symbol, price\nRows: 5\nFirst 3 rows:\nAAPL, 175.2\nMSFT, 415.5\nGOOGL, 140.1", got)
}

func TestSummarizeCSV_ShortAndRagged(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ragged.csv", "\ufeffa,b,c\n1,2\n\"x \"\"y\"\" z\",3,4,5\n")

	got, err := SummarizeCSV(path, CSVSampleRows)
	require.NoError(t, err)
	assert.Equal(t, "Columns: a, b, c\nRows: 2\nFirst 2 rows:\n1, 2\nx \"y\" z, 3, 4, 5", got)
}

func TestSummarizeCSV_HeaderOnly(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty_rows.csv", "date,close\n")

	got, err := SummarizeCSV(path, CSVSampleRows)
	require.NoError(t, err)
	assert.Equal(t, "Columns: date, close\nRows: 0\nFirst 0 rows:", got)
}

func TestSummarizeCSV_EmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.csv", "")

	_, err := SummarizeCSV(path, CSVSampleRows)
	assert.EqualError(t, err, "file is empty")
}

func TestCSVTool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data.csv", "a,b\n1,2\n")
	spec := NewCSVTool(FileConfig{UploadDir: dir})
	ctx := context.Background()

	assert.Equal(t, "CSV Summary", spec.Name)
	assert.Equal(t, "Columns: a, b\nRows: 1\nFirst 1 rows:\n1, 2", spec.Handler(ctx, "data.csv"))
	assert.Equal(t, "Columns: a, b\nRows: 1\nFirst 1 rows:\n1, 2", spec.Handler(ctx, "'"+filepath.Join(dir, "data.csv")+"'"))

	missing := spec.Handler(ctx, "/definitely/not/here.csv")
	assert.Contains(t, missing, "Error")
	assert.Contains(t, missing, "Error reading CSV: ")

	assert.Equal(t, "Error reading CSV: no file path given", spec.Handler(ctx, "  "))
}

func TestFileConfig_RestrictToUploadDir(t *testing.T) {
	root := t.TempDir()
	uploads := filepath.Join(root, "uploads")
	require.NoError(t, os.Mkdir(uploads, 0o700))
	writeFile(t, uploads, "ok.csv", "a\n1\n")
	outside := writeFile(t, root, "secret.csv", "a\n1\n")

	cfg := FileConfig{UploadDir: uploads, RestrictToUploadDir: true}

	_, err := cfg.resolve("ok.csv")
	require.NoError(t, err)

	for _, arg := range []string{outside, "../secret.csv", "sub/../../secret.csv"} {
		_, err := cfg.resolve(arg)
		require.Error(t, err, arg)
		assert.Contains(t, err.Error(), "outside the upload directory")
	}

	spec := NewCSVTool(cfg)
	got := spec.Handler(context.Background(), "../secret.csv")
	assert.Contains(t, got, "Error reading CSV: path ")
	assert.Contains(t, got, "is outside the upload directory")

	// Without the restriction the same path is readable.
	open := NewCSVTool(FileConfig{UploadDir: uploads})
	assert.Contains(t, open.Handler(context.Background(), "../secret.csv"), "Columns: a")
}

func TestFileConfig_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	uploads := filepath.Join(root, "uploads")
	require.NoError(t, os.Mkdir(uploads, 0o700))
	outside := writeFile(t, root, "secret.csv", "a\n1\n")
	if err := os.Symlink(outside, filepath.Join(uploads, "link.csv")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := FileConfig{UploadDir: uploads, RestrictToUploadDir: true}.resolve("link.csv")
	assert.Error(t, err)
}
