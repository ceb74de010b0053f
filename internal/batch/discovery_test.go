package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	return path
}

func TestDiscoverImageFiles_EmptyArgs(t *testing.T) {
	files, err := discoverImageFiles(nil, false, nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverImageFiles_Directory(t *testing.T) {
	dir := t.TempDir()
	png := touch(t, filepath.Join(dir, "b.png"))
	jpg := touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "nested", "c.tif"))

	files, err := discoverImageFiles([]string{dir}, false, nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{jpg, png}, files)
}

func TestDiscoverImageFiles_Recursive(t *testing.T) {
	dir := t.TempDir()
	top := touch(t, filepath.Join(dir, "a.png"))
	nested := touch(t, filepath.Join(dir, "nested", "deeper", "c.tif"))

	files, err := discoverImageFiles([]string{dir}, true, nil, nil, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{top, nested}, files)
}

func TestDiscoverImageFiles_Patterns(t *testing.T) {
	dir := t.TempDir()
	scan := touch(t, filepath.Join(dir, "scan_01.png"))
	touch(t, filepath.Join(dir, "scan_02.jpg"))
	touch(t, filepath.Join(dir, "photo.png"))

	files, err := discoverImageFiles([]string{dir}, false, []string{"scan_*"}, []string{"*.jpg"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{scan}, files)
}

func TestDiscoverImageFiles_SkipsProcessedOutputs(t *testing.T) {
	dir := t.TempDir()
	in := touch(t, filepath.Join(dir, "page.png"))
	touch(t, filepath.Join(dir, "page_processed.png"))

	files, err := discoverImageFiles([]string{dir}, false, nil, nil, "_processed")
	require.NoError(t, err)
	assert.Equal(t, []string{in}, files)
}

func TestDiscoverImageFiles_ExplicitFileKeepsAnyExtension(t *testing.T) {
	dir := t.TempDir()
	odd := touch(t, filepath.Join(dir, "scan.dat"))

	files, err := discoverImageFiles([]string{odd}, false, nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{odd}, files)
}

func TestDiscoverImageFiles_MissingPath(t *testing.T) {
	_, err := discoverImageFiles([]string{filepath.Join(t.TempDir(), "nope")}, false, nil, nil, "")
	assert.ErrorContains(t, err, "cannot access")
}
