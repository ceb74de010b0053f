package pdf

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/testutil"
)

func TestExtractRendererWritesPageImages(t *testing.T) {
	path := testutil.ScannedPDF(t, testutil.BarsPage(120, 160, 3), testutil.BarsPage(80, 60, 2))
	outDir := filepath.Join(t.TempDir(), "pages")

	paths, err := ExtractRenderer{}.Render(context.Background(), path, outDir, "png", 0, nil)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(outDir, "page_1.png"),
		filepath.Join(outDir, "page_2.png"),
	}, paths)

	first, err := raster.Load(paths[0])
	require.NoError(t, err)
	assert.Equal(t, 120, first.Width)
	assert.Equal(t, 160, first.Height)

	second, err := raster.Load(paths[1])
	require.NoError(t, err)
	assert.Equal(t, 80, second.Width)
}

func TestExtractRendererPageSelection(t *testing.T) {
	path := testutil.ScannedPDF(t, testutil.BarsPage(40, 40, 1), testutil.BarsPage(50, 50, 1), testutil.BarsPage(60, 60, 1))
	outDir := t.TempDir()

	paths, err := ExtractRenderer{}.Render(context.Background(), path, outDir, "jpg", 0, []int{3})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(outDir, "page_3.jpg")}, paths)

	_, err = ExtractRenderer{}.Render(context.Background(), path, outDir, "png", 0, []int{9})
	assert.ErrorIs(t, err, raster.ErrInvalidArgument)
}

func TestFitzRendererRendersEveryPage(t *testing.T) {
	path := testutil.ScannedPDF(t, testutil.BarsPage(100, 100, 2), testutil.BarsPage(100, 100, 2))
	outDir := t.TempDir()

	paths, err := FitzRenderer{}.Render(context.Background(), path, outDir, "png", 36, nil)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		img, err := raster.Load(p)
		require.NoError(t, err)
		assert.Positive(t, img.Width)
	}
}

func TestRenderRejectsBadArguments(t *testing.T) {
	path := testutil.ScannedPDF(t, testutil.BarsPage(20, 20, 1))
	for _, r := range []Renderer{FitzRenderer{}, ExtractRenderer{}, Fallback{FitzRenderer{}, ExtractRenderer{}}} {
		_, err := r.Render(context.Background(), path, t.TempDir(), "webp", 0, nil)
		assert.ErrorIs(t, err, raster.ErrInvalidArgument)
		_, err = r.Render(context.Background(), path, t.TempDir(), "gif", 0, nil)
		assert.ErrorIs(t, err, raster.ErrInvalidArgument)
		_, err = r.Render(context.Background(), path, t.TempDir(), "png", -5, nil)
		assert.ErrorIs(t, err, raster.ErrInvalidArgument)
	}
}

func TestIsPageFormat(t *testing.T) {
	for _, f := range []string{"png", ".PNG", "jpeg", "tif"} {
		assert.True(t, IsPageFormat(f), f)
	}
	for _, f := range []string{"", "gif", "webp"} {
		assert.False(t, IsPageFormat(f), f)
	}
}

func TestRenderCancelled(t *testing.T) {
	path := testutil.ScannedPDF(t, testutil.BarsPage(20, 20, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ExtractRenderer{}.Render(ctx, path, t.TempDir(), "png", 0, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallbackUsesNextRenderer(t *testing.T) {
	path := testutil.ScannedPDF(t, testutil.BarsPage(30, 30, 1))
	r := Fallback{failingRenderer{}, ExtractRenderer{}}
	paths, err := r.Render(context.Background(), path, t.TempDir(), "png", 0, nil)
	require.NoError(t, err)
	assert.Len(t, paths, 1)

	_, err = Fallback{failingRenderer{}}.Render(context.Background(), path, t.TempDir(), "png", 0, nil)
	assert.ErrorIs(t, err, assert.AnError)
}

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, string, string, string, float64, []int) ([]string, error) {
	return nil, assert.AnError
}

func TestNewRenderer(t *testing.T) {
	for name, want := range map[string]Renderer{
		"":       Fallback{FitzRenderer{}, ExtractRenderer{}},
		"auto":   Fallback{FitzRenderer{}, ExtractRenderer{}},
		"fitz":   FitzRenderer{},
		"pdfcpu": ExtractRenderer{},
	} {
		got, err := NewRenderer(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}
	_, err := NewRenderer("ghostscript")
	assert.ErrorIs(t, err, raster.ErrInvalidArgument)
}

func TestUnlock(t *testing.T) {
	plain := testutil.ScannedPDF(t, testutil.BarsPage(20, 20, 1))

	path, cleanup, err := Unlock(plain, "")
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, plain, path)

	locked := filepath.Join(t.TempDir(), "locked.pdf")
	require.NoError(t, api.EncryptFile(plain, locked, model.NewAESConfiguration("secret", "secret", 256)))

	encrypted, err := IsEncrypted(locked)
	require.NoError(t, err)
	assert.True(t, encrypted)

	_, _, err = Unlock(locked, "")
	assert.ErrorContains(t, err, "password protected")

	opened, cleanupLocked, err := Unlock(locked, "secret")
	require.NoError(t, err)
	defer cleanupLocked()
	encrypted, err = IsEncrypted(opened)
	require.NoError(t, err)
	assert.False(t, encrypted)
}
