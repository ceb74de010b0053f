package testutil

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/stretchr/testify/require"
)

// ScannedPDF writes a PDF with one full-page image per page and returns its path.
func ScannedPDF(t *testing.T, pages ...image.Image) string {
	t.Helper()
	readers := make([]io.Reader, 0, len(pages))
	for _, p := range pages {
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, p))
		readers = append(readers, &buf)
	}
	var out bytes.Buffer
	require.NoError(t, api.ImportImages(nil, &out, readers, pdfcpu.DefaultImportConfig(), nil))

	path := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o600))
	return path
}
