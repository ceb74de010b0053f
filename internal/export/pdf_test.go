package export

import (
	"bytes"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/testutil"
)

func TestWritePDFOnePagePerImage(t *testing.T) {
	pages := []*raster.Image{
		testutil.Uniform(60, 80, 1, 255),
		raster.FromImage(testutil.BarsPage(80, 60, 3)),
	}
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, pages))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	n, err := api.PageCount(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWritePDFRejectsEmptyInput(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WritePDF(&buf, nil))
	assert.Error(t, WritePDF(&buf, []*raster.Image{{Width: 1, Height: 1, Channels: 1}}))
}
