package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// WritePDF writes a fixed-layout PDF with one centred page per image.
func WritePDF(w io.Writer, pages []*raster.Image) error {
	if len(pages) == 0 {
		return errors.New("no pages to export")
	}
	readers := make([]io.Reader, 0, len(pages))
	for i, p := range pages {
		var buf bytes.Buffer
		if err := raster.Encode(&buf, p, ".png"); err != nil {
			return fmt.Errorf("encode page %d: %w", i+1, err)
		}
		readers = append(readers, &buf)
	}

	imp := pdfcpu.DefaultImportConfig()
	imp.Scale = 1
	imp.Pos = types.Center
	if err := api.ImportImages(nil, w, readers, imp, nil); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	return nil
}
