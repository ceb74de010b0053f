package support

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/testutil"
)

// aScannedImage writes a synthetic page with dark bars.
func (testCtx *TestContext) aScannedImage(name string, width, height int) error {
	path := testCtx.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return raster.Save(raster.FromImage(testutil.BarsPage(width, height, 3)), path)
}

func (testCtx *TestContext) aCorruptImage(name string) error {
	path := testCtx.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("this is not an image"), 0o600)
}

func (testCtx *TestContext) anEmptyDirectory(name string) error {
	return os.MkdirAll(testCtx.path(name), 0o750)
}

// aScannedPDF writes a PDF whose pages are full-page images of
// decreasing width.
func (testCtx *TestContext) aScannedPDF(name string, pages int) error {
	readers := make([]io.Reader, 0, pages)
	for i := range pages {
		var buf bytes.Buffer
		if err := png.Encode(&buf, testutil.BarsPage(120-10*i, 90, 2)); err != nil {
			return err
		}
		readers = append(readers, &buf)
	}
	var out bytes.Buffer
	if err := api.ImportImages(nil, &out, readers, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	return os.WriteFile(testCtx.path(name), out.Bytes(), 0o600)
}

func (testCtx *TestContext) theImageShouldBe(name string, width, height, channels int) error {
	img, err := raster.Load(testCtx.path(testCtx.substitute(name)))
	if err != nil {
		return err
	}
	if img.Width != width || img.Height != height || img.Channels != channels {
		return fmt.Errorf("image %s is %dx%d with %d channels, want %dx%d with %d",
			name, img.Width, img.Height, img.Channels, width, height, channels)
	}
	return nil
}

// theImageShouldBeBinary checks that every pixel is 0 or 255.
func (testCtx *TestContext) theImageShouldBeBinary(name string) error {
	img, err := raster.Load(testCtx.path(testCtx.substitute(name)))
	if err != nil {
		return err
	}
	for i, v := range img.Pix {
		if v != 0 && v != 255 {
			return fmt.Errorf("image %s has value %d at byte %d", name, v, i)
		}
	}
	return nil
}

func (testCtx *TestContext) thePDFShouldHavePages(name string, n int) error {
	count, err := api.PageCountFile(testCtx.path(name))
	if err != nil {
		return err
	}
	if count != n {
		return fmt.Errorf("pdf %s has %d pages, want %d", name, count, n)
	}
	return nil
}

// decodeImage decodes bytes in any supported format.
func decodeImage(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	return cfg, err
}

// RegisterImageSteps registers fixture and image assertion steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a scanned image "([^"]*)" of (\d+)x(\d+)$`, testCtx.aScannedImage)
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImage)
	sc.Step(`^an empty directory "([^"]*)"$`, testCtx.anEmptyDirectory)
	sc.Step(`^a scanned PDF "([^"]*)" with (\d+) pages?$`, testCtx.aScannedPDF)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+) with (\d+) channels?$`, testCtx.theImageShouldBe)
	sc.Step(`^the image "([^"]*)" should be binary$`, testCtx.theImageShouldBeBinary)
	sc.Step(`^the PDF "([^"]*)" should have (\d+) pages?$`, testCtx.thePDFShouldHavePages)
}
