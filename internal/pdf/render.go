// Package pdf turns PDF documents into page images for preprocessing.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// Renderer names accepted by NewRenderer.
const (
	RendererAuto    = "auto"
	RendererFitz    = "fitz"
	RendererExtract = "pdfcpu"
)

// DefaultDPI is the rendering resolution used when none is given.
const DefaultDPI = 300.0

// Renderer writes the selected pages of a PDF as images into outDir and
// returns their paths in page order. pages is 1-based; nil selects all.
type Renderer interface {
	Render(ctx context.Context, pdfPath, outDir, format string, dpi float64, pages []int) ([]string, error)
}

// NewRenderer returns the named renderer.
func NewRenderer(name string) (Renderer, error) {
	switch strings.ToLower(name) {
	case "", RendererAuto:
		return Fallback{FitzRenderer{}, ExtractRenderer{}}, nil
	case RendererFitz, "mupdf":
		return FitzRenderer{}, nil
	case RendererExtract, "extract":
		return ExtractRenderer{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown pdf renderer %q", raster.ErrInvalidArgument, name)
	}
}

// PageFormats lists the image formats pages can be rendered to. GIF is
// readable but its palette quantization is lossy, so it is not offered.
var PageFormats = []string{"png", "jpg", "jpeg", "bmp", "tif", "tiff"}

// IsPageFormat reports whether format (with or without a leading dot) is one
// of PageFormats.
func IsPageFormat(format string) bool {
	f := strings.TrimPrefix(strings.ToLower(format), ".")
	for _, p := range PageFormats {
		if f == p {
			return true
		}
	}
	return false
}

func normalizeFormat(format string) (string, error) {
	f := strings.TrimPrefix(strings.ToLower(format), ".")
	if f == "" {
		f = "png"
	}
	if !IsPageFormat(f) {
		return "", fmt.Errorf("%w: unsupported page format %q", raster.ErrInvalidArgument, format)
	}
	return f, nil
}

func prepare(outDir, format string, dpi float64) (string, float64, error) {
	f, err := normalizeFormat(format)
	if err != nil {
		return "", 0, err
	}
	if dpi == 0 {
		dpi = DefaultDPI
	}
	if dpi < 0 {
		return "", 0, fmt.Errorf("%w: dpi must be positive, got %g", raster.ErrInvalidArgument, dpi)
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return "", 0, fmt.Errorf("create output directory: %w", err)
	}
	return f, dpi, nil
}

// FitzRenderer rasterizes pages with MuPDF.
type FitzRenderer struct{}

// Render implements Renderer.
func (FitzRenderer) Render(ctx context.Context, pdfPath, outDir, format string, dpi float64, pages []int) ([]string, error) {
	format, dpi, err := prepare(outDir, format, dpi)
	if err != nil {
		return nil, err
	}
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", pdfPath, err)
	}
	defer func() { _ = doc.Close() }()

	selected, err := SelectPages(pages, doc.NumPage())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", raster.ErrInvalidArgument, err)
	}

	paths := make([]string, 0, len(selected))
	for _, page := range selected {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		img, err := doc.ImageDPI(page-1, dpi)
		if err != nil {
			return paths, fmt.Errorf("render page %d: %w", page, err)
		}
		out := filepath.Join(outDir, PageFileName(page, format))
		if err := raster.Save(raster.FromImage(img), out); err != nil {
			return paths, fmt.Errorf("save page %d: %w", page, err)
		}
		slog.Debug("Rendered PDF page", "page", page, "dpi", dpi, "path", out)
		paths = append(paths, out)
	}
	return paths, nil
}

// ExtractRenderer pulls the largest embedded image of each page with pdfcpu.
// It suits scanned documents and ignores dpi since images keep their native
// resolution.
type ExtractRenderer struct{}

// Render implements Renderer.
func (ExtractRenderer) Render(ctx context.Context, pdfPath, outDir, format string, dpi float64, pages []int) ([]string, error) {
	format, _, err := prepare(outDir, format, dpi)
	if err != nil {
		return nil, err
	}
	count, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("count pages of %s: %w", pdfPath, err)
	}
	selected, err := SelectPages(pages, count)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", raster.ErrInvalidArgument, err)
	}

	data, err := os.ReadFile(pdfPath) //nolint:gosec // G304: user-provided PDF path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pdfPath, err)
	}

	paths := make([]string, 0, len(selected))
	for _, page := range selected {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		img, err := largestPageImage(bytes.NewReader(data), page)
		if err != nil {
			return paths, err
		}
		out := filepath.Join(outDir, PageFileName(page, format))
		if err := raster.Save(img, out); err != nil {
			return paths, fmt.Errorf("save page %d: %w", page, err)
		}
		paths = append(paths, out)
	}
	return paths, nil
}

func largestPageImage(rs io.ReadSeeker, page int) (*raster.Image, error) {
	maps, err := api.ExtractImagesRaw(rs, []string{strconv.Itoa(page)}, nil)
	if err != nil {
		return nil, fmt.Errorf("extract images from page %d: %w", page, err)
	}

	var best *raster.Image
	for _, m := range maps {
		ids := make([]int, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			raw, err := io.ReadAll(m[id])
			if err != nil {
				return nil, fmt.Errorf("read image %d on page %d: %w", id, page, err)
			}
			img, err := raster.DecodeBytes(raw, "."+m[id].FileType)
			if err != nil {
				slog.Debug("Skipping undecodable PDF image", "page", page, "object", id, "error", err)
				continue
			}
			if best == nil || img.Width*img.Height > best.Width*best.Height {
				best = img
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no decodable image on page %d", page)
	}
	return best, nil
}

// Fallback tries each renderer in order until one succeeds. Invalid
// arguments are returned immediately.
type Fallback []Renderer

// Render implements Renderer.
func (f Fallback) Render(ctx context.Context, pdfPath, outDir, format string, dpi float64, pages []int) ([]string, error) {
	var errs []error
	for _, r := range f {
		paths, err := r.Render(ctx, pdfPath, outDir, format, dpi, pages)
		if err == nil {
			return paths, nil
		}
		if errors.Is(err, raster.ErrInvalidArgument) || ctx.Err() != nil {
			return nil, err
		}
		slog.Warn("PDF renderer failed, trying next", "renderer", fmt.Sprintf("%T", r), "error", err)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("render %s: %w", pdfPath, errors.Join(errs...))
}
