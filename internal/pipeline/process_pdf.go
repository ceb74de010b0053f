package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanprep/internal/pdf"
	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

// PDFOptions control ProcessPDF.
type PDFOptions struct {
	Pages    []int  // 1-based selection; nil means all
	Password string // user password for encrypted documents
	OutDir   string // keep rendered pages here; empty uses a temporary directory
	Outputs  Outputs
	Options  recognizer.Options
	Parallel ParallelConfig
}

// PDFPageResult is the result for one page.
type PDFPageResult struct {
	PageNumber int    `json:"page_number"`
	ImagePath  string `json:"image_path,omitempty"`
	*ImageResult
}

// PDFResult is the result for a document.
type PDFResult struct {
	Filename   string          `json:"filename"`
	TotalPages int             `json:"total_pages"`
	Pages      []PDFPageResult `json:"pages"`
	Processing struct {
		RenderNs int64 `json:"render_ns"`
		TotalNs  int64 `json:"total_ns"`
	} `json:"processing"`
}

// Text joins page texts with a blank line.
func (r *PDFResult) Text() string {
	texts := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		if p.ImageResult != nil {
			texts = append(texts, strings.TrimRight(p.Text, "\n"))
		}
	}
	return strings.Join(texts, "\n\n")
}

// Images returns the processed page rasters in page order.
func (r *PDFResult) Images() []*raster.Image {
	imgs := make([]*raster.Image, 0, len(r.Pages))
	for _, p := range r.Pages {
		if p.ImageResult != nil && p.Image != nil {
			imgs = append(imgs, p.Image)
		}
	}
	return imgs
}

// ProcessPDF renders the selected pages, preprocesses each page and
// produces the requested recognition outputs per page.
func (p *Pipeline) ProcessPDF(ctx context.Context, path string, opts PDFOptions) (*PDFResult, error) {
	start := time.Now()

	working, cleanup, err := pdf.Unlock(path, opts.Password)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outDir := opts.OutDir
	if outDir == "" {
		tmp, err := os.MkdirTemp("", "scanprep-pages-*")
		if err != nil {
			return nil, fmt.Errorf("create page directory: %w", err)
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		outDir = tmp
	}

	renderStart := time.Now()
	pagePaths, err := p.Renderer.Render(ctx, working, outDir, p.cfg.PageFormat, p.cfg.DPI, opts.Pages)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", path, err)
	}
	renderNs := time.Since(renderStart).Nanoseconds()
	slog.Debug("Rendered PDF", "file", path, "pages", len(pagePaths), "duration", time.Duration(renderNs))

	numbers := opts.Pages
	if len(numbers) != len(pagePaths) {
		numbers = make([]int, len(pagePaths))
		for i := range numbers {
			numbers[i] = i + 1
		}
	}

	cfg := opts.Parallel
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = p.cfg.Workers
	}
	results, err := p.ProcessFilesParallel(ctx, pagePaths, opts.Outputs, opts.Options, cfg)
	if err != nil {
		return nil, err
	}

	res := &PDFResult{Filename: path, TotalPages: len(pagePaths)}
	for i, r := range results {
		page := PDFPageResult{PageNumber: numbers[i], ImageResult: r}
		if opts.OutDir != "" {
			page.ImagePath = pagePaths[i]
		}
		res.Pages = append(res.Pages, page)
	}
	res.Processing.RenderNs = renderNs
	res.Processing.TotalNs = time.Since(start).Nanoseconds()
	return res, nil
}
