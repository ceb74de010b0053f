package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

// Outputs selects which recognition results ProcessImage produces.
type Outputs uint8

// Recognition outputs. The zero value only preprocesses.
const (
	OutputText Outputs = 1 << iota
	OutputData
	OutputBoxes
)

// Has reports whether o includes flag.
func (o Outputs) Has(flag Outputs) bool { return o&flag != 0 }

// ImageResult is the per-image output.
type ImageResult struct {
	Source   string               `json:"source,omitempty"`
	Width    int                  `json:"width"`
	Height   int                  `json:"height"`
	Channels int                  `json:"channels"`
	Steps    []string             `json:"steps"`
	Text     string               `json:"text,omitempty"`
	Tokens   []recognizer.Token   `json:"tokens,omitempty"`
	Boxes    []recognizer.CharBox `json:"boxes,omitempty"`
	Image    *raster.Image        `json:"-"`
	Timing   struct {
		PreprocessNs int64 `json:"preprocess_ns"`
		RecognizeNs  int64 `json:"recognize_ns"`
		TotalNs      int64 `json:"total_ns"`
	} `json:"timing"`
}

// Preprocess applies the chain to img.
func (p *Pipeline) Preprocess(ctx context.Context, img *raster.Image, observers ...StepObserver) (*raster.Image, error) {
	return p.Chain.Apply(ctx, img, append(append([]StepObserver(nil), p.observers...), observers...)...)
}

// ProcessImage preprocesses img and produces the requested outputs. The
// recognition options fall back to the configured language and flags.
func (p *Pipeline) ProcessImage(ctx context.Context, img *raster.Image, outputs Outputs, opts recognizer.Options) (*ImageResult, error) {
	start := time.Now()
	out, err := p.Preprocess(ctx, img)
	if err != nil {
		return nil, err
	}
	res := &ImageResult{
		Width:    out.Width,
		Height:   out.Height,
		Channels: out.Channels,
		Steps:    p.Chain.Names(),
		Image:    out,
	}
	res.Timing.PreprocessNs = time.Since(start).Nanoseconds()

	if outputs != 0 {
		if p.Recognizer == nil {
			return nil, fmt.Errorf("%w: no recognizer configured", recognizer.ErrEngineUnavailable)
		}
		recStart := time.Now()
		if err := p.recognize(ctx, res, outputs, opts); err != nil {
			return nil, err
		}
		res.Timing.RecognizeNs = time.Since(recStart).Nanoseconds()
	}
	res.Timing.TotalNs = time.Since(start).Nanoseconds()
	return res, nil
}

func (p *Pipeline) recognize(ctx context.Context, res *ImageResult, outputs Outputs, opts recognizer.Options) error {
	var err error
	if outputs.Has(OutputText) {
		if res.Text, err = p.Recognizer.Text(ctx, res.Image, opts); err != nil {
			return fmt.Errorf("recognize text: %w", err)
		}
	}
	if outputs.Has(OutputData) {
		if res.Tokens, err = p.Recognizer.Data(ctx, res.Image, opts); err != nil {
			return fmt.Errorf("recognize data: %w", err)
		}
	}
	if outputs.Has(OutputBoxes) {
		if res.Boxes, err = p.Recognizer.Boxes(ctx, res.Image, opts); err != nil {
			return fmt.Errorf("recognize boxes: %w", err)
		}
	}
	return nil
}

// ProcessFile loads path and runs ProcessImage on it.
func (p *Pipeline) ProcessFile(ctx context.Context, path string, outputs Outputs, opts recognizer.Options) (*ImageResult, error) {
	img, err := raster.Load(path)
	if err != nil {
		return nil, err
	}
	res, err := p.ProcessImage(ctx, img, outputs, opts)
	if err != nil {
		return nil, err
	}
	res.Source = path
	return res, nil
}

// ProcessedSuffix is appended to the base name of preprocessed outputs.
const ProcessedSuffix = "_processed"

// OutputPath derives the output file for in. An empty outDir keeps the
// input directory; an empty ext keeps the input extension.
func OutputPath(in, outDir, suffix, ext string) string {
	dir := filepath.Dir(in)
	if outDir != "" {
		dir = outDir
	}
	inExt := filepath.Ext(in)
	if ext == "" {
		ext = inExt
	} else if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	base := strings.TrimSuffix(filepath.Base(in), inExt)
	return filepath.Join(dir, base+suffix+ext)
}

// PreprocessFile loads in, applies the chain and saves to out. Nothing is
// written when any step fails.
func (p *Pipeline) PreprocessFile(ctx context.Context, in, out string) (*ImageResult, error) {
	if in == out {
		return nil, errors.New("refusing to overwrite the input image")
	}
	res, err := p.ProcessFile(ctx, in, 0, recognizer.Options{})
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := raster.Save(res.Image, out); err != nil {
		return nil, err
	}
	return res, nil
}
