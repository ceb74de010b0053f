package recognizer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// EngineTesseract is the registry name of the CLI engine.
const EngineTesseract = "tesseract"

func init() {
	Register(EngineTesseract, func(cfg Config) (Engine, error) {
		return NewTesseract(cfg.Binary), nil
	})
}

// Tesseract runs the tesseract executable once per call. Images are passed
// through a temporary PNG file and results are read from stdout.
type Tesseract struct {
	binary string
}

// NewTesseract returns a CLI engine for binary. An empty binary means
// "tesseract" on PATH.
func NewTesseract(binary string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	return &Tesseract{binary: binary}
}

// Name implements Engine.
func (t *Tesseract) Name() string { return EngineTesseract }

func (t *Tesseract) lookup() (string, error) {
	p, err := exec.LookPath(t.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrEngineUnavailable, t.binary, err)
	}
	return p, nil
}

// Available implements Engine.
func (t *Tesseract) Available(_ context.Context) error {
	_, err := t.lookup()
	return err
}

// Text implements Engine.
func (t *Tesseract) Text(ctx context.Context, img *raster.Image, opts Options) (string, error) {
	out, err := t.recognize(ctx, img, opts)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Data implements Engine.
func (t *Tesseract) Data(ctx context.Context, img *raster.Image, opts Options) ([]Token, error) {
	out, err := t.recognize(ctx, img, opts, "tsv")
	if err != nil {
		return nil, err
	}
	return ParseTSV(bytes.NewReader(out))
}

// Boxes implements Engine.
func (t *Tesseract) Boxes(ctx context.Context, img *raster.Image, opts Options) ([]CharBox, error) {
	out, err := t.recognize(ctx, img, opts, "makebox")
	if err != nil {
		return nil, err
	}
	return ParseBoxes(bytes.NewReader(out))
}

// Languages implements Engine. A failing or empty listing falls back to
// DefaultLanguage; a missing binary is reported.
func (t *Tesseract) Languages(ctx context.Context) ([]string, error) {
	bin, err := t.lookup()
	if err != nil {
		return nil, err
	}
	out, err := t.run(ctx, bin, "--list-langs")
	langs := ParseLanguages(bytes.NewReader(out))
	if err != nil || len(langs) == 0 {
		slog.Warn("Could not list tesseract languages, using default", "error", err, "default", DefaultLanguage)
		return []string{DefaultLanguage}, nil
	}
	return langs, nil
}

func (t *Tesseract) recognize(ctx context.Context, img *raster.Image, opts Options, configs ...string) ([]byte, error) {
	bin, err := t.lookup()
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "scanprep-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if err := raster.Encode(f, img, ".png"); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("write temp image: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	args := []string{f.Name(), "stdout", "-l", lang}
	args = append(args, strings.Fields(opts.Config)...)
	args = append(args, configs...)
	return t.run(ctx, bin, args...)
}

func (t *Tesseract) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...) //nolint:gosec // G204: engine binary is operator-configured
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	slog.Debug("Running tesseract", "args", args)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return stdout.Bytes(), fmt.Errorf("tesseract: %w", ctx.Err())
		}
		return stdout.Bytes(), fmt.Errorf("tesseract %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
