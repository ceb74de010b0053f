package cmd

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/MeKo-Tech/scanprep/internal/config"
	"github.com/MeKo-Tech/scanprep/internal/pdf"
	"github.com/MeKo-Tech/scanprep/internal/pipeline"
	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

// fakeEngine reports the size of the raster it receives.
type fakeEngine struct{}

func (fakeEngine) Name() string { return "fake" }

func (fakeEngine) Available(context.Context) error { return nil }

func (fakeEngine) Text(_ context.Context, img *raster.Image, opts recognizer.Options) (string, error) {
	return fmt.Sprintf("%dx%d %s\n", img.Width, img.Height, opts.Language), nil
}

func (fakeEngine) Data(_ context.Context, img *raster.Image, _ recognizer.Options) ([]recognizer.Token, error) {
	return []recognizer.Token{{Level: 5, Page: 1, Block: 1, Paragraph: 1, Line: 1, Word: 1,
		Width: img.Width, Height: img.Height, Confidence: 88, Text: "word"}}, nil
}

func (fakeEngine) Boxes(_ context.Context, img *raster.Image, _ recognizer.Options) ([]recognizer.CharBox, error) {
	return []recognizer.CharBox{{Char: "w", X1: 0, Y1: 0, X2: img.Width, Y2: img.Height}}, nil
}

func (fakeEngine) Languages(context.Context) ([]string, error) { return []string{"deu", "eng"}, nil }

// isolate keeps config files in the developer's home and working directory
// from leaking into the test, and swaps in the fake engine.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)

	prev := buildPipeline
	buildPipeline = func(cfg *config.Config) (*pipeline.Pipeline, error) {
		rec := recognizer.NewRecognizer(fakeEngine{}, recognizer.Config{
			Language: cfg.Recognizer.Language,
			Options:  cfg.Recognizer.Config,
		})
		return pipeline.NewBuilderFromConfig(cfg.ToPipelineConfig()).
			WithRecognizer(rec).
			WithRenderer(pdf.ExtractRenderer{}).
			Build()
	}
	t.Cleanup(func() { buildPipeline = prev })
}

// run executes the CLI with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := GetRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
