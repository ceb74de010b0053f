package pipeline

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

// fakeEngine reports the size of each image it is asked to read.
type fakeEngine struct {
	calls atomic.Int32
	fail  error
}

func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Available(context.Context) error { return f.fail }

func (f *fakeEngine) Text(_ context.Context, img *raster.Image, opts recognizer.Options) (string, error) {
	f.calls.Add(1)
	if f.fail != nil {
		return "", f.fail
	}
	return sizeText(img) + " " + opts.Language + "\n", nil
}

func (f *fakeEngine) Data(_ context.Context, img *raster.Image, _ recognizer.Options) ([]recognizer.Token, error) {
	f.calls.Add(1)
	if f.fail != nil {
		return nil, f.fail
	}
	return []recognizer.Token{{Level: 5, Page: 1, Word: 1, Width: img.Width, Height: img.Height, Confidence: 90, Text: "word"}}, nil
}

func (f *fakeEngine) Boxes(_ context.Context, img *raster.Image, _ recognizer.Options) ([]recognizer.CharBox, error) {
	f.calls.Add(1)
	if f.fail != nil {
		return nil, f.fail
	}
	return []recognizer.CharBox{{Char: "w", X2: img.Width, Y2: img.Height}}, nil
}

func (f *fakeEngine) Languages(context.Context) ([]string, error) { return []string{"eng"}, nil }

func sizeText(img *raster.Image) string {
	return strconv.Itoa(img.Width) + "x" + strconv.Itoa(img.Height)
}

func newTestPipeline(t *testing.T, steps string, engine recognizer.Engine) *Pipeline {
	t.Helper()
	b := NewBuilder().WithSteps(steps).WithWorkers(2)
	if engine != nil {
		b = b.WithRecognizer(recognizer.NewRecognizer(engine, recognizer.Config{Language: "eng"}))
	}
	p, err := b.Build()
	require.NoError(t, err)
	return p
}
