package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanprep/internal/preprocess"
	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
	"github.com/MeKo-Tech/scanprep/internal/testutil"
)

func TestBuilderDefaults(t *testing.T) {
	p, err := NewBuilder().Build()
	require.NoError(t, err)
	assert.Equal(t, DefaultSteps, strings.Join(p.Chain.Names(), ","))
	assert.Equal(t, recognizer.EngineTesseract, p.Recognizer.Engine().Name())
	assert.NotNil(t, p.Renderer)
	assert.Equal(t, recognizer.EngineTesseract, p.Info()["engine"])
}

func TestBuilderValidation(t *testing.T) {
	_, err := NewBuilder().WithSteps("sharpen").Build()
	assert.ErrorIs(t, err, raster.ErrInvalidArgument)

	_, err = NewBuilder().WithDPI(-1).Build()
	assert.Error(t, err)

	_, err = NewBuilder().WithWorkers(-2).Build()
	assert.Error(t, err)

	_, err = NewBuilder().WithEngine("missing-engine").Build()
	assert.ErrorContains(t, err, "unknown ocr engine")
}

func TestProcessImagePreprocessOnly(t *testing.T) {
	eng := &fakeEngine{}
	p := newTestPipeline(t, "grayscale,resize:scale=0.5", eng)

	res, err := p.ProcessImage(context.Background(), testutil.Uniform(40, 20, 3, 10), 0, recognizer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Width)
	assert.Equal(t, 10, res.Height)
	assert.Equal(t, 1, res.Channels)
	assert.Equal(t, []string{StepGrayscale, StepResize}, res.Steps)
	assert.Empty(t, res.Text)
	assert.Zero(t, eng.calls.Load())
}

func TestProcessImageRecognizesPreprocessedImage(t *testing.T) {
	eng := &fakeEngine{}
	p := newTestPipeline(t, "resize:width=30", eng)

	res, err := p.ProcessImage(context.Background(), testutil.Uniform(60, 40, 1, 255),
		OutputText|OutputData|OutputBoxes, recognizer.Options{Language: "deu"})
	require.NoError(t, err)
	assert.Equal(t, "30x20 deu\n", res.Text)
	require.Len(t, res.Tokens, 1)
	assert.Equal(t, 30, res.Tokens[0].Width)
	require.Len(t, res.Boxes, 1)
	assert.Equal(t, 20, res.Boxes[0].Y2)
	assert.Equal(t, int32(3), eng.calls.Load())
	assert.Positive(t, res.Timing.TotalNs)
}

func TestProcessImageSurfacesEngineUnavailable(t *testing.T) {
	p := newTestPipeline(t, "", &fakeEngine{fail: recognizer.ErrEngineUnavailable})
	_, err := p.ProcessImage(context.Background(), testutil.Uniform(4, 4, 1, 0), OutputText, recognizer.Options{})
	assert.ErrorIs(t, err, recognizer.ErrEngineUnavailable)
}

func TestPreprocessFile(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteImage(t, dir, "scan.png", testutil.BarsPage(60, 60, 3))
	out := OutputPath(in, filepath.Join(dir, "out"), ProcessedSuffix, "")

	p := newTestPipeline(t, "grayscale,threshold:method=otsu", nil)
	res, err := p.PreprocessFile(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, in, res.Source)

	img, err := raster.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 1, img.Channels)
	assert.Equal(t, 60, img.Width)

	_, err = p.PreprocessFile(context.Background(), in, in)
	assert.Error(t, err)
}

func TestPreprocessFileWritesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteImage(t, dir, "scan.png", testutil.BarsPage(20, 20, 1))
	out := filepath.Join(dir, "scan_processed.png")

	p := newTestPipeline(t, "threshold:method=adaptive:block_size=4", nil)
	_, err := p.PreprocessFile(context.Background(), in, out)
	require.ErrorIs(t, err, raster.ErrInvalidArgument)
	assert.NoFileExists(t, out)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("in", "a_processed.png"), OutputPath(filepath.Join("in", "a.png"), "", ProcessedSuffix, ""))
	assert.Equal(t, filepath.Join("out", "a_processed.jpg"), OutputPath(filepath.Join("in", "a.png"), "out", ProcessedSuffix, "jpg"))
	assert.Equal(t, filepath.Join("out", "a.tif"), OutputPath("a.png", "out", "", ".tif"))
}

func TestWithObserversAndChainCopy(t *testing.T) {
	p := newTestPipeline(t, "grayscale", &fakeEngine{})

	var names []string
	observed := p.WithObservers(StepObserverFunc(func(_, _ int, name string, _ time.Duration, _ error) {
		names = append(names, name)
	}))
	thresholded := observed.WithChain(NewChain().Grayscale().Threshold(preprocess.ThresholdOtsu, 0, 0))

	_, err := thresholded.ProcessImage(context.Background(), testutil.Uniform(8, 8, 3, 90), 0, recognizer.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{StepGrayscale, StepThreshold}, names)

	// The original pipeline keeps its chain and has no observers.
	names = nil
	_, err = p.Preprocess(context.Background(), testutil.Uniform(8, 8, 3, 90))
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, 1, p.Chain.Len())
}
