package support

import (
	"context"
	"fmt"
	"net/http/httptest"

	"github.com/MeKo-Tech/scanprep/internal/pdf"
	"github.com/MeKo-Tech/scanprep/internal/pipeline"
	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
	"github.com/MeKo-Tech/scanprep/internal/server"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// mockEngine provides predictable OCR results for testing.
type mockEngine struct{}

func (mockEngine) Name() string { return "mock" }

func (mockEngine) Available(context.Context) error { return nil }

func (mockEngine) Text(_ context.Context, img *raster.Image, opts recognizer.Options) (string, error) {
	return fmt.Sprintf("Hello World %dx%d %s\n", img.Width, img.Height, opts.Language), nil
}

func (mockEngine) Data(_ context.Context, img *raster.Image, _ recognizer.Options) ([]recognizer.Token, error) {
	return []recognizer.Token{
		{Level: 5, Page: 1, Block: 1, Paragraph: 1, Line: 1, Word: 1, Width: img.Width / 2, Height: 10, Confidence: 95, Text: "Hello"},
		{Level: 5, Page: 1, Block: 1, Paragraph: 1, Line: 1, Word: 2, Left: img.Width / 2, Width: img.Width / 2, Height: 10, Confidence: 92, Text: "World"},
	}, nil
}

func (mockEngine) Boxes(context.Context, *raster.Image, recognizer.Options) ([]recognizer.CharBox, error) {
	return nil, nil
}

func (mockEngine) Languages(context.Context) ([]string, error) { return []string{"eng"}, nil }

// startTestHTTPServer starts an in-process server using the mock engine.
func (testCtx *TestContext) startTestHTTPServer(steps string, rl server.RateLimitConfig) error {
	testCtx.stopTestHTTPServer()

	pl, err := pipeline.NewBuilder().
		WithSteps(steps).
		WithWorkers(2).
		WithRecognizer(recognizer.NewRecognizer(mockEngine{}, recognizer.Config{Language: recognizer.DefaultLanguage})).
		WithRenderer(pdf.ExtractRenderer{}).
		Build()
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	srv := server.NewServerWithPipeline(server.Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  30,
		RateLimit:   rl,
	}, pl)

	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(srv.Handler()),
		TestServer: srv,
	}
	return nil
}

func (testCtx *TestContext) stopTestHTTPServer() {
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Server.Close()
		testCtx.HTTPTestServer = nil
	}
}
