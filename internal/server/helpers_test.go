package server

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanprep/internal/pdf"
	"github.com/MeKo-Tech/scanprep/internal/pipeline"
	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

// sizeEngine "recognizes" the dimensions of the image it receives.
type sizeEngine struct {
	fail error
}

func (e *sizeEngine) Name() string { return "size" }

func (e *sizeEngine) Available(context.Context) error { return e.fail }

func (e *sizeEngine) Text(_ context.Context, img *raster.Image, opts recognizer.Options) (string, error) {
	if e.fail != nil {
		return "", e.fail
	}
	return fmt.Sprintf("%dx%d %s\n", img.Width, img.Height, opts.Language), nil
}

func (e *sizeEngine) Data(_ context.Context, img *raster.Image, _ recognizer.Options) ([]recognizer.Token, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	return []recognizer.Token{{Level: 5, Page: 1, Block: 1, Paragraph: 1, Line: 1, Word: 1,
		Width: img.Width, Height: img.Height, Confidence: 91.5, Text: "page"}}, nil
}

func (e *sizeEngine) Boxes(context.Context, *raster.Image, recognizer.Options) ([]recognizer.CharBox, error) {
	return nil, e.fail
}

func (e *sizeEngine) Languages(context.Context) ([]string, error) { return []string{"eng"}, nil }

func testPipeline(t *testing.T, steps string, engine recognizer.Engine) *pipeline.Pipeline {
	t.Helper()
	pl, err := pipeline.NewBuilder().
		WithSteps(steps).
		WithWorkers(2).
		WithRecognizer(recognizer.NewRecognizer(engine, recognizer.Config{Language: "eng"})).
		WithRenderer(pdf.ExtractRenderer{}).
		Build()
	require.NoError(t, err)
	return pl
}

func testServer(t *testing.T, steps string, engine recognizer.Engine) *Server {
	t.Helper()
	return NewServerWithPipeline(Config{MaxUploadMB: 5, TimeoutSec: 30}, testPipeline(t, steps, engine))
}

func encodePNG(t *testing.T, img *raster.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, raster.Encode(&buf, img, "png"))
	return buf.Bytes()
}

// uploadRequest builds a multipart POST with one file and extra fields.
func uploadRequest(t *testing.T, path, field, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}
