package server

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/MeKo-Tech/scanprep/internal/pdf"
	"github.com/MeKo-Tech/scanprep/internal/pipeline"
	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

// pdfHandler renders the uploaded document, preprocesses every selected page
// and recognizes it.
func (s *Server) pdfHandler(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r, "pdf")
	if !ok {
		return
	}

	format := strings.ToLower(formValue(r, "format"))
	if format == "" {
		format = formatJSON
	}
	if format != formatJSON && format != formatText {
		writeError(w, http.StatusBadRequest, "invalid_argument", fmt.Sprintf("unsupported output format %q", format))
		return
	}
	pages, err := pdf.ParsePageRange(formValue(r, "pages"))
	if err != nil {
		writePipelineError(w, raster.Invalidf("pdf", "%v", err))
		return
	}
	pl, err := s.requestPipeline(formValue(r, "steps"))
	if err != nil {
		writePipelineError(w, err)
		return
	}

	path, cleanup, err := spoolUpload(up)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	defer cleanup()

	ctx, cancel := s.requestContext(r)
	defer cancel()
	res, err := pl.ProcessPDF(ctx, path, pipeline.PDFOptions{
		Pages:    pages,
		Password: formValue(r, "password"),
		Outputs:  pipeline.OutputText,
		Options: recognizer.Options{
			Language: formValue(r, "language"),
			Config:   formValue(r, "config"),
		},
	})
	ocrRequestsTotal.WithLabelValues("pdf", resultLabel(err)).Inc()
	if err != nil {
		writePipelineError(w, err)
		return
	}
	imagesProcessed.WithLabelValues("pdf").Add(float64(len(res.Pages)))
	res.Filename = up.name

	if format == formatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintln(w, res.Text())
		return
	}
	writeJSON(w, http.StatusOK, PDFResponse{Success: true, Result: res})
}

// spoolUpload writes the upload to a temporary file for the renderers.
func spoolUpload(up *upload) (string, func(), error) {
	f, err := os.CreateTemp("", "scanprep-upload-*.pdf")
	if err != nil {
		return "", func() {}, fmt.Errorf("create temporary file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(up.data); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write temporary file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("write temporary file: %w", err)
	}
	return f.Name(), cleanup, nil
}
