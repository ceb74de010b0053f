package server

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/scanprep/internal/export"
	"github.com/MeKo-Tech/scanprep/internal/pipeline"
	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

// formValue reads a form field, falling back to the query string.
func formValue(r *http.Request, key string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return r.URL.Query().Get(key)
}

// preprocessHandler applies the chain and returns the encoded image.
func (s *Server) preprocessHandler(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r, "image")
	if !ok {
		return
	}

	format := strings.ToLower(formValue(r, "format"))
	switch format {
	case "", formatPNG:
		format = formatPNG
	case formatJPEG, "jpg":
		format = formatJPEG
	default:
		writeError(w, http.StatusBadRequest, "invalid_argument", fmt.Sprintf("unsupported image format %q", format))
		return
	}

	pl, err := s.requestPipeline(formValue(r, "steps"))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	img, err := up.decode()
	if err != nil {
		writePipelineError(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	out, err := pl.Preprocess(ctx, img)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	imagesProcessed.WithLabelValues("preprocess").Inc()

	var buf bytes.Buffer
	if err := raster.Encode(&buf, out, format); err != nil {
		writePipelineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/"+format)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Image-Width", strconv.Itoa(out.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(out.Height))
	w.Header().Set("X-Image-Channels", strconv.Itoa(out.Channels))
	_, _ = w.Write(buf.Bytes())
}

// ocrHandler preprocesses the upload and recognizes it.
func (s *Server) ocrHandler(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r, "image")
	if !ok {
		return
	}

	format := strings.ToLower(formValue(r, "format"))
	outputs := pipeline.OutputText
	switch format {
	case "", formatJSON:
		format = formatJSON
		outputs |= pipeline.OutputData
	case formatText:
	case formatCSV, formatXLSX:
		outputs = pipeline.OutputData
	default:
		writeError(w, http.StatusBadRequest, "invalid_argument", fmt.Sprintf("unsupported output format %q", format))
		return
	}

	pl, err := s.requestPipeline(formValue(r, "steps"))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	img, err := up.decode()
	if err != nil {
		writePipelineError(w, err)
		return
	}
	opts := recognizer.Options{
		Language: formValue(r, "language"),
		Config:   formValue(r, "config"),
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	res, err := pl.ProcessImage(ctx, img, outputs, opts)
	ocrRequestsTotal.WithLabelValues("image", resultLabel(err)).Inc()
	if err != nil {
		writePipelineError(w, err)
		return
	}
	imagesProcessed.WithLabelValues("ocr").Inc()
	res.Source = up.name

	switch format {
	case formatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_ = export.WriteText(w, res.Text)
	case formatCSV:
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, export.TokenTable(res.Tokens), ','); err != nil {
			writePipelineError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(buf.Bytes())
	case formatXLSX:
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, export.TokenTable(res.Tokens)); err != nil {
			writePipelineError(w, err)
			return
		}
		w.Header().Set("Content-Type", export.XLSXContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+strings.TrimSuffix(up.name, filepath.Ext(up.name))+`.xlsx"`)
		_, _ = w.Write(buf.Bytes())
	default:
		writeJSON(w, http.StatusOK, OCRResponse{Success: true, Result: res})
	}
}
