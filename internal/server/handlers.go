package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanprep/internal/pipeline"
	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
	"github.com/MeKo-Tech/scanprep/internal/version"
)

const (
	formatJSON = "json"
	formatText = "text"
	formatCSV  = "csv"
	formatXLSX = "xlsx"
	formatPNG  = "png"
	formatJPEG = "jpeg"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.pipeline != nil {
		response.Pipeline = s.pipeline.Info()
	}
	writeJSON(w, http.StatusOK, response)
}

// statusForError maps pipeline errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, raster.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, raster.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, recognizer.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusUnprocessableEntity:
		return "decode_error"
	case http.StatusServiceUnavailable:
		return "engine_unavailable"
	case http.StatusGatewayTimeout:
		return "timeout"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	default:
		return "internal_error"
	}
}

// writePipelineError maps err and writes it as a JSON error body.
func writePipelineError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	writeError(w, status, errorCode(status), err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// upload is a multipart file read into memory.
type upload struct {
	name string
	data []byte
}

// readUpload parses the multipart form and reads the file in field. It writes
// the error response itself and reports whether the caller may continue.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) (*upload, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return nil, false
	}
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "File too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid_argument", "Failed to parse form data")
		}
		return nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", fmt.Sprintf("No %s file provided", field))
		return nil, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "Failed to read upload")
		return nil, false
	}
	uploadSizeBytes.Observe(float64(len(data)))
	return &upload{name: header.Filename, data: data}, true
}

// decode turns the upload into a raster, using the file extension as a hint.
func (u *upload) decode() (*raster.Image, error) {
	return raster.DecodeBytes(u.data, strings.ToLower(filepath.Ext(u.name)))
}

// requestPipeline returns the server pipeline with the chain from the
// optional steps field and the step metrics observer attached.
func (s *Server) requestPipeline(steps string) (*pipeline.Pipeline, error) {
	pl := s.pipeline.WithObservers(stepMetrics)
	if steps == "" {
		return pl, nil
	}
	chain, err := pipeline.ParseChain(steps, s.pipeline.Config().StepDefaults)
	if err != nil {
		return nil, err
	}
	return pl.WithChain(chain), nil
}

// requestContext applies the per-request timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}
