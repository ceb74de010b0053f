package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/scanprep/internal/pipeline"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    *pipeline.Pipeline
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	rateLimiter *RateLimiter
}

// RateLimitConfig holds per-client limits. Zero values are unlimited.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	RateLimit      RateLimitConfig
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version,omitempty"`
	Time     string                 `json:"time"`
	Pipeline map[string]interface{} `json:"pipeline,omitempty"`
}

// OCRResponse is the JSON body of /ocr.
type OCRResponse struct {
	Success bool                  `json:"success"`
	Result  *pipeline.ImageResult `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// PDFResponse is the JSON body of /pdf.
type PDFResponse struct {
	Success bool                `json:"success"`
	Result  *pipeline.PDFResult `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// ErrorResponse is written for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewServer builds the pipeline from config and creates a server around it.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilderFromConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}
	return NewServerWithPipeline(config, pl), nil
}

// NewServerWithPipeline creates a server around an existing pipeline.
func NewServerWithPipeline(config Config, pl *pipeline.Pipeline) *Server {
	s := &Server{
		pipeline:    pl,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeout:     time.Duration(config.TimeoutSec) * time.Second,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxDataPerDay)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/preprocess", s.corsMiddleware(s.rateLimitMiddleware(s.preprocessHandler)))
	mux.HandleFunc("/ocr", s.corsMiddleware(s.rateLimitMiddleware(s.ocrHandler)))
	mux.HandleFunc("/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.pdfHandler)))
	mux.HandleFunc("/ws", s.rateLimitMiddleware(s.webSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns the complete handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return loggingMiddleware(mux)
}
