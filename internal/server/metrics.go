package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MeKo-Tech/scanprep/internal/pipeline"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanprep_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scanprep_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Preprocessing metrics
	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scanprep_step_duration_seconds",
			Help:    "Duration of a single preprocessing step",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"step", "status"},
	)

	imagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanprep_images_processed_total",
			Help: "Total number of preprocessed images",
		},
		[]string{"source"}, // source: preprocess, ocr, pdf, websocket
	)

	ocrRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanprep_ocr_requests_total",
			Help: "Total number of OCR requests",
		},
		[]string{"type", "result"}, // type: image, pdf, websocket
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanprep_rate_limit_hits_total",
			Help: "Total number of rejected requests",
		},
		[]string{"window"}, // window: minute, hour, data
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scanprep_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024, 100 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scanprep_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanprep_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// stepMetrics records every applied step in stepDuration.
var stepMetrics = pipeline.StepObserverFunc(func(_, _ int, name string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	stepDuration.WithLabelValues(name, status).Observe(elapsed.Seconds())
})

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
