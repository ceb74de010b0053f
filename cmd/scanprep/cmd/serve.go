package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/scanprep/internal/config"
	"github.com/MeKo-Tech/scanprep/internal/server"
)

func newServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP preprocessing and OCR server",
		Long: `Start an HTTP server exposing the pipeline.

Endpoints:
  GET  /health     - Health check and pipeline settings
  POST /preprocess - Preprocess an uploaded image, returns the image
  POST /ocr        - Preprocess and recognize an uploaded image
  POST /pdf        - Preprocess and recognize the pages of a PDF
  GET  /ws         - WebSocket with per-step progress
  GET  /metrics    - Prometheus metrics

Examples:
  scanprep serve
  scanprep serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	c.Flags().StringP("host", "H", "localhost", "server host")
	c.Flags().IntP("port", "p", 8080, "server port")
	c.Flags().String("cors-origin", "*", "CORS allowed origins")
	c.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	c.Flags().Int("timeout", 30, "request timeout in seconds")
	c.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	c.Flags().Bool("rate-limit-enabled", false, "enable per-client rate limiting")
	c.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	c.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	c.Flags().Int64("max-data-per-day", 500*1024*1024, "maximum upload bytes per day per client")
	return c
}

// serverConfig applies explicitly set flags over the server config section.
func serverConfig(cmd *cobra.Command, cfg *config.Config) (server.Config, int, error) {
	s := cfg.Server
	f := cmd.Flags()
	if f.Changed("host") {
		s.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		s.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		s.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-size") {
		s.MaxUploadMB, _ = f.GetInt("max-upload-size")
	}
	if f.Changed("timeout") {
		s.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		s.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("rate-limit-enabled") {
		s.RateLimitEnabled, _ = f.GetBool("rate-limit-enabled")
	}
	if f.Changed("requests-per-minute") {
		s.RequestsPerMinute, _ = f.GetInt("requests-per-minute")
	}
	if f.Changed("requests-per-hour") {
		s.RequestsPerHour, _ = f.GetInt("requests-per-hour")
	}
	if f.Changed("max-data-per-day") {
		s.MaxDataPerDay, _ = f.GetInt64("max-data-per-day")
	}

	if s.Port < 1 || s.Port > 65535 {
		return server.Config{}, 0, fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", s.Port)
	}
	if s.TimeoutSec <= 0 {
		return server.Config{}, 0, fmt.Errorf("invalid timeout: %d (must be positive)", s.TimeoutSec)
	}
	if s.RequestsPerMinute < 0 || s.RequestsPerHour < 0 || s.MaxDataPerDay < 0 {
		return server.Config{}, 0, errors.New("invalid rate limit: limits must be non-negative")
	}

	return server.Config{
		Host:           s.Host,
		Port:           s.Port,
		CORSOrigin:     s.CORSOrigin,
		MaxUploadMB:    int64(s.MaxUploadMB),
		TimeoutSec:     s.TimeoutSec,
		PipelineConfig: cfg.ToPipelineConfig(),
		RateLimit: server.RateLimitConfig{
			Enabled:           s.RateLimitEnabled,
			RequestsPerMinute: s.RequestsPerMinute,
			RequestsPerHour:   s.RequestsPerHour,
			MaxDataPerDay:     s.MaxDataPerDay,
		},
	}, s.ShutdownTimeout, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	sc, shutdownTimeout, err := serverConfig(cmd, cfg)
	if err != nil {
		return err
	}

	pl, err := buildPipeline(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	srv := server.NewServerWithPipeline(sc, pl)

	timeout := time.Duration(sc.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		// Responses may include a full OCR run.
		WriteTimeout: 2 * timeout,
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting scanprep server", "host", sc.Host, "port", sc.Port, "steps", pl.Chain.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("Graceful shutdown completed")

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	default:
		return nil
	}
}
