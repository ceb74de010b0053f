package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/scanprep/internal/batch"
	"github.com/MeKo-Tech/scanprep/internal/export"
	"github.com/MeKo-Tech/scanprep/internal/pdf"
	"github.com/MeKo-Tech/scanprep/internal/pipeline"
	"github.com/MeKo-Tech/scanprep/internal/preprocess"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

// DefaultConfig returns a configuration with the component defaults.
func DefaultConfig() Config {
	steps := pipeline.DefaultStepDefaults()
	rec := recognizer.DefaultConfig()
	return Config{
		LogLevel: "info",
		Preprocess: PreprocessConfig{
			Steps:           pipeline.DefaultSteps,
			BorderMargin:    steps.BorderMargin,
			ThresholdMethod: string(steps.ThresholdMethod),
			BlockSize:       steps.BlockSize,
			C:               steps.C,
		},
		Recognizer: RecognizerConfig{
			Engine:     rec.Engine,
			Binary:     rec.Binary,
			Language:   rec.Language,
			Normalize:  rec.Normalize,
			TimeoutSec: int(rec.Timeout / time.Second),
		},
		PDF: PDFConfig{
			Renderer: pdf.RendererAuto,
			DPI:      pdf.DefaultDPI,
			Format:   "png",
		},
		Output: OutputConfig{
			Format:    export.FormatText,
			Delimiter: ",",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,

			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxDataPerDay:     500 * 1024 * 1024,
		},
		Batch: BatchConfig{
			Workers: runtime.NumCPU(),
			Suffix:  pipeline.ProcessedSuffix,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := c.validatePreprocess(); err != nil {
		return err
	}

	if c.Recognizer.Engine != "" && !slices.Contains(recognizer.Engines(), c.Recognizer.Engine) {
		return fmt.Errorf("invalid recognizer engine: %s (must be one of: %s)",
			c.Recognizer.Engine, strings.Join(recognizer.Engines(), ", "))
	}
	if _, err := recognizer.ParseNormalization(c.Recognizer.Normalize); err != nil {
		return err
	}
	if _, err := recognizer.ParseEngineFlags(c.Recognizer.Config); err != nil {
		return fmt.Errorf("invalid recognizer config: %w", err)
	}
	if c.Recognizer.TimeoutSec < 0 {
		return fmt.Errorf("invalid recognizer timeout: %d (must be non-negative)", c.Recognizer.TimeoutSec)
	}

	if _, err := pdf.NewRenderer(c.PDF.Renderer); err != nil {
		return err
	}
	if c.PDF.DPI < 0 {
		return fmt.Errorf("invalid pdf dpi: %g (must be non-negative)", c.PDF.DPI)
	}
	if !pdf.IsPageFormat(c.PDF.Format) {
		return fmt.Errorf("invalid pdf page format: %s", c.PDF.Format)
	}
	if _, err := pdf.ParsePageRange(c.PDF.Pages); err != nil {
		return fmt.Errorf("invalid pdf pages: %w", err)
	}

	if c.Output.Format != "" {
		if _, err := export.ParseFormat(c.Output.Format); err != nil {
			return err
		}
	}
	if _, err := c.Delimiter(); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must be non-negative)", c.Server.ShutdownTimeout)
	}
	if c.Server.RequestsPerMinute < 0 || c.Server.RequestsPerHour < 0 || c.Server.MaxDataPerDay < 0 {
		return errors.New("invalid rate limit: limits must be non-negative")
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("invalid batch workers: %d (must be non-negative)", c.Batch.Workers)
	}
	return nil
}

func (c *Config) validatePreprocess() error {
	if _, err := preprocess.ParseThresholdMethod(c.Preprocess.ThresholdMethod); err != nil {
		return err
	}
	if c.Preprocess.BlockSize < 3 || c.Preprocess.BlockSize%2 == 0 {
		return fmt.Errorf("invalid block size: %d (must be odd and at least 3)", c.Preprocess.BlockSize)
	}
	if c.Preprocess.BorderMargin < 0 {
		return fmt.Errorf("invalid border margin: %d (must be non-negative)", c.Preprocess.BorderMargin)
	}
	if _, err := pipeline.ParseChain(c.Preprocess.Steps, c.StepDefaults()); err != nil {
		return fmt.Errorf("invalid preprocess steps: %w", err)
	}
	return nil
}

// Delimiter returns the single-rune delimited-text separator.
func (c *Config) Delimiter() (rune, error) {
	d := c.Output.Delimiter
	switch d {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(d) != 1 {
		return 0, fmt.Errorf("invalid delimiter: %q (must be a single character)", d)
	}
	r, _ := utf8.DecodeRuneInString(d)
	return r, nil
}

// StepDefaults returns the parameters used by steps that omit them.
func (c *Config) StepDefaults() pipeline.StepDefaults {
	return pipeline.StepDefaults{
		ThresholdMethod: preprocess.ThresholdMethod(c.Preprocess.ThresholdMethod),
		BlockSize:       c.Preprocess.BlockSize,
		C:               c.Preprocess.C,
		BorderMargin:    c.Preprocess.BorderMargin,
	}
}

// ToPipelineConfig converts the config to the pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Steps = c.Preprocess.Steps
	cfg.StepDefaults = c.StepDefaults()
	cfg.Recognizer = c.toRecognizerConfig()
	cfg.Renderer = c.PDF.Renderer
	cfg.DPI = c.PDF.DPI
	if c.PDF.Format != "" {
		cfg.PageFormat = c.PDF.Format
	}
	if c.Batch.Workers > 0 {
		cfg.Workers = c.Batch.Workers
	}
	return cfg
}

func (c *Config) toRecognizerConfig() recognizer.Config {
	cfg := recognizer.DefaultConfig()
	if c.Recognizer.Engine != "" {
		cfg.Engine = c.Recognizer.Engine
	}
	if c.Recognizer.Binary != "" {
		cfg.Binary = c.Recognizer.Binary
	}
	if c.Recognizer.Language != "" {
		cfg.Language = c.Recognizer.Language
	}
	cfg.Options = c.Recognizer.Config
	cfg.Normalize = c.Recognizer.Normalize
	cfg.Timeout = time.Duration(c.Recognizer.TimeoutSec) * time.Second
	return cfg
}

// ToBatchConfig converts the batch section to batch settings.
func (c *Config) ToBatchConfig() *batch.Config {
	cfg := batch.DefaultConfig()
	cfg.Workers = c.Batch.Workers
	cfg.Recursive = c.Batch.Recursive
	cfg.ContinueOnError = c.Batch.ContinueOnError
	cfg.Suffix = c.Batch.Suffix
	cfg.OutDir = c.Batch.OutputDir
	cfg.Verbose = c.Verbose
	return cfg
}

// YAML renders the configuration as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
