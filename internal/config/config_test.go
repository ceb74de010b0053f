package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/scanprep/internal/pipeline"
	"github.com/MeKo-Tech/scanprep/internal/preprocess"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, pipeline.DefaultSteps, cfg.Preprocess.Steps)
	assert.Equal(t, "adaptive", cfg.Preprocess.ThresholdMethod)
	assert.Equal(t, 11, cfg.Preprocess.BlockSize)
	assert.Equal(t, "eng", cfg.Recognizer.Language)
	assert.Equal(t, 300.0, cfg.PDF.DPI)
	assert.Equal(t, "_processed", cfg.Batch.Suffix)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"threshold method", func(c *Config) { c.Preprocess.ThresholdMethod = "bogus" }, "threshold"},
		{"even block size", func(c *Config) { c.Preprocess.BlockSize = 10 }, "block size"},
		{"negative margin", func(c *Config) { c.Preprocess.BorderMargin = -1 }, "border margin"},
		{"unknown step", func(c *Config) { c.Preprocess.Steps = "grayscale,sharpen" }, "invalid preprocess steps"},
		{"engine", func(c *Config) { c.Recognizer.Engine = "abbyy" }, "invalid recognizer engine"},
		{"normalize", func(c *Config) { c.Recognizer.Normalize = "nfd" }, "nfd"},
		{"engine flags", func(c *Config) { c.Recognizer.Config = "--fast" }, "invalid recognizer config"},
		{"renderer", func(c *Config) { c.PDF.Renderer = "ghostscript" }, "ghostscript"},
		{"dpi", func(c *Config) { c.PDF.DPI = -5 }, "dpi"},
		{"page format", func(c *Config) { c.PDF.Format = "gif" }, "page format"},
		{"pages", func(c *Config) { c.PDF.Pages = "0-2" }, "invalid pdf pages"},
		{"output format", func(c *Config) { c.Output.Format = "docx" }, "docx"},
		{"delimiter", func(c *Config) { c.Output.Delimiter = ";;" }, "delimiter"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "upload"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "timeout"},
		{"workers", func(c *Config) { c.Batch.Workers = -1 }, "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDelimiter(t *testing.T) {
	cfg := DefaultConfig()
	for in, want := range map[string]rune{"": ',', ";": ';', `\t`: '\t', "tab": '\t', "|": '|'} {
		cfg.Output.Delimiter = in
		got, err := cfg.Delimiter()
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Preprocess.Steps = "grayscale,threshold"
	cfg.Preprocess.ThresholdMethod = "otsu"
	cfg.Recognizer.Language = "deu"
	cfg.Recognizer.Config = "--psm 6"
	cfg.Recognizer.TimeoutSec = 5
	cfg.PDF.DPI = 150
	cfg.Batch.Workers = 3

	pc := cfg.ToPipelineConfig()
	assert.Equal(t, "grayscale,threshold", pc.Steps)
	assert.Equal(t, preprocess.ThresholdOtsu, pc.StepDefaults.ThresholdMethod)
	assert.Equal(t, "deu", pc.Recognizer.Language)
	assert.Equal(t, "--psm 6", pc.Recognizer.Options)
	assert.Equal(t, "5s", pc.Recognizer.Timeout.String())
	assert.Equal(t, 150.0, pc.DPI)
	assert.Equal(t, 3, pc.Workers)

	p, err := pipeline.NewBuilderFromConfig(pc).Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"grayscale", "threshold"}, p.Chain.Names())
	assert.Equal(t, "grayscale,threshold:block_size=11:c=2:method=otsu", p.Chain.String())
}

func TestToBatchConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Batch.Recursive = true
	cfg.Batch.OutputDir = "out"
	cfg.Verbose = true

	bc := cfg.ToBatchConfig()
	assert.True(t, bc.Recursive)
	assert.True(t, bc.Verbose)
	assert.Equal(t, "out", bc.OutDir)
	assert.Equal(t, "_processed", bc.Suffix)
	require.NoError(t, bc.Validate())
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Delimiter = ";"
	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "log_level: info\n"))
	assert.Contains(t, string(out), "preprocess:\n    steps: grayscale,denoise,threshold,deskew\n")

	var back Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, cfg, back)
}
