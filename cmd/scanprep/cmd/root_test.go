package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/scanprep/internal/config"
)

func TestRootCommand(t *testing.T) {
	root := GetRootCommand()
	assert.Equal(t, "scanprep", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.NotEmpty(t, root.Long)

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"preprocess", "ocr", "pdf", "languages", "serve", "config"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "--steps")
}

func TestRootCommandVersion(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "scanprep version dev")
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "--no-such-flag")
	assert.Error(t, err)
}

func showConfig(t *testing.T, args ...string) config.Config {
	t.Helper()
	out, _, err := run(t, append(args, "config", "show")...)
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	return cfg
}

func TestConfigShowLayers(t *testing.T) {
	isolate(t)

	cfg := showConfig(t)
	assert.Equal(t, "grayscale,denoise,threshold,deskew", cfg.Preprocess.Steps)
	assert.Equal(t, "eng", cfg.Recognizer.Language)

	t.Setenv("SCANPREP_RECOGNIZER_LANGUAGE", "deu")
	t.Setenv("SCANPREP_PREPROCESS_STEPS", "grayscale")
	cfg = showConfig(t)
	assert.Equal(t, "deu", cfg.Recognizer.Language)
	assert.Equal(t, "grayscale", cfg.Preprocess.Steps)

	// Flags win over the environment.
	cfg = showConfig(t, "--steps", "grayscale,deskew", "--workers", "3", "-v")
	assert.Equal(t, "grayscale,deskew", cfg.Preprocess.Steps)
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.True(t, cfg.Verbose)
}

func TestConfigFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\npreprocess:\n  steps: grayscale,threshold:method=otsu\n"), 0o600))
	cfg := showConfig(t, "--config", path)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "grayscale,threshold:method=otsu", cfg.Preprocess.Steps)

	// scanprep.yaml in the working directory is found without --config.
	require.NoError(t, os.WriteFile("scanprep.yaml", []byte("recognizer:\n  language: fra\n"), 0o600))
	assert.Equal(t, "fra", showConfig(t).Recognizer.Language)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("preprocess:\n  steps: sharpen\n"), 0o600))
	_, _, err := run(t, "--config", bad, "config", "show")
	assert.ErrorContains(t, err, "invalid preprocess steps")

	_, _, err = run(t, "--config", filepath.Join(dir, "missing.yaml"), "config", "show")
	assert.ErrorContains(t, err, "does not exist")
}

func TestLanguagesCommand(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "languages")
	require.NoError(t, err)
	assert.Equal(t, "deu\neng\n", out)
}
