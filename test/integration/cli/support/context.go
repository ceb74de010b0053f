package support

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	Binary  string
	TempDir string
	EnvVars []string

	// Server management
	HTTPTestServer *HTTPTestServerWrapper

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   []byte
	LastHTTPHeaders    http.Header
}

// NewTestContext creates a new test context running binary.
func NewTestContext(binary string) (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "scanprep-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		Binary:  binary,
		TempDir: tempDir,
		// Keep the developer's config files out of the scenarios.
		EnvVars: []string{"HOME=" + tempDir, "XDG_CONFIG_HOME=" + tempDir},
	}, nil
}

// Cleanup stops the server and removes the scenario's temporary files.
func (testCtx *TestContext) Cleanup() error {
	testCtx.stopTestHTTPServer()
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// path resolves a scenario-relative path inside the temp directory.
func (testCtx *TestContext) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}

// substitute expands {tmp} in step arguments.
func (testCtx *TestContext) substitute(s string) string {
	return strings.ReplaceAll(s, "{tmp}", testCtx.TempDir)
}
