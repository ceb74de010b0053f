package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanprep/internal/config"
)

func TestServerConfigFlagOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "0.0.0.0"
	cfg.Preprocess.Steps = "grayscale"

	c := newServeCmd()
	require.NoError(t, c.Flags().Set("port", "9000"))
	require.NoError(t, c.Flags().Set("rate-limit-enabled", "true"))
	require.NoError(t, c.Flags().Set("requests-per-minute", "5"))
	require.NoError(t, c.Flags().Set("max-upload-size", "2"))

	sc, shutdown, err := serverConfig(c, &cfg)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", sc.Host)
	assert.Equal(t, 9000, sc.Port)
	assert.Equal(t, int64(2), sc.MaxUploadMB)
	assert.Equal(t, 10, shutdown)
	assert.True(t, sc.RateLimit.Enabled)
	assert.Equal(t, 5, sc.RateLimit.RequestsPerMinute)
	assert.Equal(t, 1000, sc.RateLimit.RequestsPerHour)
	assert.Equal(t, "grayscale", sc.PipelineConfig.Steps)
}

func TestServerConfigRejectsBadValues(t *testing.T) {
	for flag, value := range map[string]string{
		"port":                "70000",
		"timeout":             "0",
		"requests-per-minute": "-1",
	} {
		cfg := config.DefaultConfig()
		c := newServeCmd()
		require.NoError(t, c.Flags().Set(flag, value))
		_, _, err := serverConfig(c, &cfg)
		assert.Error(t, err, flag)
	}
}
