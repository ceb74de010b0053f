package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "scanprep"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "SCANPREP"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so flag bindings
// made by the CLI are honoured.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on an isolated viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads the first config file found on the search paths, environment
// variables and defaults, then validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile loads configuration from configFile, or searches the
// standard paths when it is empty. A missing search-path file is not an
// error; a missing explicit file is.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation is LoadWithFile without the final Validate.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
		if err := l.v.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// SCANPREP_PREPROCESS_STEPS maps to preprocess.steps
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key; AutomaticEnv only resolves known keys
// during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("preprocess.steps", d.Preprocess.Steps)
	l.v.SetDefault("preprocess.border_margin", d.Preprocess.BorderMargin)
	l.v.SetDefault("preprocess.threshold_method", d.Preprocess.ThresholdMethod)
	l.v.SetDefault("preprocess.block_size", d.Preprocess.BlockSize)
	l.v.SetDefault("preprocess.c", d.Preprocess.C)

	l.v.SetDefault("recognizer.engine", d.Recognizer.Engine)
	l.v.SetDefault("recognizer.binary", d.Recognizer.Binary)
	l.v.SetDefault("recognizer.language", d.Recognizer.Language)
	l.v.SetDefault("recognizer.config", d.Recognizer.Config)
	l.v.SetDefault("recognizer.normalize", d.Recognizer.Normalize)
	l.v.SetDefault("recognizer.timeout_sec", d.Recognizer.TimeoutSec)

	l.v.SetDefault("pdf.renderer", d.PDF.Renderer)
	l.v.SetDefault("pdf.dpi", d.PDF.DPI)
	l.v.SetDefault("pdf.format", d.PDF.Format)
	l.v.SetDefault("pdf.pages", d.PDF.Pages)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.delimiter", d.Output.Delimiter)
	l.v.SetDefault("output.file", d.Output.File)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit_enabled", d.Server.RateLimitEnabled)
	l.v.SetDefault("server.requests_per_minute", d.Server.RequestsPerMinute)
	l.v.SetDefault("server.requests_per_hour", d.Server.RequestsPerHour)
	l.v.SetDefault("server.max_data_per_day", d.Server.MaxDataPerDay)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.recursive", d.Batch.Recursive)
	l.v.SetDefault("batch.continue_on_error", d.Batch.ContinueOnError)
	l.v.SetDefault("batch.suffix", d.Batch.Suffix)
	l.v.SetDefault("batch.output_dir", d.Batch.OutputDir)
}

// GetConfigSearchPaths returns the directories searched for scanprep.yaml,
// in priority order.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}
	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && configDir != "" {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}
	return append(paths, "/etc/scanprep")
}
