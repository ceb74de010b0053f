//nolint:lll
package config

// Config represents the complete configuration for scanprep. It covers all
// commands (preprocess, ocr, pdf, serve) and is loaded from configuration
// files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	PDF        PDFConfig        `mapstructure:"pdf" yaml:"pdf" json:"pdf"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// PreprocessConfig contains the step chain and the parameters steps fall
// back to when the chain omits them.
type PreprocessConfig struct {
	Steps           string  `mapstructure:"steps" yaml:"steps" json:"steps"`
	BorderMargin    int     `mapstructure:"border_margin" yaml:"border_margin" json:"border_margin"`
	ThresholdMethod string  `mapstructure:"threshold_method" yaml:"threshold_method" json:"threshold_method"`
	BlockSize       int     `mapstructure:"block_size" yaml:"block_size" json:"block_size"`
	C               float64 `mapstructure:"c" yaml:"c" json:"c"`
}

// RecognizerConfig contains OCR engine settings.
type RecognizerConfig struct {
	Engine     string `mapstructure:"engine" yaml:"engine" json:"engine"`
	Binary     string `mapstructure:"binary" yaml:"binary" json:"binary"`
	Language   string `mapstructure:"language" yaml:"language" json:"language"`
	Config     string `mapstructure:"config" yaml:"config" json:"config"`
	Normalize  string `mapstructure:"normalize" yaml:"normalize" json:"normalize"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// PDFConfig contains document rendering settings.
type PDFConfig struct {
	Renderer string  `mapstructure:"renderer" yaml:"renderer" json:"renderer"`
	DPI      float64 `mapstructure:"dpi" yaml:"dpi" json:"dpi"`
	Format   string  `mapstructure:"format" yaml:"format" json:"format"`
	Pages    string  `mapstructure:"pages" yaml:"pages" json:"pages"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format    string `mapstructure:"format" yaml:"format" json:"format"`
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter" json:"delimiter"`
	File      string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Per-client rate limiting; zero limits are unlimited
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool   `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	ContinueOnError bool   `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Suffix          string `mapstructure:"suffix" yaml:"suffix" json:"suffix"`
	OutputDir       string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
}
