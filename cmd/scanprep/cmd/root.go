package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/scanprep/internal/config"
	"github.com/MeKo-Tech/scanprep/internal/pipeline"
	"github.com/MeKo-Tech/scanprep/internal/version"
)

var (
	// Configuration file path.
	cfgFile string
	// Configuration resolved for the running command.
	globalConfig *config.Config
)

// buildPipeline constructs the pipeline shared by the commands. Tests swap
// it to inject a fake OCR engine.
var buildPipeline = func(cfg *config.Config) (*pipeline.Pipeline, error) {
	return pipeline.NewBuilderFromConfig(cfg.ToPipelineConfig()).Build()
}

// persistentBindings maps config keys to root flags.
var persistentBindings = map[string]string{
	"verbose":             "verbose",
	"log_level":           "log-level",
	"preprocess.steps":    "steps",
	"recognizer.engine":   "engine",
	"recognizer.language": "language",
	"recognizer.config":   "engine-config",
	"batch.workers":       "workers",
}

func newRootCmd() *cobra.Command {
	cfgFile = ""
	globalConfig = nil

	root := &cobra.Command{
		Use:   "scanprep",
		Short: "Image preprocessing for OCR",
		Long: `scanprep cleans up scanned pages before text recognition.

It converts images to grayscale, removes noise, binarizes, corrects skew,
trims borders and rescales, then optionally hands the result to an OCR
engine. Whole directories and PDF documents are processed in parallel.

Examples:
  scanprep preprocess scans/ -o cleaned/
  scanprep ocr page.png --steps "grayscale,threshold:method=otsu,deskew"
  scanprep pdf contract.pdf --format json
  scanprep serve --port 8080`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "scanprep version "+version.String())
				return nil
			}
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/scanprep, /etc/scanprep)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("steps", "", "preprocessing chain, e.g. \"grayscale,denoise,threshold:method=otsu,deskew\"")
	pf.String("engine", "", "OCR engine (tesseract, gosseract)")
	pf.StringP("language", "l", "", "OCR language, e.g. eng or deu+eng")
	pf.String("engine-config", "", "extra engine flags, e.g. \"--psm 6\"")
	pf.IntP("workers", "w", 0, "parallel workers (0 = number of CPUs)")
	root.Flags().Bool("version", false, "print version information and exit")

	root.AddCommand(
		newPreprocessCmd(),
		newOCRCmd(),
		newPDFCmd(),
		newLanguagesCmd(),
		newServeCmd(),
		newConfigCmd(),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns a fresh command tree for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return newRootCmd()
}

// initConfig loads file, environment and flag settings into globalConfig
// and installs the logger.
func initConfig(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	flags := cmd.Root().PersistentFlags()
	for key, name := range persistentBindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	cfg, err := config.NewLoaderWithViper(v).LoadWithFile(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	globalConfig = cfg
	setupLogging(cfg, cmd.ErrOrStderr())
	return nil
}

// setupLogging writes JSON logs to w; stdout is reserved for results.
func setupLogging(cfg *config.Config, w io.Writer) {
	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})))
}

// GetConfig returns the configuration of the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		d := config.DefaultConfig()
		return &d
	}
	return globalConfig
}
