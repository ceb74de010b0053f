package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/scanprep/internal/batch"
	"github.com/MeKo-Tech/scanprep/internal/config"
)

// addDiscoveryFlags registers the file discovery and error handling flags
// shared by preprocess and ocr.
func addDiscoveryFlags(c *cobra.Command) {
	c.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	c.Flags().StringSlice("include", nil, "only process files matching these glob patterns")
	c.Flags().StringSlice("exclude", nil, "skip files matching these glob patterns")
	c.Flags().Bool("continue-on-error", false, "keep going when an image fails")
	c.Flags().Bool("progress", false, "show a progress bar on stderr")
	c.Flags().BoolP("quiet", "q", false, "suppress statistics and progress")
}

// batchConfig starts from the config file's batch section and applies the
// flags the user set explicitly.
func batchConfig(cmd *cobra.Command, cfg *config.Config) *batch.Config {
	b := cfg.ToBatchConfig()
	f := cmd.Flags()
	b.Progress = cmd.ErrOrStderr()

	if f.Changed("recursive") {
		b.Recursive, _ = f.GetBool("recursive")
	}
	if f.Changed("include") {
		b.IncludePatterns, _ = f.GetStringSlice("include")
	}
	if f.Changed("exclude") {
		b.ExcludePatterns, _ = f.GetStringSlice("exclude")
	}
	if f.Changed("continue-on-error") {
		b.ContinueOnError, _ = f.GetBool("continue-on-error")
	}
	b.ShowProgress, _ = f.GetBool("progress")
	b.Quiet, _ = f.GetBool("quiet")

	if f.Lookup("output-dir") != nil && f.Changed("output-dir") {
		b.OutDir, _ = f.GetString("output-dir")
	}
	if f.Lookup("suffix") != nil && f.Changed("suffix") {
		b.Suffix, _ = f.GetString("suffix")
	}
	if f.Lookup("ext") != nil {
		b.Ext, _ = f.GetString("ext")
	}
	return b
}
