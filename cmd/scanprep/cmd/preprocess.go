package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/scanprep/internal/batch"
)

func newPreprocessCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "preprocess <files or directories...>",
		Short: "Apply a preprocessing chain to images",
		Long: `Apply the preprocessing chain to every image and save the results.

Directories are scanned for supported images (png, jpg, tif, bmp, gif).
Outputs are written next to the inputs with a suffix, or into --output-dir.

Examples:
  scanprep preprocess page.png
  scanprep preprocess scans/ -r -o cleaned/ --ext png
  scanprep preprocess a.jpg b.jpg --steps "grayscale,threshold:method=otsu"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPreprocess,
	}
	c.Flags().StringP("output-dir", "o", "", "directory for processed images (default: next to each input)")
	c.Flags().String("suffix", "", "suffix appended to output file names (default \"_processed\")")
	c.Flags().String("ext", "", "output format extension (default: keep the input's)")
	addDiscoveryFlags(c)
	return c
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	bcfg := batchConfig(cmd, cfg)

	pl, err := buildPipeline(cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	slog.Debug("Preprocessing", "inputs", len(args), "steps", pl.Chain.String())

	res, err := batch.Preprocess(cmd.Context(), pl, args, bcfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, f := range res.Files {
		if f.Err != nil {
			slog.Error("Failed to preprocess image", "file", f.Input, "error", f.Err)
			continue
		}
		if !bcfg.Quiet {
			_, _ = fmt.Fprintf(out, "%s -> %s\n", f.Input, f.Output)
		}
	}
	res.PrintStats(out, bcfg.Quiet)

	if n := res.Failed(); n > 0 {
		return fmt.Errorf("%d of %d images failed", n, len(res.ImagePaths))
	}
	return nil
}
