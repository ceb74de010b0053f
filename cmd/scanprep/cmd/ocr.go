package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/scanprep/internal/batch"
	"github.com/MeKo-Tech/scanprep/internal/config"
	"github.com/MeKo-Tech/scanprep/internal/export"
	"github.com/MeKo-Tech/scanprep/internal/pipeline"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

func newOCRCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "ocr <files or directories...>",
		Short: "Preprocess images and recognize their text",
		Long: `Preprocess every image and pass it to the OCR engine.

Formats:
  text  recognized text; several inputs are separated by "# file" headers
  json  full results including word tokens and timings
  csv   one row per recognized word (tsv and xml work the same way)
  xlsx  the csv table as a spreadsheet; needs --output

With several inputs the table formats gain a leading "file" column.

Examples:
  scanprep ocr page.png
  scanprep ocr scans/ --format csv --output words.csv
  scanprep ocr scans/ --format xlsx --output words.xlsx
  scanprep ocr page.png --boxes --format tsv -l deu`,
		Args: cobra.MinimumNArgs(1),
		RunE: runOCR,
	}
	c.Flags().StringP("format", "f", "", "output format: text, json, csv, tsv, xml or xlsx (default from config)")
	c.Flags().String("output", "", "write results to this file instead of stdout")
	c.Flags().String("delimiter", "", "csv delimiter (default from config)")
	c.Flags().Bool("boxes", false, "export character boxes instead of word tokens")
	addDiscoveryFlags(c)
	return c
}

// ocrOptions collects the resolved output settings of the ocr command.
type ocrOptions struct {
	format string
	output string
	boxes  bool
	opts   export.Options
}

func resolveOCROptions(cmd *cobra.Command, cfg *config.Config) (ocrOptions, error) {
	f := cmd.Flags()
	o := ocrOptions{output: cfg.Output.File}

	format := cfg.Output.Format
	if f.Changed("format") {
		format, _ = f.GetString("format")
	}
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return o, err
	}
	if parsed == export.FormatPDF {
		return o, errors.New("pdf output is only available for the pdf command")
	}
	o.format = parsed

	if f.Changed("output") {
		o.output, _ = f.GetString("output")
	}
	if export.Binary(o.format) && o.output == "" {
		return o, fmt.Errorf("--output is required for %s output", o.format)
	}
	if f.Changed("delimiter") {
		cfg.Output.Delimiter, _ = f.GetString("delimiter")
	}
	if o.opts.Delimiter, err = cfg.Delimiter(); err != nil {
		return o, err
	}
	o.boxes, _ = f.GetBool("boxes")
	return o, nil
}

// outputs returns the recognition results the format needs.
func (o ocrOptions) outputs() pipeline.Outputs {
	var out pipeline.Outputs
	switch o.format {
	case export.FormatText:
		return pipeline.OutputText
	case export.FormatJSON:
		out = pipeline.OutputText | pipeline.OutputData
	default:
		if !o.boxes {
			return pipeline.OutputData
		}
	}
	if o.boxes {
		out |= pipeline.OutputBoxes
	}
	return out
}

func runOCR(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	o, err := resolveOCROptions(cmd, cfg)
	if err != nil {
		return err
	}
	bcfg := batchConfig(cmd, cfg)

	pl, err := buildPipeline(cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	res, err := batch.Recognize(cmd.Context(), pl, args, bcfg, o.outputs(), recognizer.Options{})
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if o.output != "" {
		file, err := os.Create(o.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = file.Close() }()
		w = file
	}
	if err := writeOCRResults(w, res, o); err != nil {
		return err
	}
	if n := res.Failed(); n > 0 {
		return fmt.Errorf("%d of %d images failed", n, len(res.ImagePaths))
	}
	return nil
}

// writeOCRResults renders a batch result in the requested format.
func writeOCRResults(w io.Writer, res *batch.Result, o ocrOptions) error {
	switch o.format {
	case export.FormatText:
		if len(res.OCR) == 1 && res.OCR[0] != nil {
			return export.WriteText(w, res.OCR[0].Text)
		}
		return res.SaveResults(w, "text", "", true)
	case export.FormatJSON:
		return res.SaveResults(w, "json", "", true)
	}

	multi := len(res.ImagePaths) > 1
	var table export.Table
	for i, r := range res.OCR {
		if r == nil {
			continue
		}
		t := export.TokenTable(r.Tokens)
		if o.boxes {
			t = export.BoxTable(r.Boxes)
		}
		if multi {
			t = t.WithLeadingColumn("file", res.ImagePaths[i])
		}
		var err error
		if table, err = table.Append(t); err != nil {
			return err
		}
	}
	if len(table.Columns) == 0 {
		table = export.TokenTable(nil)
		if o.boxes {
			table = export.BoxTable(nil)
		}
		if multi {
			table = table.WithLeadingColumn("file", "")
		}
	}
	return export.Write(w, o.format, "", table, o.opts)
}
