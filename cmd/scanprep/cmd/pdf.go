package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/scanprep/internal/export"
	"github.com/MeKo-Tech/scanprep/internal/pdf"
	"github.com/MeKo-Tech/scanprep/internal/pipeline"
)

func newPDFCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "pdf <file>",
		Short: "Preprocess and recognize the pages of a PDF",
		Long: `Render the pages of a PDF, preprocess each one and export the result.

Formats:
  text  recognized text, pages separated by a blank line
  json  per-page results
  pdf   a new PDF built from the cleaned page images (no OCR)

Examples:
  scanprep pdf scan.pdf
  scanprep pdf scan.pdf --pages 1-3,7 --format json
  scanprep pdf scan.pdf --format pdf --output clean.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: runPDF,
	}
	c.Flags().String("pages", "", "page selection, e.g. \"1-3,7\" (default: all)")
	c.Flags().String("password", "", "user password of an encrypted document")
	c.Flags().Float64("dpi", 0, "render resolution (default from config)")
	c.Flags().StringP("format", "f", "", "output format: text, json or pdf (default from config)")
	c.Flags().String("output", "", "write to this file instead of stdout")
	c.Flags().String("pages-dir", "", "keep rendered page images in this directory")
	return c
}

func runPDF(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	f := cmd.Flags()

	if f.Changed("dpi") {
		cfg.PDF.DPI, _ = f.GetFloat64("dpi")
	}
	pageSpec := cfg.PDF.Pages
	if f.Changed("pages") {
		pageSpec, _ = f.GetString("pages")
	}
	pages, err := pdf.ParsePageRange(pageSpec)
	if err != nil {
		return fmt.Errorf("invalid page range: %w", err)
	}

	format := cfg.Output.Format
	if f.Changed("format") {
		format, _ = f.GetString("format")
	}
	if format, err = export.ParseFormat(format); err != nil {
		return err
	}
	var outputs pipeline.Outputs
	switch format {
	case export.FormatText, export.FormatJSON:
		outputs = pipeline.OutputText
	case export.FormatPDF:
	default:
		return fmt.Errorf("unsupported pdf output format %q (use text, json or pdf)", format)
	}

	output := cfg.Output.File
	if f.Changed("output") {
		output, _ = f.GetString("output")
	}
	if format == export.FormatPDF && output == "" {
		return errors.New("--output is required for pdf output")
	}
	password, _ := f.GetString("password")
	pagesDir, _ := f.GetString("pages-dir")

	pl, err := buildPipeline(cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	res, err := pl.ProcessPDF(cmd.Context(), args[0], pipeline.PDFOptions{
		Pages:    pages,
		Password: password,
		OutDir:   pagesDir,
		Outputs:  outputs,
		Parallel: pipeline.ParallelConfig{MaxWorkers: cfg.Batch.Workers},
	})
	if err != nil {
		return err
	}
	slog.Debug("Processed PDF", "file", args[0], "pages", res.TotalPages)

	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = file.Close() }()
		w = file
	}

	switch format {
	case export.FormatPDF:
		return export.WritePDF(w, res.Images())
	case export.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		return export.WriteText(w, res.Text())
	}
}
