package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/scanprep/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Output settings
	OutDir  string // empty writes next to each input
	Suffix  string // appended to processed file names
	Ext     string // output extension; empty keeps the input's
	Format  string // text, json or csv for recognition results
	Quiet   bool
	Verbose bool

	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress     bool
	ProgressInterval time.Duration
	Progress         io.Writer // defaults to stderr
}

// DefaultConfig returns the batch defaults.
func DefaultConfig() *Config {
	return &Config{
		Suffix:           pipeline.ProcessedSuffix,
		Format:           "text",
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return errors.New("workers must be non-negative")
	}
	if c.OutDir == "" && c.Suffix == "" && c.Ext == "" {
		return errors.New("an output directory, suffix or extension is required to avoid overwriting inputs")
	}
	switch c.Format {
	case "", "text", "json", "csv":
	default:
		return fmt.Errorf("unsupported batch format %q", c.Format)
	}
	return nil
}

// Result holds the result of batch processing.
type Result struct {
	Files       []pipeline.FileResult
	OCR         []*pipeline.ImageResult
	ImagePaths  []string
	Duration    time.Duration
	WorkerCount int
}

// Failed counts inputs that did not produce a result.
func (r *Result) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	if r.Files == nil {
		for _, res := range r.OCR {
			if res == nil {
				n++
			}
		}
	}
	return n
}

// FormatResults formats the recognition results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.OCR, r.ImagePaths, format)
}

// SaveResults writes the formatted results to outputFile, or to w when no
// file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	total := len(r.ImagePaths)
	failed := r.Failed()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", total)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", total-failed)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", failed)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if total > 0 && r.Duration > 0 {
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", (r.Duration / time.Duration(total)).Round(time.Millisecond))
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(total)/r.Duration.Seconds())
	}
}
