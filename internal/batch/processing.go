package batch

import (
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/scanprep/internal/pipeline"
)

// buildJobs pairs every input with its output path.
func buildJobs(files []string, cfg *Config) []pipeline.FileJob {
	jobs := make([]pipeline.FileJob, len(files))
	for i, f := range files {
		jobs[i] = pipeline.FileJob{
			Input:  f,
			Output: pipeline.OutputPath(f, cfg.OutDir, cfg.Suffix, cfg.Ext),
		}
	}
	return jobs
}

// parallelConfig translates batch settings into worker pool settings.
func parallelConfig(cfg *Config, files []string) pipeline.ParallelConfig {
	pc := pipeline.ParallelConfig{
		MaxWorkers:      cfg.Workers,
		ContinueOnError: cfg.ContinueOnError,
		ErrorHandler: func(i int, err error) {
			slog.Warn("Failed to process image", "file", files[i], "error", err)
		},
	}
	if cfg.ShowProgress && !cfg.Quiet {
		var w io.Writer = os.Stderr
		if cfg.Progress != nil {
			w = cfg.Progress
		}
		console := pipeline.NewConsoleProgressCallback(w, "Processing: ")
		if cfg.ProgressInterval > 0 {
			console = console.WithUpdateInterval(cfg.ProgressInterval)
		}
		pc.ProgressCallback = console
	} else if cfg.Verbose {
		pc.ProgressCallback = pipeline.NewLogProgressCallback(slog.Default(), slog.LevelInfo)
	}
	return pc
}
