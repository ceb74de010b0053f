// Package batch runs the pipeline over many image files.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/scanprep/internal/pipeline"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

func discover(args []string, cfg *Config) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	files, err := discoverImageFiles(args, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns, cfg.Suffix)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}
	return files, nil
}

func workerCount(pl *pipeline.Pipeline, cfg *Config) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return pl.Config().Workers
}

// Preprocess applies the pipeline's chain to every discovered image and
// saves the outputs.
func Preprocess(ctx context.Context, pl *pipeline.Pipeline, args []string, cfg *Config) (*Result, error) {
	files, err := discover(args, cfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := pl.PreprocessFiles(ctx, buildJobs(files, cfg), parallelConfig(cfg, files))
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}
	return &Result{
		Files:       results,
		ImagePaths:  files,
		Duration:    time.Since(start),
		WorkerCount: workerCount(pl, cfg),
	}, nil
}

// Recognize preprocesses and recognizes every discovered image.
func Recognize(ctx context.Context, pl *pipeline.Pipeline, args []string, cfg *Config,
	outputs pipeline.Outputs, opts recognizer.Options,
) (*Result, error) {
	files, err := discover(args, cfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := pl.ProcessFilesParallel(ctx, files, outputs, opts, parallelConfig(cfg, files))
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}
	return &Result{
		OCR:         results,
		ImagePaths:  files,
		Duration:    time.Since(start),
		WorkerCount: workerCount(pl, cfg),
	}, nil
}
