package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

// ParallelConfig holds configuration for parallel processing.
type ParallelConfig struct {
	MaxWorkers       int              // Number of parallel workers (0 = runtime.NumCPU())
	ContinueOnError  bool             // Keep going after a failed item
	ProgressCallback ProgressCallback // Optional progress reporting
	ErrorHandler     func(int, error) // Optional per-item error handler
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

var (
	errNoItems = errors.New("no items provided")
	errSkipped = errors.New("skipped after an earlier failure")
)

type jobResult[T any] struct {
	index int
	value T
	err   error
}

// runParallel runs fn for indices [0, n) on a worker pool and returns
// values in index order. Without ContinueOnError the first failure cancels
// dispatch of further items and queued items are dropped unrun. A cancelled
// ctx stops dispatching; running items finish.
func runParallel[T any](ctx context.Context, n int, cfg ParallelConfig, fn func(ctx context.Context, i int) (T, error)) ([]T, []error, error) {
	if n == 0 {
		return nil, nil, errNoItems
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, n)

	if cfg.ProgressCallback != nil {
		cfg.ProgressCallback.OnStart(n)
		defer cfg.ProgressCallback.OnComplete()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	results := make(chan jobResult[T], n)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				v, err := fn(runCtx, i)
				if err != nil && !cfg.ContinueOnError {
					cancel()
				}
				results <- jobResult[T]{index: i, value: v, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range n {
			if runCtx.Err() != nil {
				return
			}
			select {
			case jobs <- i:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	values := make([]T, n)
	errs := make([]error, n)
	done := 0
	for r := range results {
		values[r.index] = r.value
		errs[r.index] = r.err
		done++
		if r.err != nil {
			if cfg.ProgressCallback != nil {
				cfg.ProgressCallback.OnError(r.index, r.err)
			}
			if cfg.ErrorHandler != nil {
				cfg.ErrorHandler(r.index, r.err)
			}
			if !cfg.ContinueOnError {
				cancel()
			}
		}
		if cfg.ProgressCallback != nil {
			cfg.ProgressCallback.OnProgress(done, n)
		}
	}

	if err := ctx.Err(); err != nil {
		return values, errs, err
	}
	// Items interrupted by our own cancellation are not the cause.
	first := -1
	for i, err := range errs {
		if err == nil {
			continue
		}
		if first < 0 {
			first = i
		}
		if !errors.Is(err, context.Canceled) {
			return values, errs, fmt.Errorf("item %d: %w", i, err)
		}
	}
	if first >= 0 {
		return values, errs, fmt.Errorf("item %d: %w", first, errs[first])
	}
	return values, errs, nil
}

// ProcessImagesParallel runs ProcessImage over images on a worker pool.
// Results keep input order; failed items are nil. The returned error is the
// first failure by index unless ContinueOnError is set, in which case it is
// nil and failures are reported through the callbacks.
func (p *Pipeline) ProcessImagesParallel(ctx context.Context, images []*raster.Image, outputs Outputs,
	opts recognizer.Options, cfg ParallelConfig,
) ([]*ImageResult, error) {
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = p.cfg.Workers
	}
	results, _, err := runParallel(ctx, len(images), cfg, func(ctx context.Context, i int) (*ImageResult, error) {
		return p.ProcessImage(ctx, images[i], outputs, opts)
	})
	return results, continueError(ctx, cfg, err)
}

// FileJob pairs an input with the output path of a preprocessed image.
type FileJob struct {
	Input  string
	Output string
}

// FileResult is the outcome of one FileJob.
type FileResult struct {
	FileJob
	Result   *ImageResult
	Err      error
	Duration time.Duration
}

// PreprocessFiles runs PreprocessFile for every job in parallel.
func (p *Pipeline) PreprocessFiles(ctx context.Context, jobs []FileJob, cfg ParallelConfig) ([]FileResult, error) {
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = p.cfg.Workers
	}
	out := make([]FileResult, len(jobs))
	_, errs, err := runParallel(ctx, len(jobs), cfg, func(ctx context.Context, i int) (struct{}, error) {
		start := time.Now()
		res, err := p.PreprocessFile(ctx, jobs[i].Input, jobs[i].Output)
		out[i] = FileResult{FileJob: jobs[i], Result: res, Err: err, Duration: time.Since(start)}
		return struct{}{}, err
	})
	for i := range out {
		if out[i].Input == "" {
			out[i] = FileResult{FileJob: jobs[i], Err: errSkipped}
			if i < len(errs) && errs[i] != nil {
				out[i].Err = errs[i]
			}
		}
	}
	return out, continueError(ctx, cfg, err)
}

// ProcessFilesParallel runs ProcessFile over paths.
func (p *Pipeline) ProcessFilesParallel(ctx context.Context, paths []string, outputs Outputs,
	opts recognizer.Options, cfg ParallelConfig,
) ([]*ImageResult, error) {
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = p.cfg.Workers
	}
	results, _, err := runParallel(ctx, len(paths), cfg, func(ctx context.Context, i int) (*ImageResult, error) {
		return p.ProcessFile(ctx, paths[i], outputs, opts)
	})
	return results, continueError(ctx, cfg, err)
}

// continueError drops per-item failures when the caller asked to continue.
func continueError(ctx context.Context, cfg ParallelConfig, err error) error {
	if err == nil || !cfg.ContinueOnError || ctx.Err() != nil {
		return err
	}
	if errors.Is(err, errNoItems) {
		return err
	}
	return nil
}
