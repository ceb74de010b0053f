package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanprep/internal/preprocess"
	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// StepObserver is notified after every step of a chain. index is 1-based.
type StepObserver interface {
	ObserveStep(index, total int, name string, elapsed time.Duration, err error)
}

// StepObserverFunc adapts a function to StepObserver.
type StepObserverFunc func(index, total int, name string, elapsed time.Duration, err error)

// ObserveStep implements StepObserver.
func (f StepObserverFunc) ObserveStep(index, total int, name string, elapsed time.Duration, err error) {
	f(index, total, name, elapsed, err)
}

// Chain is an ordered list of transforms. The zero chain is a no-op.
type Chain struct {
	steps []Step
}

// NewChain returns an empty chain.
func NewChain() *Chain { return &Chain{} }

// Add appends steps.
func (c *Chain) Add(steps ...Step) *Chain {
	c.steps = append(c.steps, steps...)
	return c
}

// Grayscale appends a grayscale step.
func (c *Chain) Grayscale() *Chain { return c.Add(GrayscaleStep()) }

// Denoise appends a denoise step.
func (c *Chain) Denoise() *Chain { return c.Add(DenoiseStep()) }

// Threshold appends a threshold step.
func (c *Chain) Threshold(method preprocess.ThresholdMethod, blockSize int, cst float64) *Chain {
	return c.Add(ThresholdStep(method, blockSize, cst))
}

// Deskew appends a deskew step.
func (c *Chain) Deskew() *Chain { return c.Add(DeskewStep()) }

// RemoveBorders appends a border removal step.
func (c *Chain) RemoveBorders(margin int) *Chain { return c.Add(RemoveBordersStep(margin)) }

// Resize appends a resize step.
func (c *Chain) Resize(opts preprocess.ResizeOptions) *Chain { return c.Add(ResizeStep(opts)) }

// Steps returns a copy of the steps.
func (c *Chain) Steps() []Step { return append([]Step(nil), c.steps...) }

// Len is the number of steps.
func (c *Chain) Len() int { return len(c.steps) }

// Names lists step names in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Name
	}
	return names
}

// String renders the chain in ParseChain syntax.
func (c *Chain) String() string {
	parts := make([]string, len(c.steps))
	for i, s := range c.steps {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// Apply runs every step in order. It stops at the first failing step and
// discards partial output. ctx is checked between steps; a running transform
// is not interrupted.
func (c *Chain) Apply(ctx context.Context, img *raster.Image, observers ...StepObserver) (*raster.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, &raster.ProcessingError{Stage: "chain", Kind: raster.ErrInvalidArgument, Err: err}
	}
	cur := img
	total := len(c.steps)
	for i, s := range c.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		out, err := s.Apply(cur)
		elapsed := time.Since(start)
		for _, o := range observers {
			if o != nil {
				o.ObserveStep(i+1, total, s.Name, elapsed, err)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, s.Name, err)
		}
		slog.Debug("Applied preprocessing step",
			"step", s.Name,
			"duration", elapsed,
			"width", out.Width,
			"height", out.Height,
		)
		cur = out
	}
	return cur, nil
}
