// Package pipeline composes preprocessing chains with recognition and
// document rendering.
package pipeline

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/MeKo-Tech/scanprep/internal/pdf"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

// Config holds configuration for the pipeline and its collaborators.
type Config struct {
	Steps        string // chain in ParseChain syntax
	StepDefaults StepDefaults
	Recognizer   recognizer.Config
	Renderer     string  // pdf renderer name
	DPI          float64 // pdf rendering resolution
	PageFormat   string  // rendered page image format
	Workers      int     // parallel workers for batches and PDF pages (0 = NumCPU)
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Steps:        DefaultSteps,
		StepDefaults: DefaultStepDefaults(),
		Recognizer:   recognizer.DefaultConfig(),
		Renderer:     pdf.RendererAuto,
		DPI:          pdf.DefaultDPI,
		PageFormat:   "png",
		Workers:      runtime.NumCPU(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg       Config
	rec       *recognizer.Recognizer
	renderer  pdf.Renderer
	observers []StepObserver
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFromConfig starts from an explicit configuration.
func NewBuilderFromConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithSteps sets the preprocessing chain.
func (b *Builder) WithSteps(steps string) *Builder {
	b.cfg.Steps = steps
	return b
}

// WithStepDefaults sets parameters used when a step string omits them.
func (b *Builder) WithStepDefaults(d StepDefaults) *Builder {
	b.cfg.StepDefaults = d
	return b
}

// WithEngine selects the recognition engine by registry name.
func (b *Builder) WithEngine(name string) *Builder {
	if name != "" {
		b.cfg.Recognizer.Engine = name
	}
	return b
}

// WithEngineBinary sets the executable of CLI engines.
func (b *Builder) WithEngineBinary(path string) *Builder {
	if path != "" {
		b.cfg.Recognizer.Binary = path
	}
	return b
}

// WithLanguage sets the default recognition language.
func (b *Builder) WithLanguage(lang string) *Builder {
	if lang != "" {
		b.cfg.Recognizer.Language = lang
	}
	return b
}

// WithEngineOptions sets the default free-form engine flags.
func (b *Builder) WithEngineOptions(opts string) *Builder {
	b.cfg.Recognizer.Options = opts
	return b
}

// WithRecognizer injects a ready recognizer, bypassing the engine registry.
func (b *Builder) WithRecognizer(r *recognizer.Recognizer) *Builder {
	b.rec = r
	return b
}

// WithRenderer injects a PDF renderer.
func (b *Builder) WithRenderer(r pdf.Renderer) *Builder {
	b.renderer = r
	return b
}

// WithDPI sets the PDF rendering resolution.
func (b *Builder) WithDPI(dpi float64) *Builder {
	b.cfg.DPI = dpi
	return b
}

// WithWorkers sets the worker count for parallel work.
func (b *Builder) WithWorkers(n int) *Builder {
	b.cfg.Workers = n
	return b
}

// WithObserver adds a StepObserver notified for every applied step.
func (b *Builder) WithObserver(o StepObserver) *Builder {
	if o != nil {
		b.observers = append(b.observers, o)
	}
	return b
}

// Validate checks the configuration without building anything.
func (b *Builder) Validate() error {
	if b.cfg.DPI < 0 {
		return fmt.Errorf("dpi must be non-negative, got %g", b.cfg.DPI)
	}
	if b.cfg.Workers < 0 {
		return errors.New("workers must be non-negative")
	}
	if _, err := ParseChain(b.cfg.Steps, b.cfg.StepDefaults); err != nil {
		return fmt.Errorf("invalid steps: %w", err)
	}
	return nil
}

// Pipeline applies a preprocessing chain and optionally recognizes the result.
type Pipeline struct {
	cfg        Config
	Chain      *Chain
	Recognizer *recognizer.Recognizer
	Renderer   pdf.Renderer
	observers  []StepObserver
}

// Build initializes the pipeline. Engine availability is not checked here so
// preprocessing works without an OCR engine installed.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	chain, err := ParseChain(b.cfg.Steps, b.cfg.StepDefaults)
	if err != nil {
		return nil, err
	}
	rec := b.rec
	if rec == nil {
		rec, err = recognizer.New(b.cfg.Recognizer)
		if err != nil {
			return nil, fmt.Errorf("init recognizer: %w", err)
		}
	}
	renderer := b.renderer
	if renderer == nil {
		renderer, err = pdf.NewRenderer(b.cfg.Renderer)
		if err != nil {
			return nil, fmt.Errorf("init pdf renderer: %w", err)
		}
	}
	return &Pipeline{
		cfg:        b.cfg,
		Chain:      chain,
		Recognizer: rec,
		Renderer:   renderer,
		observers:  append([]StepObserver(nil), b.observers...),
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// WithChain returns a shallow copy of p using chain.
func (p *Pipeline) WithChain(chain *Chain) *Pipeline {
	cp := *p
	cp.Chain = chain
	return &cp
}

// WithObservers returns a shallow copy of p that also notifies obs for
// every applied step.
func (p *Pipeline) WithObservers(obs ...StepObserver) *Pipeline {
	cp := *p
	cp.observers = append(append([]StepObserver(nil), p.observers...), obs...)
	return &cp
}

// Info returns a map with key pipeline properties.
func (p *Pipeline) Info() map[string]interface{} {
	info := map[string]interface{}{
		"steps":   p.Chain.String(),
		"workers": p.cfg.Workers,
		"dpi":     p.cfg.DPI,
	}
	if p.Recognizer != nil {
		info["engine"] = p.Recognizer.Engine().Name()
		info["language"] = p.cfg.Recognizer.Language
	}
	return info
}
