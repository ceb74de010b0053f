// Package recognizer wraps external OCR engines behind a small interface.
// Engines receive a preprocessed raster plus a language and a free-form
// engine configuration string.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// ErrEngineUnavailable reports that the recognition engine binary or runtime
// is missing. Callers treat it as a reportable, non-fatal condition.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// DefaultLanguage is used when no language is configured and as the fallback
// language listing.
const DefaultLanguage = "eng"

// Options are per-call recognition parameters.
type Options struct {
	Language string // engine language identifier, e.g., "eng" or "deu+eng"
	Config   string // free-form engine flags, e.g., "--psm 6"
}

// Token is one row of structured recognition output.
type Token struct {
	Level      int     `json:"level"`
	Page       int     `json:"page"`
	Block      int     `json:"block"`
	Paragraph  int     `json:"paragraph"`
	Line       int     `json:"line"`
	Word       int     `json:"word"`
	Left       int     `json:"left"`
	Top        int     `json:"top"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
	Text       string  `json:"text"`
}

// CharBox is a character-level bounding box. Coordinates use a bottom-left
// origin as reported by the engine.
type CharBox struct {
	Char string `json:"char"`
	X1   int    `json:"x1"`
	Y1   int    `json:"y1"`
	X2   int    `json:"x2"`
	Y2   int    `json:"y2"`
	Page int    `json:"page"`
}

// Engine is an OCR backend.
type Engine interface {
	Name() string
	// Available returns an error wrapping ErrEngineUnavailable when the
	// engine cannot run.
	Available(ctx context.Context) error
	Text(ctx context.Context, img *raster.Image, opts Options) (string, error)
	Data(ctx context.Context, img *raster.Image, opts Options) ([]Token, error)
	Boxes(ctx context.Context, img *raster.Image, opts Options) ([]CharBox, error)
	Languages(ctx context.Context) ([]string, error)
}

// Config selects and configures an engine.
type Config struct {
	Engine    string        // registered engine name
	Binary    string        // executable for CLI engines
	Language  string        // default language
	Options   string        // default engine flags
	Normalize string        // "nfc", "nfkc" or "none"
	Timeout   time.Duration // per call; zero disables
}

// DefaultConfig returns the configuration of the CLI Tesseract engine.
func DefaultConfig() Config {
	return Config{
		Engine:    EngineTesseract,
		Binary:    "tesseract",
		Language:  DefaultLanguage,
		Normalize: NormalizeNFC,
		Timeout:   2 * time.Minute,
	}
}

// Factory builds an engine from a configuration.
type Factory func(cfg Config) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an engine available under name. Registering a name twice
// replaces the earlier factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Engines lists registered engine names in sorted order.
func Engines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the configured engine wrapped in a Recognizer.
func New(cfg Config) (*Recognizer, error) {
	if cfg.Engine == "" {
		cfg.Engine = EngineTesseract
	}
	form, err := ParseNormalization(cfg.Normalize)
	if err != nil {
		return nil, err
	}
	cfg.Normalize = form

	registryMu.RLock()
	f, ok := registry[cfg.Engine]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ocr engine %q (available: %v)", cfg.Engine, Engines())
	}
	e, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s engine: %w", cfg.Engine, err)
	}
	return NewRecognizer(e, cfg), nil
}

// Recognizer applies configured defaults and text normalization around an
// Engine.
type Recognizer struct {
	engine Engine
	cfg    Config
}

// NewRecognizer wraps an existing engine.
func NewRecognizer(e Engine, cfg Config) *Recognizer {
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return &Recognizer{engine: e, cfg: cfg}
}

// Engine returns the wrapped engine.
func (r *Recognizer) Engine() Engine { return r.engine }

// Available reports whether the engine can run.
func (r *Recognizer) Available(ctx context.Context) error { return r.engine.Available(ctx) }

func (r *Recognizer) options(opts Options) Options {
	if opts.Language == "" {
		opts.Language = r.cfg.Language
	}
	if opts.Config == "" {
		opts.Config = r.cfg.Options
	}
	return opts
}

func (r *Recognizer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.Timeout)
}

// Text recognizes img as plain text.
func (r *Recognizer) Text(ctx context.Context, img *raster.Image, opts Options) (string, error) {
	if err := img.Validate(); err != nil {
		return "", &raster.ProcessingError{Stage: "recognize", Kind: raster.ErrInvalidArgument, Err: err}
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	s, err := r.engine.Text(ctx, img, r.options(opts))
	if err != nil {
		return "", err
	}
	return Normalize(s, r.cfg.Normalize), nil
}

// Data recognizes img as a token table.
func (r *Recognizer) Data(ctx context.Context, img *raster.Image, opts Options) ([]Token, error) {
	if err := img.Validate(); err != nil {
		return nil, &raster.ProcessingError{Stage: "recognize", Kind: raster.ErrInvalidArgument, Err: err}
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	tokens, err := r.engine.Data(ctx, img, r.options(opts))
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		tokens[i].Text = Normalize(tokens[i].Text, r.cfg.Normalize)
	}
	return tokens, nil
}

// Boxes returns character boxes for img.
func (r *Recognizer) Boxes(ctx context.Context, img *raster.Image, opts Options) ([]CharBox, error) {
	if err := img.Validate(); err != nil {
		return nil, &raster.ProcessingError{Stage: "recognize", Kind: raster.ErrInvalidArgument, Err: err}
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.engine.Boxes(ctx, img, r.options(opts))
}

// Languages lists the engine's installed languages.
func (r *Recognizer) Languages(ctx context.Context) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.engine.Languages(ctx)
}
