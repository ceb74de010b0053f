package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/scanprep/internal/preprocess"
	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// Step names understood by ParseChain.
const (
	StepGrayscale     = "grayscale"
	StepDenoise       = "denoise"
	StepThreshold     = "threshold"
	StepDeskew        = "deskew"
	StepRemoveBorders = "remove_borders"
	StepResize        = "resize"
)

// DefaultSteps is the chain applied when none is configured.
const DefaultSteps = "grayscale,denoise,threshold,deskew"

// Step is one named transform with its parameters.
type Step struct {
	Name   string
	Params map[string]string
	apply  func(*raster.Image) (*raster.Image, error)
}

// Apply runs the transform.
func (s Step) Apply(img *raster.Image) (*raster.Image, error) { return s.apply(img) }

// String renders the step in ParseChain syntax with sorted parameters.
func (s Step) String() string {
	if len(s.Params) == 0 {
		return s.Name
	}
	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(s.Name)
	for _, k := range keys {
		b.WriteString(":")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(s.Params[k])
	}
	return b.String()
}

// StepDefaults fill parameters that a step string leaves out.
type StepDefaults struct {
	ThresholdMethod preprocess.ThresholdMethod
	BlockSize       int
	C               float64
	BorderMargin    int
}

// DefaultStepDefaults mirrors the transform defaults.
func DefaultStepDefaults() StepDefaults {
	return StepDefaults{
		ThresholdMethod: preprocess.ThresholdAdaptive,
		BlockSize:       preprocess.DefaultBlockSize,
		C:               preprocess.DefaultC,
		BorderMargin:    preprocess.DefaultBorderMargin,
	}
}

// GrayscaleStep converts to one channel.
func GrayscaleStep() Step {
	return Step{Name: StepGrayscale, apply: preprocess.Grayscale}
}

// DenoiseStep applies non-local means denoising.
func DenoiseStep() Step {
	return Step{Name: StepDenoise, apply: preprocess.Denoise}
}

// ThresholdStep binarizes with method.
func ThresholdStep(method preprocess.ThresholdMethod, blockSize int, c float64) Step {
	return Step{
		Name: StepThreshold,
		Params: map[string]string{
			"method":     string(method),
			"block_size": strconv.Itoa(blockSize),
			"c":          strconv.FormatFloat(c, 'g', -1, 64),
		},
		apply: func(img *raster.Image) (*raster.Image, error) {
			return preprocess.Threshold(img, method, blockSize, c)
		},
	}
}

// DeskewStep straightens text lines.
func DeskewStep() Step {
	return Step{Name: StepDeskew, apply: preprocess.Deskew}
}

// RemoveBordersStep crops to the largest content region plus margin.
func RemoveBordersStep(margin int) Step {
	return Step{
		Name:   StepRemoveBorders,
		Params: map[string]string{"margin": strconv.Itoa(margin)},
		apply: func(img *raster.Image) (*raster.Image, error) {
			return preprocess.RemoveBorders(img, margin)
		},
	}
}

// ResizeStep scales the image; see preprocess.ResizeOptions for precedence.
func ResizeStep(opts preprocess.ResizeOptions) Step {
	params := map[string]string{}
	if opts.Width != 0 {
		params["width"] = strconv.Itoa(opts.Width)
	}
	if opts.Height != 0 {
		params["height"] = strconv.Itoa(opts.Height)
	}
	if opts.Scale != 0 {
		params["scale"] = strconv.FormatFloat(opts.Scale, 'g', -1, 64)
	}
	return Step{
		Name:   StepResize,
		Params: params,
		apply: func(img *raster.Image) (*raster.Image, error) {
			return preprocess.Resize(img, opts)
		},
	}
}

// ParseStep parses one "name[:key=value...]" token.
func ParseStep(token string, defaults StepDefaults) (Step, error) {
	parts := strings.Split(strings.TrimSpace(token), ":")
	name := strings.ToLower(strings.TrimSpace(parts[0]))
	params := map[string]string{}
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if !ok || k == "" {
			return Step{}, raster.Invalidf("chain", "step %q: parameter %q is not key=value", name, p)
		}
		params[k] = strings.TrimSpace(v)
	}
	pp := paramParser{step: name, params: params}

	var step Step
	switch name {
	case StepGrayscale, "gray":
		step = GrayscaleStep()
	case StepDenoise:
		step = DenoiseStep()
	case StepDeskew:
		step = DeskewStep()
	case StepThreshold:
		method := preprocess.ThresholdMethod(pp.text("method", string(defaults.ThresholdMethod)))
		if _, err := preprocess.ParseThresholdMethod(string(method)); err != nil {
			return Step{}, err
		}
		step = ThresholdStep(method, pp.integer("block_size", defaults.BlockSize), pp.number("c", defaults.C))
	case StepRemoveBorders, "borders":
		step = RemoveBordersStep(pp.integer("margin", defaults.BorderMargin))
	case StepResize:
		step = ResizeStep(preprocess.ResizeOptions{
			Width:  pp.integer("width", 0),
			Height: pp.integer("height", 0),
			Scale:  pp.number("scale", 0),
		})
	case "":
		return Step{}, raster.Invalidf("chain", "empty step")
	default:
		return Step{}, raster.Invalidf("chain", "unknown step %q", name)
	}
	if err := pp.finish(); err != nil {
		return Step{}, err
	}
	return step, nil
}

// paramParser reads typed parameters and remembers the first failure and any
// unused keys.
type paramParser struct {
	step   string
	params map[string]string
	used   map[string]bool
	err    error
}

func (p *paramParser) raw(key string) (string, bool) {
	if p.used == nil {
		p.used = map[string]bool{}
	}
	p.used[key] = true
	v, ok := p.params[key]
	return v, ok
}

func (p *paramParser) text(key, def string) string {
	if v, ok := p.raw(key); ok {
		return v
	}
	return def
}

func (p *paramParser) integer(key string, def int) int {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && p.err == nil {
		p.err = raster.Invalidf("chain", "step %q: %s=%q is not an integer", p.step, key, v)
	}
	return n
}

func (p *paramParser) number(key string, def float64) float64 {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil && p.err == nil {
		p.err = raster.Invalidf("chain", "step %q: %s=%q is not a number", p.step, key, v)
	}
	return f
}

func (p *paramParser) finish() error {
	if p.err != nil {
		return p.err
	}
	for k := range p.params {
		if !p.used[k] {
			return raster.Invalidf("chain", "step %q does not take parameter %q", p.step, k)
		}
	}
	return nil
}

// ParseChain parses a comma-separated step list such as
// "grayscale,denoise,threshold:method=otsu,deskew,resize:scale=2".
func ParseChain(s string, defaults StepDefaults) (*Chain, error) {
	c := NewChain()
	if strings.TrimSpace(s) == "" {
		return c, nil
	}
	for i, token := range strings.Split(s, ",") {
		step, err := ParseStep(token, defaults)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		c.steps = append(c.steps, step)
	}
	return c, nil
}
