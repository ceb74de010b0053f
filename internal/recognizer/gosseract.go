//go:build gosseract

package recognizer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// EngineGosseract is the registry name of the in-process libtesseract engine.
const EngineGosseract = "gosseract"

func init() {
	Register(EngineGosseract, func(Config) (Engine, error) { return &Gosseract{}, nil })
}

// Gosseract binds libtesseract through cgo. A client is created per call.
type Gosseract struct{}

// Name implements Engine.
func (g *Gosseract) Name() string { return EngineGosseract }

// Available implements Engine.
func (g *Gosseract) Available(_ context.Context) error {
	if _, err := gosseract.GetAvailableLanguages(); err != nil {
		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	return nil
}

func (g *Gosseract) client(img *raster.Image, opts Options) (*gosseract.Client, error) {
	flags, err := ParseEngineFlags(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", raster.ErrInvalidArgument, err)
	}
	var buf bytes.Buffer
	if err := raster.Encode(&buf, img, ".png"); err != nil {
		return nil, err
	}

	c := gosseract.NewClient()
	lang := opts.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	if err := c.SetLanguage(lang); err != nil {
		_ = c.Close()
		return nil, err
	}
	if flags.HasPSM {
		if err := c.SetPageSegMode(gosseract.PageSegMode(flags.PSM)); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	for k, v := range flags.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Text implements Engine.
func (g *Gosseract) Text(ctx context.Context, img *raster.Image, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c, err := g.client(img, opts)
	if err != nil {
		return "", err
	}
	defer func() { _ = c.Close() }()
	return c.Text()
}

// Data implements Engine.
func (g *Gosseract) Data(ctx context.Context, img *raster.Image, opts Options) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := g.client(img, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()

	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, err
	}
	tokens := make([]Token, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		tokens = append(tokens, Token{
			Level: 5, Page: 1,
			Block: b.BlockNum, Paragraph: b.ParNum, Line: b.LineNum, Word: b.WordNum,
			Left: b.Box.Min.X, Top: b.Box.Min.Y, Width: b.Box.Dx(), Height: b.Box.Dy(),
			Confidence: b.Confidence,
			Text:       b.Word,
		})
	}
	return tokens, nil
}

// Boxes implements Engine.
func (g *Gosseract) Boxes(ctx context.Context, img *raster.Image, opts Options) ([]CharBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := g.client(img, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()

	symbols, err := c.GetBoundingBoxes(gosseract.RIL_SYMBOL)
	if err != nil {
		return nil, err
	}
	out := make([]CharBox, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, CharBox{
			Char: s.Word,
			X1:   s.Box.Min.X,
			Y1:   img.Height - s.Box.Max.Y,
			X2:   s.Box.Max.X,
			Y2:   img.Height - s.Box.Min.Y,
		})
	}
	return out, nil
}

// Languages implements Engine.
func (g *Gosseract) Languages(_ context.Context) ([]string, error) {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil || len(langs) == 0 {
		return []string{DefaultLanguage}, nil //nolint:nilerr // listing falls back to the default language
	}
	return langs, nil
}
