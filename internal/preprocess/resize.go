package preprocess

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// ResizeOptions selects the target size. Zero values mean "not set".
// Scale wins over Width/Height; Width and Height together set an exact size;
// either alone preserves the aspect ratio.
type ResizeOptions struct {
	Width  int
	Height int
	Scale  float64
}

// TargetSize computes the output dimensions for a w x h source. ok is false
// when no option is set.
func (o ResizeOptions) TargetSize(w, h int) (tw, th int, ok bool, err error) {
	if o.Width < 0 || o.Height < 0 || o.Scale < 0 || math.IsNaN(o.Scale) || math.IsInf(o.Scale, 0) {
		return 0, 0, false, raster.Invalidf("resize", "invalid resize options %+v", o)
	}
	switch {
	case o.Scale > 0:
		tw = int(math.RoundToEven(float64(w) * o.Scale))
		th = int(math.RoundToEven(float64(h) * o.Scale))
	case o.Width > 0 && o.Height > 0:
		tw, th = o.Width, o.Height
	case o.Width > 0:
		tw = o.Width
		th = int(float64(h) * (float64(o.Width) / float64(w)))
	case o.Height > 0:
		th = o.Height
		tw = int(float64(w) * (float64(o.Height) / float64(h)))
	default:
		return w, h, false, nil
	}
	if tw < 1 || th < 1 {
		return 0, 0, false, raster.Invalidf("resize", "target size %dx%d is empty", tw, th)
	}
	return tw, th, true, nil
}

// Resize scales img with linear interpolation, keeping its channel count.
// Scale takes priority over Width and Height when set.
func Resize(img *raster.Image, opts ResizeOptions) (*raster.Image, error) {
	if err := checkInput("resize", img); err != nil {
		return nil, err
	}
	tw, th, ok, err := opts.TargetSize(img.Width, img.Height)
	if err != nil {
		return nil, err
	}
	if !ok {
		return img, nil
	}
	resized := imaging.Resize(img.ToImage(), tw, th, imaging.Linear)
	return fromNRGBA(resized, img.Channels), nil
}

func fromNRGBA(n *image.NRGBA, channels int) *raster.Image {
	if channels == 3 {
		return raster.FromImage(n)
	}
	w, h := n.Rect.Dx(), n.Rect.Dy()
	out := raster.NewGray(w, h)
	for y := range h {
		row := n.Pix[y*n.Stride:]
		for x := range w {
			out.Pix[y*w+x] = row[x*4]
		}
	}
	return out
}
