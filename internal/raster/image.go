package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
)

// Image is a decoded 8-bit raster with 1 (gray) or 3 (RGB) interleaved channels.
// Pixels are stored row-major; len(Pix) == Width*Height*Channels.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// New allocates a zeroed image.
func New(width, height, channels int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, Invalidf("new", "invalid dimensions %dx%d", width, height)
	}
	if channels != 1 && channels != 3 {
		return nil, Invalidf("new", "unsupported channel depth %d", channels)
	}
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}, nil
}

// NewGray allocates a single-channel image. Dimensions must already be valid.
func NewGray(width, height int) *Image {
	return &Image{Width: width, Height: height, Channels: 1, Pix: make([]uint8, width*height)}
}

// Validate checks the buffer invariant.
func (im *Image) Validate() error {
	if im == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidArgument)
	}
	if im.Width <= 0 || im.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrInvalidArgument, im.Width, im.Height)
	}
	if im.Channels != 1 && im.Channels != 3 {
		return fmt.Errorf("%w: unsupported channel depth %d", ErrInvalidArgument, im.Channels)
	}
	if want := im.Width * im.Height * im.Channels; len(im.Pix) != want {
		return fmt.Errorf("%w: buffer length %d, want %d", ErrInvalidArgument, len(im.Pix), want)
	}
	return nil
}

// Stride is the number of bytes per row.
func (im *Image) Stride() int { return im.Width * im.Channels }

// Offset returns the index of the first channel of pixel (x, y).
func (im *Image) Offset(x, y int) int { return y*im.Width*im.Channels + x*im.Channels }

// Gray returns the value of a single-channel pixel.
func (im *Image) Gray(x, y int) uint8 { return im.Pix[y*im.Width+x] }

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	out := *im
	out.Pix = append([]uint8(nil), im.Pix...)
	return &out
}

// Equal reports whether both images have identical geometry and pixels.
func (im *Image) Equal(other *Image) bool {
	if im == nil || other == nil {
		return im == other
	}
	return im.Width == other.Width && im.Height == other.Height &&
		im.Channels == other.Channels && bytes.Equal(im.Pix, other.Pix)
}

// Crop copies the rectangle (x, y, w, h). The rectangle must lie inside the image.
func (im *Image) Crop(x, y, w, h int) (*Image, error) {
	if w <= 0 || h <= 0 || x < 0 || y < 0 || x+w > im.Width || y+h > im.Height {
		return nil, Invalidf("crop", "box (%d,%d %dx%d) outside %dx%d", x, y, w, h, im.Width, im.Height)
	}
	out := &Image{Width: w, Height: h, Channels: im.Channels, Pix: make([]uint8, w*h*im.Channels)}
	rowBytes := w * im.Channels
	for row := range h {
		src := im.Offset(x, y+row)
		copy(out.Pix[row*rowBytes:(row+1)*rowBytes], im.Pix[src:src+rowBytes])
	}
	return out, nil
}

// FromImage converts any image.Image into a raster. Gray sources keep a single
// channel, everything else becomes RGB with alpha discarded.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	switch s := src.(type) {
	case *image.Gray:
		out := NewGray(w, h)
		for y := range h {
			off := s.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*w:(y+1)*w], s.Pix[off:off+w])
		}
		return out
	case *image.Gray16:
		out := NewGray(w, h)
		for y := range h {
			for x := range w {
				out.Pix[y*w+x] = uint8(s.Gray16At(b.Min.X+x, b.Min.Y+y).Y >> 8)
			}
		}
		return out
	case *image.Paletted:
		if isGrayPalette(s.Palette) {
			out := NewGray(w, h)
			for y := range h {
				for x := range w {
					out.Pix[y*w+x] = color.GrayModel.Convert(s.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
				}
			}
			return out
		}
	case *image.NRGBA:
		out := &Image{Width: w, Height: h, Channels: 3, Pix: make([]uint8, w*h*3)}
		for y := range h {
			row := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := range w {
				i := (y*w + x) * 3
				out.Pix[i] = row[x*4]
				out.Pix[i+1] = row[x*4+1]
				out.Pix[i+2] = row[x*4+2]
			}
		}
		return out
	}

	out := &Image{Width: w, Height: h, Channels: 3, Pix: make([]uint8, w*h*3)}
	for y := range h {
		for x := range w {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := (y*w + x) * 3
			out.Pix[i] = c.R
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.B
		}
	}
	return out
}

func isGrayPalette(p color.Palette) bool {
	for _, c := range p {
		r, g, b, _ := c.RGBA()
		if r != g || g != b {
			return false
		}
	}
	return len(p) > 0
}

// ToImage exposes the raster as a standard library image (*image.Gray or *image.NRGBA).
func (im *Image) ToImage() image.Image {
	if im.Channels == 1 {
		g := image.NewGray(image.Rect(0, 0, im.Width, im.Height))
		copy(g.Pix, im.Pix)
		return g
	}
	n := image.NewNRGBA(image.Rect(0, 0, im.Width, im.Height))
	for i, j := 0, 0; i < len(im.Pix); i, j = i+3, j+4 {
		n.Pix[j] = im.Pix[i]
		n.Pix[j+1] = im.Pix[i+1]
		n.Pix[j+2] = im.Pix[i+2]
		n.Pix[j+3] = 0xff
	}
	return n
}
