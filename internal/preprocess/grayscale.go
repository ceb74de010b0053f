// Package preprocess implements the deterministic raster transforms applied
// before recognition. Every transform takes one image and returns a new one;
// inputs are never modified. Transforms that decide there is nothing to do
// return their input as-is.
package preprocess

import (
	"github.com/MeKo-Tech/scanprep/internal/raster"
)

func checkInput(stage string, img *raster.Image) error {
	if err := img.Validate(); err != nil {
		return &raster.ProcessingError{Stage: stage, Kind: raster.ErrInvalidArgument, Err: err}
	}
	return nil
}

// Grayscale converts RGB to a single luminance channel using BT.601 weights
// in 14-bit fixed point. Single-channel images are returned unchanged.
func Grayscale(img *raster.Image) (*raster.Image, error) {
	if err := checkInput("grayscale", img); err != nil {
		return nil, err
	}
	if img.Channels == 1 {
		return img, nil
	}
	out := raster.NewGray(img.Width, img.Height)
	for i, j := 0, 0; j < len(out.Pix); i, j = i+3, j+1 {
		r, g, b := uint32(img.Pix[i]), uint32(img.Pix[i+1]), uint32(img.Pix[i+2])
		out.Pix[j] = uint8((r*4899 + g*9617 + b*1868 + 8192) >> 14)
	}
	return out, nil
}
