package preprocess

import (
	"errors"
	"math"

	"github.com/MeKo-Tech/scanprep/internal/mempool"
	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// Non-local means parameters.
const (
	denoiseStrength = 10.0
	templateWindow  = 7
	searchWindow    = 21

	// Weights below this are treated as zero.
	minPatchWeight = 0.001
)

// Denoise converts to grayscale and applies non-local means filtering. Each
// output pixel is a weighted average over the search window, where a
// neighbour's weight decays with the mean squared difference between the
// template patches around the two pixels. Borders are reflected (101).
func Denoise(img *raster.Image) (*raster.Image, error) {
	gray, err := Grayscale(img)
	if err != nil {
		return nil, stageError("denoise", err)
	}

	w, h := gray.Width, gray.Height
	tr, sr := templateWindow/2, searchWindow/2
	pad := tr + sr
	pw, ph := w+2*pad, h+2*pad

	padded := mempool.GetFloat64(pw * ph)
	defer mempool.PutFloat64(padded)
	for y := range ph {
		sy := reflect101(y-pad, h)
		for x := range pw {
			padded[y*pw+x] = float64(gray.Pix[sy*w+reflect101(x-pad, w)])
		}
	}

	// Squared differences are needed for every template position, which
	// extends tr pixels beyond the image on each side.
	dw, dh := w+2*tr, h+2*tr
	iw := dw + 1
	integral := mempool.GetFloat64(iw * (dh + 1))
	defer mempool.PutFloat64(integral)
	num := mempool.GetFloat64(w * h)
	defer mempool.PutFloat64(num)
	den := mempool.GetFloat64(w * h)
	defer mempool.PutFloat64(den)

	patchArea := float64(templateWindow * templateWindow)
	h2 := denoiseStrength * denoiseStrength
	cutoff := -math.Log(minPatchWeight)

	for oy := -sr; oy <= sr; oy++ {
		for ox := -sr; ox <= sr; ox++ {
			// Integral image of (P(q) - P(q+o))^2 over template-extended coordinates.
			for y := range dh {
				row := (y + pad - tr) * pw
				shifted := (y + pad - tr + oy) * pw
				var acc float64
				for x := range dw {
					px := x + pad - tr
					d := padded[row+px] - padded[shifted+px+ox]
					acc += d * d
					integral[(y+1)*iw+x+1] = integral[y*iw+x+1] + acc
				}
			}

			for y := range h {
				top, bottom := y*iw, (y+templateWindow)*iw
				src := (y + pad + oy) * pw
				for x := range w {
					ssd := integral[bottom+x+templateWindow] - integral[top+x+templateWindow] -
						integral[bottom+x] + integral[top+x]
					e := ssd / patchArea / h2
					if e > cutoff {
						continue
					}
					wt := math.Exp(-e)
					num[y*w+x] += wt * padded[src+x+pad+ox]
					den[y*w+x] += wt
				}
			}
		}
	}

	out := raster.NewGray(w, h)
	for i := range out.Pix {
		out.Pix[i] = clampUint8(num[i] / den[i])
	}
	return out, nil
}

// reflect101 mirrors i into [0, n) without repeating the edge pixel.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func clampUint8(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}

// stageError re-labels an error from a nested transform with the outer stage.
func stageError(stage string, err error) error {
	var kind error = raster.ErrInvalidArgument
	var pe *raster.ProcessingError
	if errors.As(err, &pe) {
		kind = pe.Kind
		err = pe.Err
	}
	return &raster.ProcessingError{Stage: stage, Kind: kind, Err: err}
}
