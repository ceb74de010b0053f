package preprocess

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// Line detector and acceptance limits for skew estimation.
const (
	houghVotes        = 100
	horizontalWindow  = 45.0 // degrees either side of horizontal
	maxCorrectionDegs = 45.0
)

// Skew describes the rotation estimated for a page.
type Skew struct {
	Lines      int     // lines returned by the Hough transform
	Horizontal int     // lines within the horizontal window
	Correction float64 // degrees; positive rotates counter-clockwise
	Found      bool    // false means deskew leaves the image untouched
}

// DetectSkew estimates the correction angle from the median normal angle of
// the near-horizontal lines found in img.
func DetectSkew(img *raster.Image) (Skew, error) {
	gray, err := Grayscale(img)
	if err != nil {
		return Skew{}, stageError("deskew", err)
	}
	lines := HoughLines(Canny(gray, cannyLow, cannyHigh), houghVotes)

	skew := Skew{Lines: len(lines)}
	if len(lines) == 0 {
		return skew, nil
	}

	thetas := make([]float64, 0, len(lines))
	for _, l := range lines {
		// Direction of the line itself, 0° = horizontal.
		dir := math.Mod(l.Degrees-90+180, 180)
		if dir < horizontalWindow || dir > 180-horizontalWindow {
			thetas = append(thetas, l.Theta)
		}
	}
	skew.Horizontal = len(thetas)
	if len(thetas) == 0 {
		return skew, nil
	}

	correction := (median(thetas) - math.Pi/2) * 180 / math.Pi
	if math.Abs(correction) > maxCorrectionDegs {
		return skew, nil
	}
	skew.Correction = correction
	skew.Found = true
	return skew, nil
}

// Deskew rotates img about its centre by the detected correction. Images
// without usable lines are returned unchanged. Output dimensions match the input.
func Deskew(img *raster.Image) (*raster.Image, error) {
	skew, err := DetectSkew(img)
	if err != nil {
		return nil, err
	}
	if !skew.Found {
		return img, nil
	}
	return Rotate(img, skew.Correction), nil
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// bicubicA is the cubic convolution parameter.
const bicubicA = -0.75

// Rotate turns img counter-clockwise by degrees about (W/2, H/2) using bicubic
// interpolation. Samples outside the source replicate the nearest edge pixel.
func Rotate(img *raster.Image, degrees float64) *raster.Image {
	w, h, ch := img.Width, img.Height, img.Channels
	rad := degrees * math.Pi / 180
	alpha, beta := math.Cos(rad), math.Sin(rad)
	cx, cy := float64(w/2), float64(h/2)

	out := &raster.Image{Width: w, Height: h, Channels: ch, Pix: make([]uint8, len(img.Pix))}
	var acc [3]float64
	for y := range h {
		for x := range w {
			// Inverse of the forward affine [[a, b], [-b, a]] about the centre.
			dx, dy := float64(x)-cx, float64(y)-cy
			sx := alpha*dx - beta*dy + cx
			sy := beta*dx + alpha*dy + cy

			ix, iy := int(math.Floor(sx)), int(math.Floor(sy))
			wx := cubicWeights(sx - float64(ix))
			wy := cubicWeights(sy - float64(iy))

			acc = [3]float64{}
			for j := range 4 {
				row := clampInt(iy-1+j, 0, h-1) * w
				for i := range 4 {
					o := (row + clampInt(ix-1+i, 0, w-1)) * ch
					k := wy[j] * wx[i]
					for c := range ch {
						acc[c] += k * float64(img.Pix[o+c])
					}
				}
			}
			o := (y*w + x) * ch
			for c := range ch {
				out.Pix[o+c] = clampUint8(acc[c])
			}
		}
	}
	return out
}

func cubicWeights(t float64) [4]float64 {
	const a = bicubicA
	var k [4]float64
	k[0] = ((a*(t+1)-5*a)*(t+1)+8*a)*(t+1) - 4*a
	k[1] = ((a+2)*t-(a+3))*t*t + 1
	k[2] = ((a+2)*(1-t)-(a+3))*(1-t)*(1-t) + 1
	k[3] = 1 - k[0] - k[1] - k[2]
	return k
}
