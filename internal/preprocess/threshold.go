package preprocess

import (
	"math"

	"github.com/MeKo-Tech/scanprep/internal/mempool"
	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// ThresholdMethod selects how the binarization cutoff is chosen.
type ThresholdMethod string

const (
	ThresholdBinary   ThresholdMethod = "binary"
	ThresholdAdaptive ThresholdMethod = "adaptive"
	ThresholdOtsu     ThresholdMethod = "otsu"
)

const (
	binaryCutoff = 127

	// DefaultBlockSize and DefaultC are the AdaptiveThreshold defaults.
	DefaultBlockSize = 11
	DefaultC         = 2
)

// ParseThresholdMethod validates a method name.
func ParseThresholdMethod(s string) (ThresholdMethod, error) {
	switch m := ThresholdMethod(s); m {
	case ThresholdBinary, ThresholdAdaptive, ThresholdOtsu:
		return m, nil
	default:
		return "", raster.Invalidf("threshold", "unknown threshold method %q", s)
	}
}

// Threshold binarizes the grayscale version of img to 0/255. blockSize and c
// are only used by the adaptive method.
func Threshold(img *raster.Image, method ThresholdMethod, blockSize int, c float64) (*raster.Image, error) {
	if _, err := ParseThresholdMethod(string(method)); err != nil {
		return nil, err
	}
	if method == ThresholdAdaptive && (blockSize <= 1 || blockSize%2 == 0) {
		return nil, raster.Invalidf("threshold", "block size must be odd and greater than 1, got %d", blockSize)
	}

	gray, err := Grayscale(img)
	if err != nil {
		return nil, stageError("threshold", err)
	}

	switch method {
	case ThresholdBinary:
		return binarize(gray, binaryCutoff, false), nil
	case ThresholdOtsu:
		return binarize(gray, OtsuLevel(gray), false), nil
	default:
		return adaptiveGaussian(gray, blockSize, c), nil
	}
}

// AdaptiveThreshold is Threshold with the adaptive method.
func AdaptiveThreshold(img *raster.Image, blockSize int, c float64) (*raster.Image, error) {
	return Threshold(img, ThresholdAdaptive, blockSize, c)
}

// binarize maps v > t to 255 (or to 0 when inverted).
func binarize(gray *raster.Image, t int, inverted bool) *raster.Image {
	hi, lo := uint8(255), uint8(0)
	if inverted {
		hi, lo = lo, hi
	}
	out := raster.NewGray(gray.Width, gray.Height)
	for i, v := range gray.Pix {
		if int(v) > t {
			out.Pix[i] = hi
		} else {
			out.Pix[i] = lo
		}
	}
	return out
}

// OtsuLevel returns the cutoff that maximizes between-class variance of the
// histogram of a single-channel image. The first maximum wins. An image with a
// single intensity yields 0.
func OtsuLevel(gray *raster.Image) int {
	var hist [256]int
	for _, v := range gray.Pix {
		hist[v]++
	}
	total := float64(len(gray.Pix))

	var mu float64
	for i, n := range hist {
		mu += float64(i) * float64(n)
	}
	mu /= total

	const eps = 1.1920929e-07 // float32 epsilon
	var q1, mu1, maxSigma float64
	level := 0
	for i, n := range hist {
		p := float64(n) / total
		mu1 *= q1
		q1 += p
		q2 := 1 - q1
		if math.Min(q1, q2) < eps || math.Max(q1, q2) > 1-eps {
			continue
		}
		mu1 = (mu1 + float64(i)*p) / q1
		mu2 := (mu - q1*mu1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > maxSigma {
			maxSigma = sigma
			level = i
		}
	}
	return level
}

// adaptiveGaussian compares each pixel with its Gaussian-weighted
// neighbourhood mean (rounded to 8 bits) minus c.
func adaptiveGaussian(gray *raster.Image, blockSize int, c float64) *raster.Image {
	w, h := gray.Width, gray.Height
	kernel := gaussianKernel(blockSize)
	r := blockSize / 2

	tmp := mempool.GetFloat64(w * h)
	defer mempool.PutFloat64(tmp)
	for y := range h {
		row := gray.Pix[y*w : (y+1)*w]
		for x := range w {
			var acc float64
			for k, kv := range kernel {
				acc += kv * float64(row[clampInt(x+k-r, 0, w-1)])
			}
			tmp[y*w+x] = acc
		}
	}

	delta := int(math.Ceil(c))
	out := raster.NewGray(w, h)
	for y := range h {
		for x := range w {
			var acc float64
			for k, kv := range kernel {
				acc += kv * tmp[clampInt(y+k-r, 0, h-1)*w+x]
			}
			mean := int(clampUint8(acc))
			if int(gray.Pix[y*w+x])-mean > -delta {
				out.Pix[y*w+x] = 255
			}
		}
	}
	return out
}

// Fixed kernels used for small apertures when sigma is derived from the size.
var smallGaussianKernels = map[int][]float64{
	1: {1},
	3: {0.25, 0.5, 0.25},
	5: {0.0625, 0.25, 0.375, 0.25, 0.0625},
	7: {0.03125, 0.109375, 0.21875, 0.28125, 0.21875, 0.109375, 0.03125},
}

// gaussianKernel returns a normalized 1-D kernel of odd length n with
// sigma = 0.3*((n-1)*0.5-1)+0.8.
func gaussianKernel(n int) []float64 {
	if k, ok := smallGaussianKernels[n]; ok {
		return k
	}
	sigma := 0.3*((float64(n)-1)*0.5-1) + 0.8
	scale := -0.5 / (sigma * sigma)
	k := make([]float64, n)
	var sum float64
	for i := range n {
		x := float64(i) - float64(n-1)*0.5
		k[i] = math.Exp(scale * x * x)
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
