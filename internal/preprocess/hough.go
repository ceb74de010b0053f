package preprocess

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// Line is a detected straight line in normal form: x*cos(Theta) + y*sin(Theta) = Rho.
type Line struct {
	Rho     float64
	Theta   float64 // radians, [0, pi)
	Degrees float64 // Theta in degrees
	Votes   int
}

// HoughLines runs the standard Hough transform over a 0/255 edge map with
// 1 px and 1° resolution. A cell becomes a line when it has more than
// threshold votes and is a local maximum over its four neighbours. Lines are
// ordered by votes, strongest first.
func HoughLines(edges *raster.Image, threshold int) []Line {
	w, h := edges.Width, edges.Height
	const numAngle = 180
	numRho := (w+h)*2 + 1
	stride := numRho + 2

	var sinTab, cosTab [numAngle]float64
	for n := range numAngle {
		ang := float64(n) * math.Pi / numAngle
		sinTab[n] = math.Sin(ang)
		cosTab[n] = math.Cos(ang)
	}

	accum := make([]int32, (numAngle+2)*stride)
	offset := (numRho - 1) / 2
	for y := range h {
		for x := range w {
			if edges.Pix[y*w+x] == 0 {
				continue
			}
			for n := range numAngle {
				r := int(math.RoundToEven(float64(x)*cosTab[n]+float64(y)*sinTab[n])) + offset
				accum[(n+1)*stride+r+1]++
			}
		}
	}

	var peaks []int
	for r := range numRho {
		for n := range numAngle {
			base := (n+1)*stride + r + 1
			v := accum[base]
			if v > int32(threshold) &&
				v > accum[base-1] && v >= accum[base+1] &&
				v > accum[base-stride] && v >= accum[base+stride] {
				peaks = append(peaks, base)
			}
		}
	}
	sort.SliceStable(peaks, func(i, j int) bool {
		a, b := accum[peaks[i]], accum[peaks[j]]
		return a > b || (a == b && peaks[i] < peaks[j])
	})

	lines := make([]Line, 0, len(peaks))
	for _, idx := range peaks {
		n := idx/stride - 1
		r := idx - (n+1)*stride - 1
		lines = append(lines, Line{
			Rho:     float64(r) - float64(numRho-1)*0.5,
			Theta:   float64(n) * math.Pi / numAngle,
			Degrees: float64(n),
			Votes:   int(accum[idx]),
		})
	}
	return lines
}
