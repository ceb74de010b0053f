package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// BarsPage draws n dark horizontal bars on a white page. The bars span most
// of the width, which gives the line detector long straight edges.
func BarsPage(width, height, n int) *image.NRGBA {
	img := imaging.New(width, height, color.White)
	margin := width / 20
	spacing := height / (n + 1)
	thickness := max(2, spacing/4)
	for i := 1; i <= n; i++ {
		y := i * spacing
		r := image.Rect(margin, y, width-margin, y+thickness)
		draw.Draw(img, r, &image.Uniform{color.Black}, image.Point{}, draw.Src)
	}
	return img
}

// VerticalBarsPage draws n dark vertical bars on a white page.
func VerticalBarsPage(width, height, n int) *image.NRGBA {
	return imaging.Rotate90(BarsPage(height, width, n))
}

// TextPage renders lines with the basic bitmap font, scaled up so glyphs are
// large enough for recognition engines.
func TextPage(lines []string, width, height, scale int) *image.NRGBA {
	small := image.NewNRGBA(image.Rect(0, 0, width/scale, height/scale))
	draw.Draw(small, small.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: small, Src: &image.Uniform{color.Black}, Face: basicfont.Face7x13}
	for i, line := range lines {
		d.Dot = fixed.P(4, 16+i*16)
		d.DrawString(line)
	}
	return imaging.Resize(small, width, height, imaging.NearestNeighbor)
}

// Rotated turns img counter-clockwise by degrees, expanding the canvas and
// filling it with white.
func Rotated(img image.Image, degrees float64) *image.NRGBA {
	return imaging.Rotate(img, degrees, color.White)
}

// FramedPage returns a white page with a dark rectangle at r.
func FramedPage(width, height int, r image.Rectangle) *raster.Image {
	img := imaging.New(width, height, color.White)
	draw.Draw(img, r, &image.Uniform{color.Black}, image.Point{}, draw.Src)
	return raster.FromImage(img)
}

// NoisePage returns a grayscale image of base +/- amplitude uniform noise.
func NoisePage(width, height, base, amplitude int, seed int64) *raster.Image {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test data
	img := raster.NewGray(width, height)
	for i := range img.Pix {
		v := base + rng.Intn(2*amplitude+1) - amplitude
		img.Pix[i] = uint8(min(255, max(0, v)))
	}
	return img
}

// Uniform returns a raster filled with a single value in every channel.
func Uniform(width, height, channels int, v uint8) *raster.Image {
	img, err := raster.New(width, height, channels)
	if err != nil {
		panic(err)
	}
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// WriteImage saves img under dir and returns the path.
func WriteImage(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, raster.Save(raster.FromImage(img), path))
	return path
}
