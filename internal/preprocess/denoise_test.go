package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/testutil"
)

func stddev(pix []uint8) float64 {
	var sum, sq float64
	for _, v := range pix {
		sum += float64(v)
	}
	mean := sum / float64(len(pix))
	for _, v := range pix {
		d := float64(v) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(pix)))
}

func TestDenoiseUniformImageIsStable(t *testing.T) {
	img := testutil.Uniform(24, 17, 1, 90)
	out, err := Denoise(img)
	require.NoError(t, err)
	assert.True(t, img.Equal(out))
}

func TestDenoiseReducesNoise(t *testing.T) {
	img := testutil.NoisePage(40, 30, 128, 20, 7)
	out, err := Denoise(img)
	require.NoError(t, err)

	assert.Equal(t, img.Width, out.Width)
	assert.Equal(t, img.Height, out.Height)
	assert.Less(t, stddev(out.Pix), stddev(img.Pix)/2)
}

func TestDenoiseOutputsSingleChannel(t *testing.T) {
	img := testutil.Uniform(10, 12, 3, 200)
	out, err := Denoise(img)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Channels)
	assert.Equal(t, 10, out.Width)
	assert.Equal(t, 12, out.Height)
	assert.Equal(t, 3, img.Channels)
}

func TestDenoiseKeepsStrongEdges(t *testing.T) {
	img := raster.NewGray(30, 30)
	for y := range 30 {
		for x := 15; x < 30; x++ {
			img.Pix[y*30+x] = 255
		}
	}
	out, err := Denoise(img)
	require.NoError(t, err)
	assert.Less(t, out.Gray(5, 15), uint8(10))
	assert.Greater(t, out.Gray(25, 15), uint8(245))
}

func TestDenoiseTinyImage(t *testing.T) {
	out, err := Denoise(testutil.Uniform(1, 1, 1, 42))
	require.NoError(t, err)
	assert.Equal(t, []uint8{42}, out.Pix)
}

func TestReflect101(t *testing.T) {
	assert.Equal(t, 1, reflect101(-1, 5))
	assert.Equal(t, 3, reflect101(5, 5))
	assert.Equal(t, 0, reflect101(0, 5))
	assert.Equal(t, 0, reflect101(-7, 1))
	assert.Equal(t, 1, reflect101(-3, 2))
}

func TestDenoiseRejectsInvalidImage(t *testing.T) {
	_, err := Denoise(nil)
	assert.ErrorIs(t, err, raster.ErrInvalidArgument)
}
