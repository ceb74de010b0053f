package preprocess

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/testutil"
)

func grayOf(w, h int, px ...uint8) *raster.Image {
	img := raster.NewGray(w, h)
	copy(img.Pix, px)
	return img
}

func TestThresholdBinaryCutoff(t *testing.T) {
	img := grayOf(4, 1, 0, 127, 128, 255)
	out, err := Threshold(img, ThresholdBinary, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0, 255, 255}, out.Pix)
}

func TestThresholdConvertsColorFirst(t *testing.T) {
	img := testutil.Uniform(3, 3, 3, 200)
	out, err := Threshold(img, ThresholdBinary, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Channels)
	for _, v := range out.Pix {
		assert.Equal(t, uint8(255), v)
	}
}

func TestOtsuLevel(t *testing.T) {
	tests := []struct {
		name string
		img  *raster.Image
		want int
	}{
		{name: "bimodal picks the first maximum", img: grayOf(4, 1, 50, 50, 200, 200), want: 50},
		{name: "single intensity", img: testutil.Uniform(5, 5, 1, 128), want: 0},
		{name: "skewed classes", img: grayOf(5, 1, 10, 10, 10, 10, 250), want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OtsuLevel(tt.img))
		})
	}
}

func TestThresholdOtsuSeparatesClasses(t *testing.T) {
	out, err := Threshold(grayOf(4, 1, 40, 60, 190, 210), ThresholdOtsu, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0, 255, 255}, out.Pix)
}

func TestThresholdAdaptive(t *testing.T) {
	img := testutil.Uniform(21, 21, 1, 255)
	img.Pix[10*21+10] = 0

	out, err := Threshold(img, ThresholdAdaptive, 11, 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.Gray(10, 10))
	assert.Equal(t, uint8(255), out.Gray(9, 10))
	assert.Equal(t, uint8(255), out.Gray(0, 0))

	viaConvenience, err := AdaptiveThreshold(img, DefaultBlockSize, DefaultC)
	require.NoError(t, err)
	assert.True(t, out.Equal(viaConvenience))
}

func TestThresholdAdaptiveUniformDependsOnC(t *testing.T) {
	img := testutil.Uniform(9, 9, 1, 77)

	out, err := AdaptiveThreshold(img, 3, 2)
	require.NoError(t, err)
	for _, v := range out.Pix {
		assert.Equal(t, uint8(255), v)
	}

	// The comparison is strict: a pixel equal to its mean is background.
	out, err = AdaptiveThreshold(img, 3, 0)
	require.NoError(t, err)
	for _, v := range out.Pix {
		assert.Equal(t, uint8(0), v)
	}
}

func TestThresholdInvalidArguments(t *testing.T) {
	img := testutil.Uniform(5, 5, 1, 10)

	out, err := Threshold(img, "bogus", 11, 2)
	require.ErrorIs(t, err, raster.ErrInvalidArgument)
	assert.Nil(t, out)

	for _, bs := range []int{0, 1, 4, 10} {
		out, err := Threshold(img, ThresholdAdaptive, bs, 2)
		require.ErrorIs(t, err, raster.ErrInvalidArgument, "block size %d", bs)
		assert.Nil(t, out)
	}

	// Block size is irrelevant for global methods.
	_, err = Threshold(img, ThresholdOtsu, 4, 0)
	assert.NoError(t, err)
}

func TestParseThresholdMethod(t *testing.T) {
	m, err := ParseThresholdMethod("otsu")
	require.NoError(t, err)
	assert.Equal(t, ThresholdOtsu, m)

	_, err = ParseThresholdMethod("Otsu")
	assert.ErrorIs(t, err, raster.ErrInvalidArgument)
}

func TestGaussianKernel(t *testing.T) {
	for _, n := range []int{3, 5, 7, 11, 31} {
		k := gaussianKernel(n)
		require.Len(t, k, n)
		var sum float64
		for i := range k {
			sum += k[i]
			assert.InDelta(t, k[i], k[n-1-i], 1e-12)
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
		assert.Greater(t, k[n/2], k[0])
	}
}

func TestThresholdProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 30
	properties := gopter.NewProperties(params)

	methods := []ThresholdMethod{ThresholdBinary, ThresholdAdaptive, ThresholdOtsu}
	properties.Property("threshold keeps dimensions and is binary", prop.ForAll(
		func(w, h, m int, seed int64) bool {
			img := testutil.NoisePage(w, h, 128, 100, seed)
			out, err := Threshold(img, methods[m], DefaultBlockSize, DefaultC)
			if err != nil || out.Width != w || out.Height != h || out.Channels != 1 {
				return false
			}
			for _, v := range out.Pix {
				if v != 0 && v != 255 {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 30),
		gen.IntRange(1, 30),
		gen.IntRange(0, 2),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
