package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanprep/internal/preprocess"
	"github.com/MeKo-Tech/scanprep/internal/raster"
)

func TestParseChain(t *testing.T) {
	c, err := ParseChain("grayscale, denoise,threshold:method=otsu,deskew,resize:scale=2,remove_borders:margin=5", DefaultStepDefaults())
	require.NoError(t, err)
	assert.Equal(t, []string{StepGrayscale, StepDenoise, StepThreshold, StepDeskew, StepResize, StepRemoveBorders}, c.Names())
	assert.Equal(t,
		"grayscale,denoise,threshold:block_size=11:c=2:method=otsu,deskew,resize:scale=2,remove_borders:margin=5",
		c.String())
}

func TestParseChainApplyDefaults(t *testing.T) {
	defaults := StepDefaults{ThresholdMethod: preprocess.ThresholdBinary, BlockSize: 15, C: 4, BorderMargin: 3}
	c, err := ParseChain("threshold,borders", defaults)
	require.NoError(t, err)
	steps := c.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, map[string]string{"method": "binary", "block_size": "15", "c": "4"}, steps[0].Params)
	assert.Equal(t, map[string]string{"margin": "3"}, steps[1].Params)
}

func TestParseChainEmpty(t *testing.T) {
	c, err := ParseChain("  ", DefaultStepDefaults())
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestParseChainErrors(t *testing.T) {
	for _, in := range []string{
		"sharpen",
		"grayscale,,deskew",
		"threshold:method=bogus",
		"threshold:block_size=eleven",
		"resize:scale=big",
		"grayscale:level=2",
		"remove_borders:margin",
		"resize:width=10:depth=3",
	} {
		_, err := ParseChain(in, DefaultStepDefaults())
		assert.ErrorIs(t, err, raster.ErrInvalidArgument, in)
	}

	_, err := ParseChain("grayscale,sharpen", DefaultStepDefaults())
	assert.ErrorContains(t, err, "step 2")
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "deskew", DeskewStep().String())
	assert.Equal(t, "resize:height=40:width=30", ResizeStep(preprocess.ResizeOptions{Width: 30, Height: 40}).String())
}
