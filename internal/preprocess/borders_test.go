package preprocess

import (
	"image"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/testutil"
)

func TestRemoveBordersCropsAroundContent(t *testing.T) {
	img := testutil.FramedPage(100, 80, image.Rect(30, 20, 50, 30))

	out, err := RemoveBorders(img, DefaultBorderMargin)
	require.NoError(t, err)
	assert.Equal(t, 40, out.Width)
	assert.Equal(t, 30, out.Height)
	assert.Equal(t, 3, out.Channels)
	require.NoError(t, out.Validate())

	// The content starts margin pixels into the crop.
	o := out.Offset(10, 10)
	assert.Equal(t, []uint8{0, 0, 0}, out.Pix[o:o+3])
	assert.Equal(t, uint8(255), out.Pix[out.Offset(9, 9)])
}

func TestRemoveBordersClampsAtImageEdges(t *testing.T) {
	tests := []struct {
		name    string
		content image.Rectangle
		want    image.Rectangle
	}{
		{name: "top left corner", content: image.Rect(0, 0, 20, 10), want: image.Rect(0, 0, 40, 30)},
		{name: "bottom right corner", content: image.Rect(90, 70, 100, 80), want: image.Rect(80, 60, 100, 80)},
		{name: "full width", content: image.Rect(0, 30, 100, 40), want: image.Rect(0, 20, 100, 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := testutil.FramedPage(100, 80, tt.content)
			box, ok, err := ContentBox(img, 10)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, box)
			assert.True(t, box.In(image.Rect(0, 0, 100, 80)))

			out, err := RemoveBorders(img, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Dx(), out.Width)
			assert.Equal(t, tt.want.Dy(), out.Height)
		})
	}
}

func TestRemoveBordersWithoutContentIsNoOp(t *testing.T) {
	img := testutil.Uniform(30, 20, 1, 255)
	out, err := RemoveBorders(img, 10)
	require.NoError(t, err)
	assert.Same(t, img, out)
}

func TestRemoveBordersPicksLargestRegion(t *testing.T) {
	img := testutil.FramedPage(200, 100, image.Rect(10, 10, 20, 20))
	big := testutil.FramedPage(200, 100, image.Rect(100, 40, 160, 80))
	for i := range img.Pix {
		img.Pix[i] = min(img.Pix[i], big.Pix[i])
	}

	box, ok, err := ContentBox(img, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, image.Rect(100, 40, 160, 80), box)
}

func TestRemoveBordersEqualAreasKeepFirstDiscovered(t *testing.T) {
	// Raster order meets the upper square first even though it sits further right.
	img := testutil.FramedPage(200, 100, image.Rect(120, 10, 150, 40))
	lower := testutil.FramedPage(200, 100, image.Rect(20, 50, 50, 80))
	for i := range img.Pix {
		img.Pix[i] = min(img.Pix[i], lower.Pix[i])
	}

	box, ok, err := ContentBox(img, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, image.Rect(120, 10, 150, 40), box)
}

func TestRemoveBordersNegativeMargin(t *testing.T) {
	_, err := RemoveBorders(testutil.Uniform(5, 5, 1, 0), -1)
	assert.ErrorIs(t, err, raster.ErrInvalidArgument)
}

func TestExternalContours(t *testing.T) {
	mask := raster.NewGray(10, 8)
	set := func(x0, y0, x1, y1 int) {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				mask.Pix[y*10+x] = 255
			}
		}
	}
	set(1, 1, 5, 4) // 4x3 block
	set(7, 6, 8, 7) // single pixel
	mask.Pix[4*10+5] = 255

	contours := ExternalContours(mask)
	require.Len(t, contours, 2)

	// The diagonal pixel at (5,4) joins the block through 8-connectivity.
	assert.Equal(t, image.Rect(1, 1, 6, 5), contours[0].Bounds)
	assert.Equal(t, image.Pt(1, 1), contours[0].Points[0])
	assert.Positive(t, contours[0].Area())

	assert.Equal(t, image.Rect(7, 6, 8, 7), contours[1].Bounds)
	assert.Equal(t, []image.Point{{7, 6}}, contours[1].Points)
	assert.Zero(t, contours[1].Area())
}

func TestContourAreaRectangle(t *testing.T) {
	mask := raster.NewGray(30, 30)
	for y := 5; y < 15; y++ {
		for x := 3; x < 23; x++ {
			mask.Pix[y*30+x] = 255
		}
	}
	contours := ExternalContours(mask)
	require.Len(t, contours, 1)
	// Area enclosed by pixel centres of a 20x10 block.
	assert.Equal(t, 19.0*9.0, contours[0].Area())
	assert.Len(t, contours[0].Points, 2*19+2*9)
}

func TestContentBoxProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 40
	properties := gopter.NewProperties(params)

	const w, h = 60, 40
	properties.Property("crop box follows the margin formula and stays in bounds", prop.ForAll(
		func(x, y, bw, bh, margin int) bool {
			bw = min(bw, w-x)
			bh = min(bh, h-y)
			img := testutil.FramedPage(w, h, image.Rect(x, y, x+bw, y+bh))
			box, ok, err := ContentBox(img, margin)
			if err != nil || !ok {
				return false
			}
			ex := max(0, x-margin)
			ey := max(0, y-margin)
			want := image.Rect(ex, ey, ex+min(w-ex, bw+2*margin), ey+min(h-ey, bh+2*margin))
			return box == want && box.In(image.Rect(0, 0, w, h))
		},
		gen.IntRange(0, w-1),
		gen.IntRange(0, h-1),
		gen.IntRange(1, w),
		gen.IntRange(1, h),
		gen.IntRange(0, 25),
	))

	properties.TestingRun(t)
}
