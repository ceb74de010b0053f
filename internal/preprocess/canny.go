package preprocess

import (
	"github.com/MeKo-Tech/scanprep/internal/mempool"
	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// Edge detector parameters used by deskew.
const (
	cannyLow  = 50
	cannyHigh = 150
)

// tan(22.5°) in Q15, used to bucket gradient directions without atan.
const tg22 = 13573

// Canny returns a 0/255 edge map of a single-channel image: 3x3 Sobel
// gradients with replicated borders, L1 magnitude, non-maximum suppression
// along the quantized gradient direction, and hysteresis between low and high.
func Canny(gray *raster.Image, low, high int) *raster.Image {
	w, h := gray.Width, gray.Height
	px := func(x, y int) int32 {
		return int32(gray.Pix[clampInt(y, 0, h-1)*w+clampInt(x, 0, w-1)])
	}

	n := w * h
	dx := mempool.GetInt32(n)
	defer mempool.PutInt32(dx)
	dy := mempool.GetInt32(n)
	defer mempool.PutInt32(dy)
	mag := mempool.GetInt32(n)
	defer mempool.PutInt32(mag)

	for y := range h {
		for x := range w {
			gx := px(x+1, y-1) + 2*px(x+1, y) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x-1, y) - px(x-1, y+1)
			gy := px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1)
			i := y*w + x
			dx[i], dy[i] = gx, gy
			mag[i] = abs32(gx) + abs32(gy)
		}
	}

	magAt := func(x, y int) int32 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	// 0 = not an edge, 1 = weak candidate, 2 = strong edge.
	state := make([]uint8, n)
	stack := make([]int, 0, 1024)
	for y := range h {
		for x := range w {
			i := y*w + x
			m := mag[i]
			if m <= int32(low) {
				continue
			}
			ax, ay := int64(abs32(dx[i])), int64(abs32(dy[i]))<<15
			t22 := ax * tg22
			var keep bool
			switch {
			case ay < t22:
				keep = m > magAt(x-1, y) && m >= magAt(x+1, y)
			case ay > t22+(ax<<16):
				keep = m > magAt(x, y-1) && m >= magAt(x, y+1)
			default:
				s := 1
				if (dx[i] < 0) != (dy[i] < 0) {
					s = -1
				}
				keep = m > magAt(x-s, y-1) && m > magAt(x+s, y+1)
			}
			if !keep {
				continue
			}
			if m > int32(high) {
				state[i] = 2
				stack = append(stack, i)
			} else {
				state[i] = 1
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for ny := y - 1; ny <= y+1; ny++ {
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == 1 {
					state[j] = 2
					stack = append(stack, j)
				}
			}
		}
	}

	out := raster.NewGray(w, h)
	for i, s := range state {
		if s == 2 {
			out.Pix[i] = 255
		}
	}
	return out
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
