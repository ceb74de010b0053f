package preprocess

import (
	"image"

	"github.com/MeKo-Tech/scanprep/internal/mempool"
	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// DefaultBorderMargin is the padding kept around the detected content.
const DefaultBorderMargin = 10

// Contour is the outer boundary of one 8-connected foreground region.
type Contour struct {
	Points []image.Point
	Bounds image.Rectangle // pixel bounding box, Max exclusive
}

// Area is the polygon area enclosed by the boundary pixel centres.
func (c Contour) Area() float64 {
	n := len(c.Points)
	if n < 3 {
		return 0
	}
	var s int
	for i, p := range c.Points {
		q := c.Points[(i+1)%n]
		s += p.X*q.Y - q.X*p.Y
	}
	if s < 0 {
		s = -s
	}
	return float64(s) / 2
}

// RemoveBorders crops img to the largest dark region (inverted Otsu) plus a
// margin, clamped to the image. Images without any foreground are returned
// unchanged.
func RemoveBorders(img *raster.Image, margin int) (*raster.Image, error) {
	if margin < 0 {
		return nil, raster.Invalidf("remove_borders", "margin must not be negative, got %d", margin)
	}
	box, ok, err := ContentBox(img, margin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return img, nil
	}
	return img.Crop(box.Min.X, box.Min.Y, box.Dx(), box.Dy())
}

// ContentBox returns the crop rectangle RemoveBorders would use, and false
// when no contour exists.
func ContentBox(img *raster.Image, margin int) (image.Rectangle, bool, error) {
	gray, err := Grayscale(img)
	if err != nil {
		return image.Rectangle{}, false, stageError("remove_borders", err)
	}
	mask := binarize(gray, OtsuLevel(gray), true)

	contours := ExternalContours(mask)
	if len(contours) == 0 {
		return image.Rectangle{}, false, nil
	}
	best := contours[0]
	bestArea := best.Area()
	for _, c := range contours[1:] {
		if a := c.Area(); a > bestArea {
			best, bestArea = c, a
		}
	}

	x, y := best.Bounds.Min.X, best.Bounds.Min.Y
	bw, bh := best.Bounds.Dx(), best.Bounds.Dy()
	x = max(0, x-margin)
	y = max(0, y-margin)
	bw = min(img.Width-x, bw+2*margin)
	bh = min(img.Height-y, bh+2*margin)
	return image.Rect(x, y, x+bw, y+bh), true, nil
}

var ring = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

func ringIndex(d image.Point) int {
	for i, r := range ring {
		if r == d {
			return i
		}
	}
	return 0
}

// ExternalContours labels the 8-connected non-zero regions of a binary image
// and traces the outer boundary of each, in raster order of their first pixel.
func ExternalContours(mask *raster.Image) []Contour {
	w, h := mask.Width, mask.Height
	labels := mempool.GetInt32(w * h)
	defer mempool.PutInt32(labels)

	var contours []Contour
	queue := make([]int, 0, 256)
	next := int32(0)

	for start := range labels {
		if mask.Pix[start] == 0 || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		queue = append(queue[:0], start)
		minX, minY, maxX, maxY := w, h, -1, -1
		for head := 0; head < len(queue); head++ {
			i := queue[head]
			x, y := i%w, i/w
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
			for _, d := range ring {
				nx, ny := x+d.X, y+d.Y
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if mask.Pix[j] != 0 && labels[j] == 0 {
					labels[j] = next
					queue = append(queue, j)
				}
			}
		}
		contours = append(contours, Contour{
			Points: traceBoundary(labels, w, h, next, start%w, start/w),
			Bounds: image.Rect(minX, minY, maxX+1, maxY+1),
		})
	}
	return contours
}

// traceBoundary follows the outer boundary clockwise with Moore-neighbour
// tracing, starting from the region's first pixel in raster order (whose west
// neighbour is always background). It stops once the first move repeats.
func traceBoundary(labels []int32, w, h int, label int32, sx, sy int) []image.Point {
	inside := func(p image.Point) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h && labels[p.Y*w+p.X] == label
	}

	cur := image.Pt(sx, sy)
	back := 4 // direction from cur to the last background pixel examined
	pts := []image.Point{cur}

	step := func() bool {
		for k := 1; k <= 8; k++ {
			d := (back + k) % 8
			n := cur.Add(ring[d])
			if inside(n) {
				prev := cur.Add(ring[(d+7)%8])
				cur = n
				back = ringIndex(prev.Sub(n))
				return true
			}
		}
		return false
	}

	if !step() {
		return pts // isolated pixel
	}
	first, firstBack := cur, back
	for guard := 4*w*h + 8; guard > 0; guard-- {
		pts = append(pts, cur)
		step()
		if cur == first && back == firstBack {
			break
		}
	}
	// The walk ends on the start pixel again.
	if len(pts) > 1 && pts[len(pts)-1] == pts[0] {
		pts = pts[:len(pts)-1]
	}
	return pts
}
