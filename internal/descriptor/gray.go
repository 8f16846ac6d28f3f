package descriptor

import "github.com/hyperjump/niteru/internal/raster"

// grayPlane holds per-pixel intensity (r+g+b)/3 in [0,255].
type grayPlane struct {
	w, h int
	v    []float64
}

func newGrayPlane(buf *raster.PixelBuffer) *grayPlane {
	w, h := buf.Width(), buf.Height()
	g := &grayPlane{w: w, h: h, v: make([]float64, w*h)}
	for i := range g.v {
		r, gr, b := buf.RGBAt(i)
		g.v[i] = (float64(r) + float64(gr) + float64(b)) / 3
	}
	return g
}

func (g *grayPlane) at(x, y int) float64 { return g.v[y*g.w+x] }

// downsample keeps every stride-th pixel in both directions.
func (g *grayPlane) downsample(stride int) *grayPlane {
	if stride <= 1 {
		return g
	}
	w := (g.w + stride - 1) / stride
	h := (g.h + stride - 1) / stride
	out := &grayPlane{w: w, h: h, v: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.v[y*w+x] = g.at(x*stride, y*stride)
		}
	}
	return out
}

// tileDiff returns the mean absolute difference between the size×size tiles
// at (x0,y0) and (x1,y1), normalized to [0,1].
func (g *grayPlane) tileDiff(x0, y0, x1, y1, size int) float64 {
	var sum float64
	for dy := 0; dy < size; dy++ {
		a := (y0+dy)*g.w + x0
		b := (y1+dy)*g.w + x1
		for dx := 0; dx < size; dx++ {
			d := g.v[a+dx] - g.v[b+dx]
			if d < 0 {
				d = -d
			}
			sum += d
		}
	}
	return sum / float64(size*size) / 255
}
