package descriptor

import "math"

const (
	binarizeThreshold = 128
	cornerGrid        = 4
	cornerThreshold   = 400
)

// momentDegrees holds each Hu invariant's polynomial degree in the central
// moments. Taking that root brings the invariants to a comparable scale.
var momentDegrees = [7]float64{1, 2, 2, 2, 4, 3, 4}

// ShapeBlock computes the shape block of the given length.
//
// Layout: Hu-style invariants of the contour point set (7), foreground
// bounding-box aspect ratio (1), contour density (1), foreground fraction (1),
// horizontal and vertical symmetry inside the bounding box (2), 4×4 corner
// grid (16), max corner cell (1), foreground centroid x and y (2),
// bounding-box fill ratio (1). An image without foreground yields zeros.
func ShapeBlock(g *grayPlane, length int) FeatureBlock {
	w := newBlockWriter(length)
	fg := make([]bool, len(g.v))
	var fgCount float64
	minX, minY, maxX, maxY := g.w, g.h, -1, -1
	var sumX, sumY float64
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			if g.at(x, y) <= binarizeThreshold {
				continue
			}
			fg[y*g.w+x] = true
			fgCount++
			sumX += float64(x)
			sumY += float64(y)
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}

	contour := contourPoints(fg, g.w, g.h)
	w.add(huMoments(contour, float64(max(g.w, g.h)))...)

	pixels := float64(g.w * g.h)
	var aspect, symH, symV, fill, cx, cy float64
	if fgCount > 0 {
		bw, bh := float64(maxX-minX+1), float64(maxY-minY+1)
		aspect = math.Min(bw, bh) / math.Max(bw, bh)
		symH, symV = symmetry(fg, g.w, minX, minY, maxX, maxY)
		fill = fgCount / (bw * bh)
		cx = sumX / fgCount / float64(g.w)
		cy = sumY / fgCount / float64(g.h)
	}
	w.add(aspect, float64(len(contour))/pixels, fgCount/pixels, symH, symV)

	corners, peak := cornerGridStrength(g)
	w.add(corners...)
	w.add(peak, cx, cy, fill)
	return w.block(BlockShape)
}

// contourPoints returns interior foreground pixels with a background 4-neighbour.
func contourPoints(fg []bool, w, h int) [][2]float64 {
	var pts [][2]float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			if !fg[i] {
				continue
			}
			if !fg[i-1] || !fg[i+1] || !fg[i-w] || !fg[i+w] {
				pts = append(pts, [2]float64{float64(x), float64(y)})
			}
		}
	}
	return pts
}

// huMoments computes the seven Hu invariants from central moments of pts
// taken in units of scale, mapped into [0,1]. No points yields zeros.
func huMoments(pts [][2]float64, scale float64) []float64 {
	out := make([]float64, 7)
	if len(pts) == 0 || scale == 0 {
		return out
	}
	var cx, cy float64
	for _, p := range pts {
		cx += p[0]
		cy += p[1]
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var m20, m02, m11, m30, m03, m21, m12 float64
	for _, p := range pts {
		dx, dy := (p[0]-cx)/scale, (p[1]-cy)/scale
		m20 += dx * dx
		m02 += dy * dy
		m11 += dx * dy
		m30 += dx * dx * dx
		m03 += dy * dy * dy
		m21 += dx * dx * dy
		m12 += dx * dy * dy
	}
	m20, m02, m11 = m20/n, m02/n, m11/n
	m30, m03, m21, m12 = m30/n, m03/n, m21/n, m12/n

	a, b := m30+m12, m21+m03
	c, d := m30-3*m12, 3*m21-m03
	hu := [7]float64{
		m20 + m02,
		(m20-m02)*(m20-m02) + 4*m11*m11,
		c*c + d*d,
		a*a + b*b,
		c*a*(a*a-3*b*b) + d*b*(3*a*a-b*b),
		(m20-m02)*(a*a-b*b) + 4*m11*a*b,
		d*a*(a*a-3*b*b) - c*b*(3*a*a-b*b),
	}
	for i, v := range hu {
		out[i] = math.Min(1, math.Pow(math.Abs(v), 1/momentDegrees[i]))
	}
	return out
}

// symmetry returns the fraction of mirrored pixel pairs with equal binarized
// value inside the box, left-right and top-bottom.
func symmetry(fg []bool, w, x0, y0, x1, y1 int) (float64, float64) {
	var hEq, hN, vEq, vN float64
	for y := y0; y <= y1; y++ {
		for x := x0; x < x0+(x1-x0+1)/2; x++ {
			hN++
			if fg[y*w+x] == fg[y*w+(x0+x1-x)] {
				hEq++
			}
		}
	}
	for y := y0; y < y0+(y1-y0+1)/2; y++ {
		for x := x0; x <= x1; x++ {
			vN++
			if fg[y*w+x] == fg[(y0+y1-y)*w+x] {
				vEq++
			}
		}
	}
	h, v := 1.0, 1.0
	if hN > 0 {
		h = hEq / hN
	}
	if vN > 0 {
		v = vEq / vN
	}
	return h, v
}

// cornerGridStrength counts interior pixels whose summed absolute difference
// to their 8 neighbours exceeds cornerThreshold, per grid cell.
func cornerGridStrength(g *grayPlane) ([]float64, float64) {
	var hits, count [cornerGrid * cornerGrid]float64
	for y := 1; y < g.h-1; y++ {
		cy := y * cornerGrid / g.h
		for x := 1; x < g.w-1; x++ {
			c := g.at(x, y)
			var diff float64
			for _, o := range lbpOffsets {
				diff += math.Abs(g.at(x+o[0], y+o[1]) - c)
			}
			cell := cy*cornerGrid + x*cornerGrid/g.w
			count[cell]++
			if diff > cornerThreshold {
				hits[cell]++
			}
		}
	}
	out := make([]float64, len(hits))
	var peak float64
	for i := range hits {
		out[i] = ratio(hits[i], count[i])
		peak = math.Max(peak, out[i])
	}
	return out, peak
}
