package descriptor

import "math"

const (
	edgeGrid        = 8
	orientationBins = 8
	complexityGrid  = 7

	// sobelMax is the largest Sobel magnitude on 8-bit input.
	sobelMax = 1020 * math.Sqrt2
	// orientationThreshold is the raw magnitude a pixel needs to vote.
	orientationThreshold = 30
	// complexityThreshold is the raw magnitude delta counted as a change.
	complexityThreshold = 20
)

// edgeMap holds Sobel magnitudes and orientations for interior pixels.
type edgeMap struct {
	w, h  int
	mag   []float64
	angle []float64
}

func sobel(g *grayPlane) *edgeMap {
	w, h := g.w-2, g.h-2
	if w <= 0 || h <= 0 {
		return &edgeMap{}
	}
	m := &edgeMap{w: w, h: h, mag: make([]float64, w*h), angle: make([]float64, w*h)}
	for y := 1; y <= h; y++ {
		for x := 1; x <= w; x++ {
			tl, t, tr := g.at(x-1, y-1), g.at(x, y-1), g.at(x+1, y-1)
			l, r := g.at(x-1, y), g.at(x+1, y)
			bl, b, br := g.at(x-1, y+1), g.at(x, y+1), g.at(x+1, y+1)
			gx := (tr + 2*r + br) - (tl + 2*l + bl)
			gy := (bl + 2*b + br) - (tl + 2*t + tr)
			i := (y-1)*w + (x - 1)
			m.mag[i] = math.Hypot(gx, gy)
			m.angle[i] = math.Atan2(gy, gx)
		}
	}
	return m
}

// EdgeBlock computes the edge block of the given length.
//
// Layout: 8×8 grid of mean magnitude (64), orientation histogram normalized
// by its largest bin (8), mean and max magnitude (2), 7×7 tile grid of edge
// complexity (49), global complexity (1), zero padding. Magnitudes are
// divided by the Sobel maximum so every value lies in [0,1].
func EdgeBlock(g *grayPlane, length int) FeatureBlock {
	w := newBlockWriter(length)
	m := sobel(g)
	if len(m.mag) == 0 {
		return w.block(BlockEdge)
	}

	var (
		grid      [edgeGrid * edgeGrid]float64
		gridCount [edgeGrid * edgeGrid]float64
		orient    [orientationBins]float64
		sum, peak float64
	)
	for y := 0; y < m.h; y++ {
		gy := y * edgeGrid / m.h
		for x := 0; x < m.w; x++ {
			mag := m.mag[y*m.w+x]
			cell := gy*edgeGrid + x*edgeGrid/m.w
			grid[cell] += mag
			gridCount[cell]++
			sum += mag
			peak = math.Max(peak, mag)
			if mag > orientationThreshold {
				bin := int((m.angle[y*m.w+x] + math.Pi) / (math.Pi / 4))
				if bin >= orientationBins {
					bin = orientationBins - 1
				}
				orient[bin]++
			}
		}
	}

	for i := range grid {
		w.add(ratio(grid[i], gridCount[i]) / sobelMax)
	}
	var top float64
	for _, c := range orient {
		top = math.Max(top, c)
	}
	for _, c := range orient {
		w.add(ratio(c, top))
	}
	w.add(sum/float64(len(m.mag))/sobelMax, peak/sobelMax)

	tiles, global := edgeComplexity(m)
	w.add(tiles...)
	w.add(global)
	return w.block(BlockEdge)
}

// edgeComplexity counts horizontally adjacent magnitude pairs whose delta
// exceeds complexityThreshold, per tile and overall.
func edgeComplexity(m *edgeMap) ([]float64, float64) {
	var hits, pairs [complexityGrid * complexityGrid]float64
	var totalHits, totalPairs float64
	for y := 0; y < m.h; y++ {
		ty := y * complexityGrid / m.h
		for x := 0; x+1 < m.w; x++ {
			tile := ty*complexityGrid + x*complexityGrid/m.w
			pairs[tile]++
			totalPairs++
			if math.Abs(m.mag[y*m.w+x+1]-m.mag[y*m.w+x]) > complexityThreshold {
				hits[tile]++
				totalHits++
			}
		}
	}
	out := make([]float64, len(hits))
	for i := range hits {
		out[i] = ratio(hits[i], pairs[i])
	}
	return out, ratio(totalHits, totalPairs)
}
