package descriptor

import "math"

const (
	lbpStride        = 2
	lbpBins          = 32
	glcmLevels       = 8
	directionalCount = 6

	// Index of the pattern strength value inside the texture block.
	TexturePatternStrengthIndex = lbpBins + 4 + glcmLevels*glcmLevels + 2*len(repetitionScales) + 2 +
		2*len(repetitionScales) + directionalCount + 1
)

var repetitionScales = [...]int{8, 16, 24, 32}

// lbpOffsets lists the 8 neighbours clockwise from the top-left.
var lbpOffsets = [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}}

// textureAnalysis holds the statistics shared by the texture and pattern blocks.
type textureAnalysis struct {
	lbp      [lbpBins]float64
	textured float64

	contrast, homogeneity, energy, correlation float64
	glcm                                       [glcmLevels * glcmLevels]float64

	repetition      [2 * len(repetitionScales)]float64
	repetitionMax   float64
	repetitionMean  float64
	quilting        [len(repetitionScales)]float64
	monogram        [len(repetitionScales)]float64
	directional     [directionalCount]float64
	patternStrength float64
}

func analyzeTexture(g *grayPlane) *textureAnalysis {
	t := &textureAnalysis{}
	t.localBinaryPatterns(g.downsample(lbpStride))
	if t.textured == 0 {
		return t
	}
	t.cooccurrence(g)
	t.repetitions(g)
	t.directionalStats(g)
	t.patternStrength = t.repetitionMax * t.directional[1]
	return t
}

// localBinaryPatterns fills the merged LBP histogram. Flat pixels, whose
// neighbours all equal the centre, carry no texture and are not counted.
func (t *textureAnalysis) localBinaryPatterns(g *grayPlane) {
	var sampled, textured float64
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			sampled++
			c := g.at(x, y)
			code, flat := 0, true
			for k, o := range lbpOffsets {
				n := g.at(x+o[0], y+o[1])
				if n != c {
					flat = false
				}
				if n >= c {
					code |= 1 << k
				}
			}
			if flat {
				continue
			}
			textured++
			t.lbp[code*lbpBins/256]++
		}
	}
	for i := range t.lbp {
		t.lbp[i] = ratio(t.lbp[i], sampled)
	}
	t.textured = ratio(textured, sampled)
}

// cooccurrence builds the horizontal-neighbour GLCM and its statistics.
func (t *textureAnalysis) cooccurrence(g *grayPlane) {
	var total float64
	for y := 0; y < g.h; y++ {
		for x := 0; x+1 < g.w; x++ {
			i := quantizeGray(g.at(x, y))
			j := quantizeGray(g.at(x+1, y))
			t.glcm[i*glcmLevels+j]++
			total++
		}
	}
	if total == 0 {
		return
	}

	var muI, muJ float64
	for i := 0; i < glcmLevels; i++ {
		for j := 0; j < glcmLevels; j++ {
			p := t.glcm[i*glcmLevels+j] / total
			t.glcm[i*glcmLevels+j] = p
			d := float64(i - j)
			t.contrast += p * d * d
			t.homogeneity += p / (1 + math.Abs(d))
			t.energy += p * p
			muI += float64(i) * p
			muJ += float64(j) * p
		}
	}
	var varI, varJ, cov float64
	for i := 0; i < glcmLevels; i++ {
		for j := 0; j < glcmLevels; j++ {
			p := t.glcm[i*glcmLevels+j]
			di, dj := float64(i)-muI, float64(j)-muJ
			varI += p * di * di
			varJ += p * dj * dj
			cov += p * di * dj
		}
	}
	maxD := float64(glcmLevels - 1)
	t.contrast /= maxD * maxD
	if varI > 0 && varJ > 0 {
		t.correlation = (cov/math.Sqrt(varI*varJ) + 1) / 2
	}
}

func quantizeGray(v float64) int {
	l := int(v) * glcmLevels / 256
	if l >= glcmLevels {
		l = glcmLevels - 1
	}
	return l
}

// repetitions compares tiles with their right and lower neighbours (repetition),
// their diagonal neighbour (quilting) and a half-drop neighbour (monogram).
func (t *textureAnalysis) repetitions(g *grayPlane) {
	var sum float64
	for k, s := range repetitionScales {
		h := tileSimilarity(g, s, s, 0)
		v := tileSimilarity(g, s, 0, s)
		t.repetition[2*k] = h
		t.repetition[2*k+1] = v
		t.repetitionMax = math.Max(t.repetitionMax, math.Max(h, v))
		sum += h + v
		t.quilting[k] = tileSimilarity(g, s, s, s)
		t.monogram[k] = tileSimilarity(g, s, s, s/2)
	}
	t.repetitionMean = sum / float64(len(t.repetition))
}

// tileSimilarity averages 1 - meanAbsDiff over all size×size tiles paired with
// the tile offset by (dx, dy). Returns 0 when no pair fits.
func tileSimilarity(g *grayPlane, size, dx, dy int) float64 {
	var sum, pairs float64
	for y := 0; y+dy+size <= g.h; y += size {
		for x := 0; x+dx+size <= g.w; x += size {
			sum += 1 - g.tileDiff(x, y, x+dx, y+dy, size)
			pairs++
		}
	}
	return ratio(sum, pairs)
}

// directionalStats measures central-difference gradients: mean strength,
// density of strong changes, and the share of horizontal, vertical, diagonal
// and overall edge responses.
func (t *textureAnalysis) directionalStats(g *grayPlane) {
	var strength, dense, horiz, vert, diag, edges, n float64
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			h := math.Abs(g.at(x+1, y) - g.at(x-1, y))
			v := math.Abs(g.at(x, y+1) - g.at(x, y-1))
			n++
			strength += (h + v) / 2
			if h > 50 || v > 50 {
				dense++
			}
			if h > 100 {
				horiz++
			}
			if v > 100 {
				vert++
			}
			if math.Abs(h-v) < 30 && h > 50 {
				diag++
			}
			if h+v > 100 {
				edges++
			}
		}
	}
	t.directional = [directionalCount]float64{
		ratio(strength, n) / 255,
		ratio(dense, n),
		ratio(horiz, n),
		ratio(vert, n),
		ratio(diag, n),
		ratio(edges, n),
	}
}

// TextureBlock computes the texture block of the given length.
//
// Layout: merged LBP histogram (32), GLCM contrast, homogeneity, energy and
// correlation (4), normalized GLCM (64), horizontal/vertical repetition per
// tile scale (8), repetition max and mean (2), quilting per scale (4),
// monogram per scale (4), directional stats (6), textured fraction (1),
// pattern strength (1), zero padding. A raster without a single textured
// pixel produces an all-zero block.
func TextureBlock(g *grayPlane, length int) FeatureBlock {
	return textureBlock(analyzeTexture(g), length)
}

func textureBlock(t *textureAnalysis, length int) FeatureBlock {
	w := newBlockWriter(length)
	if t.textured == 0 {
		return w.block(BlockTexture)
	}
	w.add(t.lbp[:]...)
	w.add(t.contrast, t.homogeneity, t.energy, t.correlation)
	w.add(t.glcm[:]...)
	w.add(t.repetition[:]...)
	w.add(t.repetitionMax, t.repetitionMean)
	w.add(t.quilting[:]...)
	w.add(t.monogram[:]...)
	w.add(t.directional[:]...)
	w.add(t.textured, t.patternStrength)
	return w.block(BlockTexture)
}
