package descriptor

import (
	"math"
	"sort"

	"github.com/hyperjump/niteru/internal/raster"
)

const (
	rgbBinsPerChannel = 4
	hueBins           = 12
	brightnessBins    = 10
	dominantColors    = 3

	// chromaMin is the saturation and value below which hue is undefined.
	chromaMin = 0.1
	// secondaryGain scales the occupancy and dominant-color segments.
	secondaryGain = 0.25
)

// ColorBlock computes the color block of the given length.
//
// Layout: RGB histogram (64), hue histogram of chromatic pixels (12),
// saturation occupancy (3), value occupancy (3), dominant colors as
// r,g,b,fraction (12), grayscale standard deviation / 255 (1),
// grayscale distribution (10), zero padding.
func ColorBlock(buf *raster.PixelBuffer, length int) FeatureBlock {
	n := buf.Len()
	total := float64(n)

	var (
		rgb        [rgbBinsPerChannel * rgbBinsPerChannel * rgbBinsPerChannel]float64
		hue        [hueBins]float64
		sat        [3]float64
		val        [3]float64
		brightness [brightnessBins]float64
		sum, sumSq float64
	)

	for i := 0; i < n; i++ {
		r, g, b := buf.RGBAt(i)
		rgb[rgbBin(r, g, b)]++

		h, s, v := hsv(r, g, b)
		if s >= chromaMin && v >= chromaMin {
			hue[int(h/30)%hueBins]++
		}
		sat[level3(s)]++
		val[level3(v)]++

		gray := (float64(r) + float64(g) + float64(b)) / 3
		sum += gray
		sumSq += gray * gray
		bin := int(gray / 25.6)
		if bin >= brightnessBins {
			bin = brightnessBins - 1
		}
		brightness[bin]++
	}

	w := newBlockWriter(length)
	for _, c := range rgb {
		w.add(ratio(c, total))
	}
	for _, c := range hue {
		w.add(ratio(c, total))
	}
	for _, c := range sat {
		w.addScaled(secondaryGain, ratio(c, total))
	}
	for _, c := range val {
		w.addScaled(secondaryGain, ratio(c, total))
	}
	for _, d := range dominant(rgb[:], total) {
		w.addScaled(secondaryGain, d[:]...)
	}

	mean := sum / total
	variance := sumSq/total - mean*mean
	if variance < 0 {
		variance = 0
	}
	w.add(math.Sqrt(variance) / 255)

	for _, c := range brightness {
		w.add(ratio(c, total))
	}
	return w.block(BlockColor)
}

func rgbBin(r, g, b uint8) int {
	return int(r>>6)<<4 | int(g>>6)<<2 | int(b>>6)
}

// dominant returns the most populated quantized colors ordered by count,
// ties broken by the lower bin. Missing entries are zero.
func dominant(rgb []float64, total float64) [dominantColors][4]float64 {
	bins := make([]int, 0, len(rgb))
	for i, c := range rgb {
		if c > 0 {
			bins = append(bins, i)
		}
	}
	sort.SliceStable(bins, func(i, j int) bool {
		return rgb[bins[i]] > rgb[bins[j]]
	})

	var out [dominantColors][4]float64
	for k := 0; k < dominantColors && k < len(bins); k++ {
		bin := bins[k]
		out[k] = [4]float64{
			float64((bin>>4)&3*64) / 255,
			float64((bin>>2)&3*64) / 255,
			float64(bin&3*64) / 255,
			ratio(rgb[bin], total),
		}
	}
	return out
}

// hsv converts 8-bit RGB to hue in degrees and saturation/value in [0,1].
func hsv(r8, g8, b8 uint8) (h, s, v float64) {
	r, g, b := float64(r8)/255, float64(g8)/255, float64(b8)/255
	mx := math.Max(r, math.Max(g, b))
	mn := math.Min(r, math.Min(g, b))
	d := mx - mn
	v = mx
	if mx > 0 {
		s = d / mx
	}
	if d == 0 {
		return 0, s, v
	}
	switch mx {
	case r:
		h = math.Mod((g-b)/d, 6)
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return h, s, v
}

func level3(x float64) int {
	switch {
	case x < 0.33:
		return 0
	case x < 0.66:
		return 1
	}
	return 2
}
