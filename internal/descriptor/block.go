// Package descriptor turns pixel buffers into fixed-layout descriptor vectors.
//
// Each extractor emits a FeatureBlock of the length its schema declares.
// Blocks are written through a fixed-length writer: values past the declared
// length are truncated and unused slots stay zero.
package descriptor

import "math"

// Block names shared by the schema registry and the scorer.
const (
	BlockColor     = "color"
	BlockEdge      = "edge"
	BlockTexture   = "texture"
	BlockShape     = "shape"
	BlockPattern   = "pattern"
	BlockEmbedding = "embedding"
)

// FeatureBlock is a named, contiguous run of descriptor values.
type FeatureBlock struct {
	Name   string
	Values []float32
}

// Len returns the number of values in the block.
func (b FeatureBlock) Len() int { return len(b.Values) }

// blockWriter fills a block of fixed length.
type blockWriter struct {
	vals []float32
	n    int
}

func newBlockWriter(length int) *blockWriter {
	return &blockWriter{vals: make([]float32, length)}
}

func (w *blockWriter) add(vs ...float64) {
	w.addScaled(1, vs...)
}

func (w *blockWriter) addScaled(gain float64, vs ...float64) {
	for _, v := range vs {
		if w.n >= len(w.vals) {
			return
		}
		w.vals[w.n] = float32(finite(v * gain))
		w.n++
	}
}

func (w *blockWriter) block(name string) FeatureBlock {
	return FeatureBlock{Name: name, Values: w.vals}
}

// finite maps NaN and ±Inf to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return finite(num / den)
}

// sanitize coerces non-finite values to 0 in place.
func sanitize(vals []float32) {
	for i, v := range vals {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			vals[i] = 0
		}
	}
}
