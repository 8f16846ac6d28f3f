package vector

import "github.com/hyperjump/niteru/internal/descriptor"

// WeightPolicy decides how much each block contributes to a pair's score.
// Returned weights are keyed by block name and sum to 1 over the schema's blocks.
type WeightPolicy interface {
	Weights(schema *descriptor.Schema, a, b []float32) map[string]float64
}

// StaticWeights uses the schema defaults, replaced per block by Overrides.
type StaticWeights struct {
	Overrides map[string]float64
}

// Weights implements WeightPolicy.
func (p StaticWeights) Weights(schema *descriptor.Schema, _, _ []float32) map[string]float64 {
	w := make(map[string]float64, len(schema.Blocks))
	for _, b := range schema.Blocks {
		w[b.Name] = schema.DefaultWeights[b.Name]
		if v, ok := p.Overrides[b.Name]; ok && v >= 0 {
			w[b.Name] = v
		}
	}
	return normalize(schema, w)
}

// PatternBoost raises the texture (or pattern) weight when either vector
// carries a strong repeating-pattern signal. Looking at both sides keeps
// the score symmetric.
type PatternBoost struct {
	Base      WeightPolicy
	Threshold float64
	Factor    float64
}

// Weights implements WeightPolicy.
func (p PatternBoost) Weights(schema *descriptor.Schema, a, b []float32) map[string]float64 {
	base := p.Base
	if base == nil {
		base = StaticWeights{}
	}
	w := base.Weights(schema, a, b)
	name, ok := schema.PatternBlockName()
	if !ok || p.Factor <= 0 {
		return w
	}
	signal := max(schema.PatternSignal(a), schema.PatternSignal(b))
	if signal < p.Threshold {
		return w
	}
	w[name] *= p.Factor
	return normalize(schema, w)
}

// normalize scales w to sum to 1, accumulating in block order.
func normalize(schema *descriptor.Schema, w map[string]float64) map[string]float64 {
	var sum float64
	for _, b := range schema.Blocks {
		sum += w[b.Name]
	}
	if sum <= 0 {
		return w
	}
	for _, b := range schema.Blocks {
		w[b.Name] /= sum
	}
	return w
}
