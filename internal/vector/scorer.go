package vector

import "github.com/hyperjump/niteru/internal/descriptor"

// Score is the outcome of comparing two vectors.
type Score struct {
	Similarity float64
	PerBlock   map[string]float64
}

// Scorer computes weighted block-wise cosine similarity.
type Scorer struct {
	policy WeightPolicy
}

// NewScorer returns a scorer using policy, or the schema defaults when policy is nil.
func NewScorer(policy WeightPolicy) *Scorer {
	if policy == nil {
		policy = StaticWeights{}
	}
	return &Scorer{policy: policy}
}

// Compare scores a against b. The second result is false when the pair is
// incomparable: schemas with different layouts or vectors that do not fit
// their schema. Callers exclude such pairs.
//
// Blocks that are zero on both sides hold no information and are left out
// of the weighted sum; the remaining weights are renormalized.
func (s *Scorer) Compare(a []float32, as *descriptor.Schema, b []float32, bs *descriptor.Schema) (Score, bool) {
	if !as.Compatible(bs) || len(a) != as.TotalLength || len(b) != bs.TotalLength {
		return Score{}, false
	}
	weights := s.policy.Weights(as, a, b)

	score := Score{PerBlock: make(map[string]float64, len(as.Blocks))}
	var total, used float64
	for _, blk := range as.Blocks {
		sa := a[blk.Offset : blk.Offset+blk.Length]
		sb := b[blk.Offset : blk.Offset+blk.Length]
		na, nb := Norm(sa), Norm(sb)
		if na == 0 && nb == 0 {
			score.PerBlock[blk.Name] = 0
			continue
		}
		var sim float64
		if na != 0 && nb != 0 {
			sim = clamp01(Dot(sa, sb) / (na * nb))
		}
		score.PerBlock[blk.Name] = sim
		w := finite(weights[blk.Name])
		total += w * sim
		used += w
	}
	if used > 0 {
		score.Similarity = clamp01(total / used)
	}
	return score, true
}
