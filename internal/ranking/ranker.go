package ranking

import (
	"github.com/hyperjump/niteru/internal/models"
)

// Ranker applies the configured multipliers to scored results.
type Ranker struct {
	config      *RankingConfig
	multipliers []Multiplier
}

// NewRanker creates a new Ranker with the given configuration.
func NewRanker(config *RankingConfig) *Ranker {
	if config == nil {
		config = DefaultRankingConfig()
	}
	config.ApplyDefaults()
	return &Ranker{config: config, multipliers: DefaultMultipliers(config)}
}

// WithMultipliers sets custom multipliers.
func (r *Ranker) WithMultipliers(multipliers []Multiplier) *Ranker {
	r.multipliers = multipliers
	return r
}

// Active reports whether any multiplier would run.
func (r *Ranker) Active() bool {
	return r != nil && len(r.multipliers) > 0
}

// Apply rescales each result's similarity in place. Ordering is left to the caller.
func (r *Ranker) Apply(queryKey string, results []*models.SearchResult) {
	if !r.Active() {
		return
	}
	for _, res := range results {
		ctx := &ScoringContext{QueryKey: queryKey, CandidateKey: res.Key, SourceRef: res.SourceRef}
		for _, m := range r.multipliers {
			res.Similarity = m.Multiply(ctx, res.Similarity)
		}
	}
}
