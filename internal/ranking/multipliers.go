package ranking

import "strings"

// FilenameMultiplier applies the first rule whose match string appears in
// both the query key and the candidate key.
type FilenameMultiplier struct {
	rules         []FilenameRule
	caseSensitive bool
}

// NewFilenameMultiplier creates a new FilenameMultiplier.
func NewFilenameMultiplier(config *RankingConfig) *FilenameMultiplier {
	return &FilenameMultiplier{rules: config.Rules, caseSensitive: config.CaseSensitive}
}

// Name returns the multiplier name.
func (m *FilenameMultiplier) Name() string {
	return "filename"
}

// Multiply applies the matching rule's factor, capped at 1.
func (m *FilenameMultiplier) Multiply(ctx *ScoringContext, score float64) float64 {
	if score == 0 || ctx.QueryKey == "" {
		return score
	}
	q, c := ctx.QueryKey, ctx.CandidateKey
	if !m.caseSensitive {
		q, c = strings.ToLower(q), strings.ToLower(c)
	}
	for _, r := range m.rules {
		match := r.Match
		if !m.caseSensitive {
			match = strings.ToLower(match)
		}
		if strings.Contains(q, match) && strings.Contains(c, match) {
			return min(1, score*r.Factor)
		}
	}
	return score
}

// CombinedMultiplier applies multiple multipliers in sequence.
type CombinedMultiplier struct {
	multipliers []Multiplier
}

// NewCombinedMultiplier creates a combined multiplier from multiple multipliers.
func NewCombinedMultiplier(multipliers ...Multiplier) *CombinedMultiplier {
	return &CombinedMultiplier{multipliers: multipliers}
}

// Name returns the multiplier name.
func (m *CombinedMultiplier) Name() string {
	return "combined"
}

// Multiply applies all multipliers in sequence.
func (m *CombinedMultiplier) Multiply(ctx *ScoringContext, score float64) float64 {
	for _, mult := range m.multipliers {
		score = mult.Multiply(ctx, score)
	}
	return score
}

// DefaultMultipliers returns the multipliers enabled by config.
func DefaultMultipliers(config *RankingConfig) []Multiplier {
	var multipliers []Multiplier
	if config.Enabled && len(config.Rules) > 0 {
		multipliers = append(multipliers, NewFilenameMultiplier(config))
	}
	return multipliers
}
