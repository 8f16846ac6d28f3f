// Package ranking provides optional post-hoc adjustments to similarity scores.
package ranking

// ScoringContext carries what a multiplier may look at for one candidate.
type ScoringContext struct {
	QueryKey     string
	CandidateKey string
	SourceRef    string
}

// Multiplier adjusts a similarity score.
type Multiplier interface {
	Name() string
	Multiply(ctx *ScoringContext, score float64) float64
}
