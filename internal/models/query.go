package models

import "fmt"

const (
	DefaultTopK = 20
	MaxTopK     = 100
)

// SearchQuery is one ranking request over the stored descriptors.
type SearchQuery struct {
	// Key excludes the record with the same key from the results.
	Key           string    `json:"key,omitempty"`
	Vector        []float32 `json:"vector"`
	SchemaID      string    `json:"schema"`
	TopK          int       `json:"top_k,omitempty"`
	MinSimilarity float64   `json:"min_similarity,omitempty"`
	// Filter restricts candidates to keys or source paths matching this text.
	Filter string `json:"filter,omitempty"`
}

// Validate checks required fields and normalizes TopK into [1, MaxTopK].
func (q *SearchQuery) Validate() error {
	if len(q.Vector) == 0 {
		return fmt.Errorf("query vector cannot be empty")
	}
	if q.SchemaID == "" {
		return fmt.Errorf("query schema cannot be empty")
	}
	if q.MinSimilarity < 0 || q.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity must be within [0,1], got %v", q.MinSimilarity)
	}
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if q.TopK > MaxTopK {
		q.TopK = MaxTopK
	}
	return nil
}
