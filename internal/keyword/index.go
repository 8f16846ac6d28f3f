// Package keyword provides a text index over image keys and source paths.
package keyword

import "context"

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 1 when FuzzyEnabled is true.
	Fuzziness int
}

// KeywordIndex defines keyword search over indexed image keys.
type KeywordIndex interface {
	Index(ctx context.Context, key, sourceRef string) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	// Match returns every key matching query, for candidate filtering.
	Match(ctx context.Context, query string) (map[string]struct{}, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
	// DocCount returns the total number of keys in the index.
	DocCount() (uint64, error)
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	Key    string  `json:"key"`
	Source string  `json:"source,omitempty"`
	Score  float64 `json:"score"`
}
