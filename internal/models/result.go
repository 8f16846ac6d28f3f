package models

// SearchResult is a single ranked hit.
type SearchResult struct {
	Key        string             `json:"key"`
	Similarity float64            `json:"similarity"`
	PerBlock   map[string]float64 `json:"per_block,omitempty"`
	SourceRef  string             `json:"source_ref,omitempty"`
	Rank       int                `json:"rank"`
}

// Exclusions counts stored records left out of a ranking.
type Exclusions struct {
	Incompatible int `json:"incompatible"`
	Invalid      int `json:"invalid"`
	Filtered     int `json:"filtered"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	Schema    string          `json:"schema"`
	Excluded  Exclusions      `json:"excluded"`
	QueryTime int64           `json:"query_time_ms"`
	// EmbeddingFallback is set when the query's embedding block was zero-filled.
	EmbeddingFallback bool `json:"embedding_fallback,omitempty"`
}

// IndexFailure records one image that could not be indexed.
type IndexFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// IndexStats summarizes a batch indexing run.
type IndexStats struct {
	RunID      string         `json:"run_id"`
	Success    int            `json:"success"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Failures   []IndexFailure `json:"failures,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Cancelled  bool           `json:"cancelled,omitempty"`
}

// ValidationReport summarizes a pass over every stored record.
type ValidationReport struct {
	ValidCount   int            `json:"valid_count"`
	InvalidCount int            `json:"invalid_count"`
	PerSchema    map[string]int `json:"per_schema"`
	InvalidKeys  []string       `json:"invalid_keys,omitempty"`
}
