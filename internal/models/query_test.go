package models

import (
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name     string
		query    *SearchQuery
		wantErr  bool
		wantTopK int
	}{
		{"empty vector", &SearchQuery{SchemaID: "v1"}, true, 0},
		{"missing schema", &SearchQuery{Vector: []float32{1}}, true, 0},
		{"min similarity out of range", &SearchQuery{Vector: []float32{1}, SchemaID: "v1", MinSimilarity: 1.5}, true, 0},
		{"sets default top k", &SearchQuery{Vector: []float32{1}, SchemaID: "v1"}, false, DefaultTopK},
		{"caps top k", &SearchQuery{Vector: []float32{1}, SchemaID: "v1", TopK: 500}, false, MaxTopK},
		{"keeps top k", &SearchQuery{Vector: []float32{1}, SchemaID: "v1", TopK: 3}, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.query.TopK != tt.wantTopK {
				t.Errorf("TopK = %d, want %d", tt.query.TopK, tt.wantTopK)
			}
		})
	}
}
