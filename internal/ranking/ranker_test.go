package ranking

import (
	"testing"

	"github.com/hyperjump/niteru/internal/models"
)

func TestFilenameMultiplier_Multiply(t *testing.T) {
	config := &RankingConfig{
		Enabled: true,
		Rules: []FilenameRule{
			{Match: "goyard", Factor: 0.95},
			{Match: "chanel", Factor: 1.1},
		},
	}
	mult := NewFilenameMultiplier(config)

	tests := []struct {
		name      string
		queryKey  string
		candidate string
		score     float64
		want      float64
	}{
		{"both contain match", "goyard-tote.png", "GOYARD_bag.jpg", 0.8, 0.76},
		{"only candidate contains match", "tote.png", "goyard_bag.jpg", 0.8, 0.8},
		{"only query contains match", "goyard.png", "bag.jpg", 0.8, 0.8},
		{"boost capped at one", "chanel-1.png", "chanel-2.png", 0.95, 1},
		{"zero score stays zero", "chanel-1.png", "chanel-2.png", 0, 0},
		{"no query key", "", "chanel-2.png", 0.5, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mult.Multiply(&ScoringContext{QueryKey: tt.queryKey, CandidateKey: tt.candidate}, tt.score)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Multiply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilenameMultiplier_CaseSensitive(t *testing.T) {
	mult := NewFilenameMultiplier(&RankingConfig{
		CaseSensitive: true,
		Rules:         []FilenameRule{{Match: "LV", Factor: 0.5}},
	})
	if got := mult.Multiply(&ScoringContext{QueryKey: "lv-1", CandidateKey: "lv-2"}, 0.8); got != 0.8 {
		t.Errorf("case-sensitive mismatch applied factor: %v", got)
	}
	if got := mult.Multiply(&ScoringContext{QueryKey: "LV-1", CandidateKey: "LV-2"}, 0.8); got != 0.4 {
		t.Errorf("case-sensitive match = %v, want 0.4", got)
	}
}

func TestRanker_DisabledByDefault(t *testing.T) {
	r := NewRanker(nil)
	if r.Active() {
		t.Fatal("default ranker should be inactive")
	}
	results := []*models.SearchResult{{Key: "a", Similarity: 0.5}}
	r.Apply("a", results)
	if results[0].Similarity != 0.5 {
		t.Errorf("inactive ranker changed similarity to %v", results[0].Similarity)
	}
}

func TestRanker_Apply(t *testing.T) {
	r := NewRanker(&RankingConfig{
		Enabled: true,
		Rules: []FilenameRule{
			{Match: "mono", Factor: 0.5},
			{Match: "", Factor: 2},
			{Match: "noop", Factor: 1},
		},
	})
	if !r.Active() {
		t.Fatal("ranker with rules should be active")
	}
	if len(r.config.Rules) != 1 {
		t.Errorf("ApplyDefaults kept %d rules, want 1", len(r.config.Rules))
	}
	results := []*models.SearchResult{
		{Key: "mono-2.png", Similarity: 0.9},
		{Key: "plain.png", Similarity: 0.6},
	}
	r.Apply("mono-1.png", results)
	if results[0].Similarity != 0.45 {
		t.Errorf("mono-2 similarity = %v, want 0.45", results[0].Similarity)
	}
	if results[1].Similarity != 0.6 {
		t.Errorf("plain similarity = %v, want 0.6", results[1].Similarity)
	}
}

func TestCombinedMultiplier(t *testing.T) {
	c := NewCombinedMultiplier(
		NewFilenameMultiplier(&RankingConfig{Rules: []FilenameRule{{Match: "a", Factor: 0.5}}}),
		NewFilenameMultiplier(&RankingConfig{Rules: []FilenameRule{{Match: "a", Factor: 0.5}}}),
	)
	if got := c.Multiply(&ScoringContext{QueryKey: "a", CandidateKey: "a"}, 1); got != 0.25 {
		t.Errorf("combined = %v, want 0.25", got)
	}
	if c.Name() != "combined" {
		t.Errorf("Name() = %q", c.Name())
	}
}

func TestRankingConfig_ApplyDefaults(t *testing.T) {
	rules := []FilenameRule{
		{Match: "", Factor: 1.2},
		{Match: "nike", Factor: 1},
		{Match: "chanel", Factor: 1.1},
		{Match: "goyard", Factor: 0},
	}
	original := append([]FilenameRule(nil), rules...)
	config := &RankingConfig{Enabled: true, Rules: rules}
	config.ApplyDefaults()

	if len(config.Rules) != 1 || config.Rules[0].Match != "chanel" {
		t.Errorf("Rules = %+v, want only chanel", config.Rules)
	}
	for i := range rules {
		if rules[i] != original[i] {
			t.Errorf("caller's rule %d changed: %+v, want %+v", i, rules[i], original[i])
		}
	}
}
