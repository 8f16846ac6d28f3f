package ranking

// FilenameRule multiplies the score when both keys contain Match.
type FilenameRule struct {
	Match  string  `yaml:"match" json:"match"`
	Factor float64 `yaml:"factor" json:"factor"`
}

// RankingConfig holds the ranking plugin configuration.
type RankingConfig struct {
	// Enabled turns the plugin on; scores are left untouched otherwise.
	Enabled bool `yaml:"enabled"`
	// CaseSensitive compares keys and matches byte for byte.
	CaseSensitive bool           `yaml:"case_sensitive"`
	Rules         []FilenameRule `yaml:"rules"`
}

// DefaultRankingConfig returns the default ranking configuration: disabled, no rules.
func DefaultRankingConfig() *RankingConfig {
	return &RankingConfig{}
}

// ApplyDefaults drops rules that could not change a score. The caller's
// Rules slice is not modified.
func (c *RankingConfig) ApplyDefaults() {
	var kept []FilenameRule
	for _, r := range c.Rules {
		if r.Match != "" && r.Factor > 0 && r.Factor != 1 {
			kept = append(kept, r)
		}
	}
	c.Rules = kept
}
