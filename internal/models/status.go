package models

// Status describes the running store and its configuration.
type Status struct {
	Images           int64    `json:"images"`
	Schema           string   `json:"schema"`
	Backend          string   `json:"backend"`
	KeywordDocs      uint64   `json:"keyword_docs"`
	DiskUsageBytes   int64    `json:"disk_usage_bytes"`
	EmbeddingEnabled bool     `json:"embedding_enabled"`
	RankingEnabled   bool     `json:"ranking_enabled"`
	DatabasePath     string   `json:"database_path,omitempty"`
	BleveIndexPath   string   `json:"bleve_index_path,omitempty"`
	WatchDirectories []string `json:"watch_directories,omitempty"`
}
