// Package config provides configuration loading and structs for niteru.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/niteru/internal/ranking"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool                  `yaml:"debug"`
	LogFile    string                `yaml:"log_file,omitempty"`
	Server     ServerConfig          `yaml:"server"`
	Storage    StorageConfig         `yaml:"storage"`
	Descriptor DescriptorConfig      `yaml:"descriptor"`
	Embedding  EmbeddingConfig       `yaml:"embedding"`
	Index      IndexConfig           `yaml:"index"`
	Search     SearchConfig          `yaml:"search"`
	Ranking    ranking.RankingConfig `yaml:"ranking"`
	Watch      WatchConfig           `yaml:"watch"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	DebounceMs  int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL returns the http URL of the server.
func (s ServerConfig) BaseURL() string {
	return "http://" + s.Addr()
}

// StorageConfig holds the backend choice and paths for the store and indices.
type StorageConfig struct {
	// Backend is one of sqlite, badger or memory.
	Backend        string `yaml:"backend"`
	DatabasePath   string `yaml:"database_path"`
	BadgerPath     string `yaml:"badger_path"`
	SnapshotPath   string `yaml:"snapshot_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// DescriptorConfig selects the active schema and how keys are derived from paths.
type DescriptorConfig struct {
	Schema  string `yaml:"schema"`
	KeyMode string `yaml:"key_mode"`
}

// EmbeddingConfig holds ONNX embedder settings. With Enabled false, schemas
// carrying an embedding block use the zero fallback.
type EmbeddingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Mock        bool   `yaml:"mock"`
	ModelPath   string `yaml:"model_path"`
	LibraryPath string `yaml:"library_path"`
	InputName   string `yaml:"input_name"`
	OutputName  string `yaml:"output_name"`
	InputSize   int    `yaml:"input_size"`
	Dimensions  int    `yaml:"dimensions"`
	Layout      string `yaml:"layout"`
	CacheSize   int    `yaml:"cache_size"`
}

// IndexConfig holds batch indexing settings.
type IndexConfig struct {
	// RatePerSecond paces batch items; 0 means unlimited.
	RatePerSecond float64  `yaml:"rate_per_second"`
	Extensions    []string `yaml:"extensions"`
}

// SearchConfig holds search limits and the weight policy.
type SearchConfig struct {
	DefaultTopK   int                `yaml:"default_top_k"`
	MaxTopK       int                `yaml:"max_top_k"`
	MinSimilarity float64            `yaml:"min_similarity"`
	Weights       map[string]float64 `yaml:"weights,omitempty"`
	PatternBoost  PatternBoostConfig `yaml:"pattern_boost"`
}

// PatternBoostConfig raises the texture weight for strongly patterned images.
type PatternBoostConfig struct {
	Enabled   *bool   `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
	Factor    float64 `yaml:"factor"`
}

// EnabledOrDefault returns whether the boost is on; defaults to true when unset.
func (p *PatternBoostConfig) EnabledOrDefault() bool {
	if p.Enabled != nil {
		return *p.Enabled
	}
	return true
}

// DefaultPath returns ~/.config/niteru/config.yaml, or a relative path when
// the home directory is unknown.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "niteru", "config.yaml")
	}
	return "config.yaml"
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	expandPaths(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// LoadOrDefault behaves like Load, but a missing file yields the default
// configuration instead of an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		return nil, err
	}
	cfg = &Config{}
	ApplyDefaults(cfg)
	expandPaths(cfg, filepath.Dir(path))
	return cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BadgerPath = expandPath(cfg.Storage.BadgerPath, configDir)
	cfg.Storage.SnapshotPath = expandPath(cfg.Storage.SnapshotPath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.LogFile = expandPath(cfg.LogFile, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.LibraryPath = expandPath(cfg.Embedding.LibraryPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		path = strings.TrimPrefix(path, "~/")
	} else if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
