package config

// ApplyDefaults sets default values for any zero values in cfg.
// Relative default paths are resolved against the home directory by Load.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".local/share/niteru/db/images.db"
	}
	if cfg.Storage.BadgerPath == "" {
		cfg.Storage.BadgerPath = ".local/share/niteru/db/badger"
	}
	if cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = ".local/share/niteru/db/images.snapshot"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = ".local/share/niteru/indices/bleve"
	}
	if cfg.Descriptor.Schema == "" {
		cfg.Descriptor.Schema = "v1"
	}
	if cfg.Descriptor.KeyMode == "" {
		cfg.Descriptor.KeyMode = "filename"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = ".local/share/niteru/models/mobilenet_v2.onnx"
	}
	if cfg.Embedding.InputSize == 0 {
		cfg.Embedding.InputSize = 224
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1280
	}
	if cfg.Embedding.Layout == "" {
		cfg.Embedding.Layout = "nchw"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 256
	}
	if cfg.Index.Extensions == nil {
		cfg.Index.Extensions = defaultExtensions()
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 20
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Search.DefaultTopK > cfg.Search.MaxTopK {
		cfg.Search.DefaultTopK = cfg.Search.MaxTopK
	}
	if cfg.Search.PatternBoost.Threshold == 0 {
		cfg.Search.PatternBoost.Threshold = 0.3
	}
	if cfg.Search.PatternBoost.Factor == 0 {
		cfg.Search.PatternBoost.Factor = 1.6
	}
	cfg.Ranking.ApplyDefaults()
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = defaultExtensions()
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 500
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

func defaultExtensions() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}
}
