// Package main is the niteru CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/niteru/internal/config"
	"github.com/hyperjump/niteru/internal/descriptor"
	"github.com/hyperjump/niteru/internal/embedding"
	"github.com/hyperjump/niteru/internal/fileid"
	"github.com/hyperjump/niteru/internal/indexer"
	"github.com/hyperjump/niteru/internal/keyword"
	"github.com/hyperjump/niteru/internal/ranking"
	"github.com/hyperjump/niteru/internal/search"
	"github.com/hyperjump/niteru/internal/storage"
	"github.com/hyperjump/niteru/internal/vector"
	"github.com/hyperjump/niteru/pkg/utils"
)

var version = "dev"

const rootLongDesc string = `niteru finds visually similar images.

Images are reduced to fixed-length descriptor vectors (color, edges,
texture, shape and an optional neural embedding) and ranked by weighted
per-block cosine similarity.

  niteru index ~/Pictures        Index a directory
  niteru search photo.jpg        Find similar images
  niteru serve                   Run the HTTP API and directory watcher`

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "niteru",
		Short:         "niteru - image similarity search",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath(), "config file path")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newIndexCmd(opts),
		newSearchCmd(opts),
		newDeleteCmd(opts),
		newClearCmd(opts),
		newValidateCmd(opts),
		newReindexCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newStatusCmd(opts),
		newFindCmd(opts),
		newSchemasCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// A missing default file yields the built-in defaults.
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == config.DefaultPath() {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Components holds every long-lived dependency of a command.
type Components struct {
	Config       *config.Config
	ConfigPath   string
	Logger       *zap.Logger
	Storage      storage.Storage
	Embedder     embedding.Embedder
	KeywordIndex keyword.KeywordIndex
	Engine       *search.Engine
	Indexer      *indexer.Indexer
}

// Close releases the store, the keyword index and the embedder.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

// setup loads the config, builds the logger and initializes components.
// Component logging is only wired in debug mode, or always when verbose is set.
func setup(opts *rootOptions, verbose bool) (*Components, error) {
	cfg, resolved, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || opts.debug
	var outputs []string
	if cfg.LogFile != "" && verbose {
		outputs = []string{cfg.LogFile}
	}
	logger, err := utils.NewLogger(debugMode, outputs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	componentLogger := zap.NewNop()
	if debugMode || verbose {
		componentLogger = logger
	}
	componentLogger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	c, err := initializeComponents(cfg, componentLogger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	c.ConfigPath = resolved
	c.Logger = logger
	return c, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	schema, err := descriptor.Resolve(cfg.Descriptor.Schema)
	if err != nil {
		return nil, err
	}
	keyMode, err := fileid.ParseMode(cfg.Descriptor.KeyMode)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(storage.Options{
		Backend:      cfg.Storage.Backend,
		DatabasePath: cfg.Storage.DatabasePath,
		BadgerPath:   cfg.Storage.BadgerPath,
		SnapshotPath: cfg.Storage.SnapshotPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Config: cfg, Storage: store}

	asmOpts := []descriptor.AssemblerOption{descriptor.WithLogger(utils.Named(logger, "descriptor"))}
	if schema.HasEmbedding() && cfg.Embedding.Enabled {
		embedder, err := newEmbedder(cfg.Embedding)
		if err == nil {
			if err = checkEmbedder(schema, embedder); err != nil {
				_ = embedder.Close()
			}
		}
		if err != nil {
			logger.Warn("embedding provider unavailable, using zero fallback", zap.Error(err))
		} else {
			c.Embedder = embedder
			asmOpts = append(asmOpts, descriptor.WithEmbedder(embedder))
		}
	}
	assembler := descriptor.NewAssembler(schema, asmOpts...)

	var policy vector.WeightPolicy = vector.StaticWeights{Overrides: cfg.Search.Weights}
	if cfg.Search.PatternBoost.EnabledOrDefault() {
		policy = vector.PatternBoost{
			Base:      policy,
			Threshold: cfg.Search.PatternBoost.Threshold,
			Factor:    cfg.Search.PatternBoost.Factor,
		}
	}

	kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = kw

	c.Engine = search.NewEngine(store, assembler, vector.NewScorer(policy),
		search.WithKeywordIndex(kw),
		search.WithRanker(ranking.NewRanker(&cfg.Ranking)),
		search.WithMaxTopK(cfg.Search.MaxTopK),
		search.WithLogger(utils.Named(logger, "search")),
	)
	c.Indexer = indexer.NewIndexer(c.Engine,
		indexer.WithLogger(utils.Named(logger, "indexer")),
		indexer.WithKeyMode(keyMode),
		indexer.WithExtensions(cfg.Index.Extensions),
		indexer.WithRateLimit(cfg.Index.RatePerSecond),
	)
	logger.Debug("components initialized",
		zap.String("schema", schema.ID),
		zap.String("backend", cfg.Storage.Backend),
		zap.Bool("embedding", c.Embedder != nil))
	return c, nil
}

// checkEmbedder reports an embedder whose input side or output width does not
// fit the schema's embedding block.
func checkEmbedder(schema *descriptor.Schema, e embedding.Embedder) error {
	if e.InputSize() != schema.EmbeddingSize {
		return fmt.Errorf("embedding input size %d does not match schema %s (%d)",
			e.InputSize(), schema.ID, schema.EmbeddingSize)
	}
	if e.Dimensions() != descriptor.EmbeddingLength {
		return fmt.Errorf("embedding dimensions %d do not match schema %s (%d)",
			e.Dimensions(), schema.ID, descriptor.EmbeddingLength)
	}
	return nil
}

func newEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.Mock {
		return embedding.NewMockEmbedder(cfg.Dimensions, cfg.InputSize), nil
	}
	layout, err := embedding.ParseLayout(cfg.Layout)
	if err != nil {
		return nil, err
	}
	return embedding.NewONNXEmbedder(embedding.ONNXOptions{
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.LibraryPath,
		InputName:   cfg.InputName,
		OutputName:  cfg.OutputName,
		InputSize:   cfg.InputSize,
		Dimensions:  cfg.Dimensions,
		Layout:      layout,
		CacheSize:   cfg.CacheSize,
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "niteru version %s\n", version)
		},
	}
}
