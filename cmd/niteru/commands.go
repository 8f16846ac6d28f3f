package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/niteru/internal/archive"
	"github.com/hyperjump/niteru/internal/cli"
	"github.com/hyperjump/niteru/internal/descriptor"
	"github.com/hyperjump/niteru/internal/fileid"
	"github.com/hyperjump/niteru/internal/keyword"
	"github.com/hyperjump/niteru/internal/search"
	"github.com/hyperjump/niteru/internal/server"
	"github.com/hyperjump/niteru/internal/storage"
)

func outputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", "text", "output format: text or json")
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var force bool
	var output string
	cmd := &cobra.Command{
		Use:   "index <file-or-directory>...",
		Short: "Index images",
		Long: `Index image files. Directories are walked recursively and filtered by
index.extensions. Files whose size and modification time are unchanged
since the last run are skipped unless --force is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			c, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer c.Close()
			stats, err := c.Indexer.IndexPaths(cmd.Context(), args, force)
			if err != nil {
				return err
			}
			return cli.WriteIndexStats(cmd.OutOrStdout(), stats, format)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-extract unchanged files")
	outputFlag(cmd, &output)
	return cmd
}

type searchFlags struct {
	topK          int
	minSimilarity float64
	filter        string
	output        string
	serverURL     string
	includeSelf   bool
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search <image>",
		Short: "Find images similar to an image file",
		Long: `Rank indexed images by similarity to the given image.

The stored record with the query image's own key is left out unless
--include-self is set. Use --server to query a running server instead
of opening the store directly.`,
		Example: `  niteru search photo.jpg
  niteru search --top-k 5 --min-similarity 0.8 photo.jpg
  niteru search --filter nike --output json photo.jpg
  niteru search --server http://localhost:8080 photo.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, opts, f, args[0])
		},
	}
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 0, "number of results (default from config)")
	cmd.Flags().Float64Var(&f.minSimilarity, "min-similarity", 0, "drop results below this similarity (default from config)")
	cmd.Flags().StringVar(&f.filter, "filter", "", "only rank images whose key or source path matches this text")
	cmd.Flags().StringVar(&f.serverURL, "server", "", "server URL (empty = open the store directly)")
	cmd.Flags().BoolVar(&f.includeSelf, "include-self", false, "keep the record stored under the query image's key")
	outputFlag(cmd, &f.output)
	return cmd
}

func runSearch(cmd *cobra.Command, opts *rootOptions, f *searchFlags, path string) error {
	format, err := cli.ParseOutputFormat(f.output)
	if err != nil {
		return err
	}
	if f.minSimilarity < 0 || f.minSimilarity > 1 {
		return fmt.Errorf("--min-similarity must be within [0,1]")
	}
	cfg, _, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	q := search.ImageQuery{TopK: f.topK, MinSimilarity: f.minSimilarity, Filter: f.filter}
	if q.TopK <= 0 {
		q.TopK = cfg.Search.DefaultTopK
	}
	if !cmd.Flags().Changed("min-similarity") {
		q.MinSimilarity = cfg.Search.MinSimilarity
	}
	exclude := ""
	if !f.includeSelf {
		mode, err := fileid.ParseMode(cfg.Descriptor.KeyMode)
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		exclude = fileid.Key(mode, abs)
	}

	if f.serverURL != "" {
		resp, err := newAPIClient(f.serverURL).searchImage(path, exclude, q)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return cli.WriteSearchResults(cmd.OutOrStdout(), resp, format)
	}

	c, err := setup(opts, false)
	if err != nil {
		return err
	}
	defer c.Close()
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	resp, err := c.Engine.SearchImage(cmd.Context(), exclude, file, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return cli.WriteSearchResults(cmd.OutOrStdout(), resp, format)
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>...",
		Short: "Delete images by key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer c.Close()
			var missing []string
			for _, key := range args {
				err := c.Indexer.Delete(cmd.Context(), key)
				switch {
				case errors.Is(err, storage.ErrNotFound):
					missing = append(missing, key)
				case err != nil:
					return fmt.Errorf("delete %s: %w", key, err)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted: %s\n", key)
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("no image with key: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every indexed image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the store without --yes")
			}
			c, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Indexer.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Store cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm removal of every record")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every stored vector against its schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			c, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer c.Close()
			report, err := c.Engine.Validate(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteValidationReport(cmd.OutOrStdout(), report, format)
		},
	}
	outputFlag(cmd, &output)
	return cmd
}

func newReindexCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Re-extract every stored image under the configured schema",
		Long: `Re-extract every stored record from its source file with the schema in
descriptor.schema. Use this after changing schema. Records whose source
file is gone are left untouched and reported as failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			c, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer c.Close()
			stats, err := c.Indexer.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteIndexStats(cmd.OutOrStdout(), stats, format)
		},
	}
	outputFlag(cmd, &output)
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write every record to a compressed archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer c.Close()
			res, err := archive.ExportFile(cmd.Context(), c.Storage, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d record(s) to %s", res.Exported, args[0])
			if res.Skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (%d skipped)", res.Skipped)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load records from an archive written by export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer c.Close()
			res, err := archive.ImportFile(cmd.Context(), c.Engine, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d record(s), %d invalid\n", res.Imported, res.Invalid)
			for _, k := range res.InvalidKeys {
				fmt.Fprintf(cmd.OutOrStdout(), "  invalid: %s\n", k)
			}
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var output, serverURL string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store, index and configuration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			if serverURL != "" {
				st, err := newAPIClient(serverURL).status()
				if err != nil {
					return fmt.Errorf("status failed: %w", err)
				}
				return cli.WriteStatus(cmd.OutOrStdout(), st, format)
			}
			c, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer c.Close()
			st, err := server.CollectStatus(cmd.Context(), c.Engine, c.Config, c.Config.Watch.Directories)
			if err != nil {
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), st, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "server URL (empty = open the store directly)")
	outputFlag(cmd, &output)
	return cmd
}

func newFindCmd(opts *rootOptions) *cobra.Command {
	var output string
	var limit int
	var fuzzy bool
	cmd := &cobra.Command{
		Use:   "find <text>...",
		Short: "Find indexed images by key or source path",
		Long: `Search the keyword index over image keys and source paths. Words are
split on punctuation, so "red shoe" matches red_shoe-01.png.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			query := buildQuery(args)
			if query == "" {
				return fmt.Errorf("query is empty")
			}
			c, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer c.Close()
			results, err := c.KeywordIndex.Search(cmd.Context(), query, limit, &keyword.SearchOptions{FuzzyEnabled: fuzzy})
			if err != nil {
				return err
			}
			return cli.WriteKeywordResults(cmd.OutOrStdout(), results, format)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of matches")
	cmd.Flags().BoolVar(&fuzzy, "fuzzy", false, "tolerate small typos")
	outputFlag(cmd, &output)
	return cmd
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newSchemasCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List descriptor schemas (* marks the configured one)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, _, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return cli.WriteSchemas(cmd.OutOrStdout(), descriptor.Registered(), cfg.Descriptor.Schema, format)
		},
	}
	outputFlag(cmd, &output)
	return cmd
}
