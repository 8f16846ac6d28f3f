package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/niteru/internal/config"
)

const watchLongDesc string = `Manage watched directories.

With --server the running server is updated immediately (and persists the
change to its config). Without it the config file is edited and the change
takes effect on the next "niteru serve".`

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage watched directories",
		Long:  watchLongDesc,
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (empty = edit the config file)")

	var noSync bool
	add := &cobra.Command{
		Use:   "add <path>",
		Short: "Add a directory to watch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := watchDirArg(args[0])
			if err != nil {
				return err
			}
			if serverURL != "" {
				if err := newAPIClient(serverURL).watchAdd(path, !noSync); err != nil {
					return fmt.Errorf("add failed: %w", err)
				}
			} else if err := editWatchDirs(opts, func(dirs []string) []string {
				return appendUnique(dirs, path)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", path)
			return nil
		},
	}
	add.Flags().BoolVar(&noSync, "no-sync", false, "do not index images already in the directory")

	remove := &cobra.Command{
		Use:   "remove <path>",
		Short: "Stop watching a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if serverURL != "" {
				if err := newAPIClient(serverURL).watchRemove(path); err != nil {
					return fmt.Errorf("remove failed: %w", err)
				}
			} else if err := editWatchDirs(opts, func(dirs []string) []string {
				return removeString(dirs, path)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", path)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List watched directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var dirs []string
			if serverURL != "" {
				d, err := newAPIClient(serverURL).watchList()
				if err != nil {
					return fmt.Errorf("list failed: %w", err)
				}
				dirs = d
			} else {
				cfg, _, err := loadConfig(opts.configPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				dirs = cfg.Watch.Directories
			}
			for _, d := range dirs {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}

// watchDirArg resolves path and checks that it is an existing directory.
func watchDirArg(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

// editWatchDirs applies edit to the configured watch directories and saves the config.
func editWatchDirs(opts *rootOptions, edit func([]string) []string) error {
	cfg, resolved, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Watch.Directories = edit(cfg.Watch.Directories)
	return config.Save(resolved, cfg)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
