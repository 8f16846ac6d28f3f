package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/niteru/internal/server"
	"github.com/hyperjump/niteru/internal/watcher"
	"github.com/hyperjump/niteru/pkg/utils"
)

const serveLongDesc string = `Run the HTTP API.

Directories listed under watch.directories in the config are watched;
new and changed images are indexed, removed images are deleted. Images
already present are synced at startup (unchanged files are skipped).`

func newServeCmd(opts *rootOptions) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Run the HTTP API and directory watcher",
		Long:    serveLongDesc,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, noWatch)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "disable the directory watcher")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, noWatch bool) error {
	c, err := setup(opts, true)
	if err != nil {
		return err
	}
	defer c.Close()
	cfg := c.Config
	logger := c.Logger

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	srvOpts := []server.Option{server.WithLogger(utils.Named(logger, "server"))}
	var watchSvc *watcher.Watcher
	if !noWatch {
		watchSvc = watcher.NewWatcher(watcher.Options{
			Roots:      existingDirs(cfg.Watch.Directories, logger),
			Extensions: cfg.Watch.Extensions,
			Recursive:  cfg.Watch.RecursiveOrDefault(),
			Debounce:   time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
		}, c.Indexer, watcher.WithLogger(utils.Named(logger, "watcher")))
		if err := watchSvc.Start(gctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer watchSvc.Stop()
		srvOpts = append(srvOpts, server.WithWatch(watchSvc, c.ConfigPath))
	}
	srv := server.NewServer(c.Engine, c.Indexer, cfg, srvOpts...)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	if watchSvc != nil {
		g.Go(func() error {
			watchSvc.SyncExistingFiles()
			logger.Info("initial sync finished", zap.Int64("indexed", watchSvc.Stats().Indexed))
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	return g.Wait()
}

// existingDirs drops configured watch directories that are missing so one
// stale entry does not prevent startup.
func existingDirs(dirs []string, logger *zap.Logger) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		info, err := os.Stat(d)
		if err != nil || !info.IsDir() {
			logger.Warn("skipping watch directory", zap.String("path", d), zap.Error(err))
			continue
		}
		out = append(out, d)
	}
	return out
}
