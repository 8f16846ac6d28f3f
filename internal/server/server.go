// Package server provides the HTTP API for niteru.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/niteru/internal/config"
	"github.com/hyperjump/niteru/internal/indexer"
	"github.com/hyperjump/niteru/internal/models"
	"github.com/hyperjump/niteru/internal/search"
	"github.com/hyperjump/niteru/internal/storage"
	"go.uber.org/zap"
)

// maxUploadBytes bounds multipart image uploads.
const maxUploadBytes = 32 << 20

// WatchService manages watched directories at runtime.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the niteru API.
type Server struct {
	engine     *search.Engine
	indexer    *indexer.Indexer
	cfg        *config.Config
	cfgMu      sync.Mutex
	configPath string
	watch      WatchService
	logger     *zap.Logger
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWatch enables the watch endpoints. Directory changes are written back
// to configPath when it is set.
func WithWatch(w WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *search.Engine, idx *indexer.Indexer, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		indexer: idx,
		cfg:     cfg,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/images", s.handleIndexImage)
		r.Get("/images/{key}", s.handleGetImage)
		r.Delete("/images/{key}", s.handleDeleteImage)
		r.Delete("/images", s.handleClear)
		r.Post("/index", s.handleIndexPaths)
		r.Get("/validate", s.handleValidate)
		r.Get("/status", s.handleStatus)
		r.Get("/schemas", s.handleSchemas)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
// http.ErrServerClosed is returned after Stop.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server. Calling Stop before Start makes
// Start return http.ErrServerClosed immediately.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// CollectStatus gathers store counts, index sizes and disk usage.
func CollectStatus(ctx context.Context, engine *search.Engine, cfg *config.Config, watchDirs []string) (*models.Status, error) {
	count, err := engine.Storage().Count(ctx)
	if err != nil {
		return nil, err
	}
	st := &models.Status{
		Images:           count,
		Schema:           engine.Schema().ID,
		Backend:          cfg.Storage.Backend,
		EmbeddingEnabled: cfg.Embedding.Enabled,
		RankingEnabled:   cfg.Ranking.Enabled,
		DatabasePath:     cfg.Storage.DatabasePath,
		BleveIndexPath:   cfg.Storage.BleveIndexPath,
		WatchDirectories: watchDirs,
	}
	if kw := engine.KeywordIndex(); kw != nil {
		if n, err := kw.DocCount(); err == nil {
			st.KeywordDocs = n
		}
	}
	paths := storage.Options{
		Backend:      cfg.Storage.Backend,
		DatabasePath: cfg.Storage.DatabasePath,
		BadgerPath:   cfg.Storage.BadgerPath,
		SnapshotPath: cfg.Storage.SnapshotPath,
	}.Paths()
	paths = append(paths, cfg.Storage.BleveIndexPath)
	if n, err := storage.DiskUsageBytes(paths...); err == nil {
		st.DiskUsageBytes = n
	}
	return st, nil
}
