// Package indexer turns images into stored descriptors, one at a time.
package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/niteru/internal/fileid"
	"github.com/hyperjump/niteru/internal/models"
	"github.com/hyperjump/niteru/internal/raster"
	"github.com/hyperjump/niteru/internal/search"
	"github.com/hyperjump/niteru/internal/storage"
)

// ErrSourceUnavailable is recorded when a stored record's source file can no longer be read.
var ErrSourceUnavailable = errors.New("source unavailable")

// Indexer extracts descriptors with the engine's active schema and stores them.
type Indexer struct {
	engine      *search.Engine
	keyMode     fileid.Mode
	allowedExts []string
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for per-item and per-batch events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithKeyMode sets how keys are derived from file paths.
func WithKeyMode(m fileid.Mode) IndexerOption {
	return func(idx *Indexer) { idx.keyMode = m }
}

// WithExtensions restricts directory walks to the given extensions.
func WithExtensions(exts []string) IndexerOption {
	return func(idx *Indexer) { idx.allowedExts = exts }
}

// WithRateLimit paces batch items at perSecond; 0 or less means unlimited.
func WithRateLimit(perSecond float64) IndexerOption {
	return func(idx *Indexer) {
		if perSecond > 0 {
			idx.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewIndexer creates an indexer writing through engine.
func NewIndexer(engine *search.Engine, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		engine:  engine,
		keyMode: fileid.ModeFilename,
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// KeyFor returns the key a file at path would be stored under.
func (idx *Indexer) KeyFor(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	return fileid.Key(idx.keyMode, absPath), nil
}

// IndexImages indexes inputs strictly one after another. A failing item is
// counted and the batch continues. ctx is checked between items only; an
// extraction in progress always runs to completion.
func (idx *Indexer) IndexImages(ctx context.Context, inputs []models.ImageInput) *models.IndexStats {
	start := time.Now()
	stats := &models.IndexStats{RunID: uuid.New().String()}
	logger := idx.logger.With(zap.String("run_id", stats.RunID))
	itemCtx := context.WithoutCancel(ctx)

	for i := range inputs {
		if err := idx.limiter.Wait(ctx); err != nil {
			stats.Cancelled = true
			break
		}
		in := &inputs[i]
		skipped, err := idx.indexInput(itemCtx, in)
		switch {
		case err != nil:
			stats.Failed++
			stats.Failures = append(stats.Failures, models.IndexFailure{Source: describe(in), Error: err.Error()})
			logger.Warn("skipping image", zap.String("source", describe(in)), zap.Error(err))
		case skipped:
			stats.Skipped++
		default:
			stats.Success++
		}
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	logger.Info("batch finished",
		zap.Int("success", stats.Success),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Bool("cancelled", stats.Cancelled),
		zap.Int64("duration_ms", stats.DurationMs))
	return stats
}

func describe(in *models.ImageInput) string {
	if in.Path != "" {
		return in.Path
	}
	return in.Key
}

// IndexFile indexes one image file. Unchanged files (same source path, mtime,
// size and schema) are skipped unless force is set.
func (idx *Indexer) IndexFile(ctx context.Context, path string, force bool) error {
	_, err := idx.indexInput(ctx, &models.ImageInput{Path: path, Force: force})
	return err
}

// indexInput indexes one input and reports whether it was skipped as unchanged.
func (idx *Indexer) indexInput(ctx context.Context, in *models.ImageInput) (bool, error) {
	if in.Data != nil {
		if in.Key == "" {
			return false, fmt.Errorf("key is required for in-memory images")
		}
		img, format, err := raster.Decode(bytes.NewReader(in.Data), in.Key)
		if err != nil {
			return false, err
		}
		meta := copyMeta(in.Metadata)
		meta[models.MetaFormat] = format
		return false, idx.store(ctx, in.Key, in.SourceRef, img, meta)
	}
	if in.Path == "" {
		return false, fmt.Errorf("input has neither path nor data")
	}

	absPath, err := filepath.Abs(in.Path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", absPath)
	}
	key := in.Key
	if key == "" {
		key = fileid.Key(idx.keyMode, absPath)
	}
	sourceRef := in.SourceRef
	if sourceRef == "" {
		sourceRef = absPath
	}
	if !in.Force && idx.unchanged(ctx, key, sourceRef, info) {
		// Ensure the key is in the keyword index (repopulates if Bleve was opened empty).
		if kw := idx.engine.KeywordIndex(); kw != nil {
			_ = kw.Index(ctx, key, sourceRef)
		}
		idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
		return true, nil
	}

	img, format, err := raster.DecodeFile(absPath)
	if err != nil {
		return false, err
	}
	meta := copyMeta(in.Metadata)
	meta[models.MetaFormat] = format
	// Stored as strings to avoid JSON float64 precision loss (UnixNano exceeds 53 bits).
	meta[models.MetaSourceMtime] = strconv.FormatInt(info.ModTime().UnixNano(), 10)
	meta[models.MetaSourceSize] = strconv.FormatInt(info.Size(), 10)
	if err := idx.store(ctx, key, sourceRef, img, meta); err != nil {
		return false, err
	}
	idx.logger.Debug("indexer file indexed", zap.String("path", absPath), zap.String("key", key))
	return false, nil
}

func copyMeta(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+6)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// store extracts img under the active schema and upserts the record.
func (idx *Indexer) store(ctx context.Context, key, sourceRef string, img image.Image, meta map[string]interface{}) error {
	desc, err := idx.engine.Assembler().Extract(ctx, img)
	if err != nil {
		return fmt.Errorf("extract %s: %w", key, err)
	}
	b := img.Bounds()
	meta[models.MetaWidth] = b.Dx()
	meta[models.MetaHeight] = b.Dy()
	if desc.EmbeddingFallback {
		meta[models.MetaFallback] = true
	}
	return idx.engine.Index(ctx, &models.ImageRecord{
		Key:       key,
		SchemaID:  desc.Schema.ID,
		Vector:    desc.Vector,
		SourceRef: sourceRef,
		Metadata:  meta,
	})
}

// unchanged reports whether key is stored from the same source with the same
// mtime, size and active schema.
func (idx *Indexer) unchanged(ctx context.Context, key, sourceRef string, info os.FileInfo) bool {
	rec, err := idx.engine.Storage().Get(ctx, key)
	if err != nil || rec.Metadata == nil {
		return false
	}
	if rec.SourceRef != sourceRef || rec.SchemaID != idx.engine.Schema().ID {
		return false
	}
	return metadataInt64(rec.Metadata, models.MetaSourceMtime) == info.ModTime().UnixNano() &&
		metadataInt64(rec.Metadata, models.MetaSourceSize) == info.Size()
}

func metadataInt64(m map[string]interface{}, key string) int64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case string:
		x, _ := strconv.ParseInt(n, 10, 64)
		return x
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// CollectFiles expands paths into supported image files. Directories are
// walked recursively; files are kept when their extension is allowed.
func (idx *Indexer) CollectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("absolute path: %w", err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, absPath)
			continue
		}
		err = filepath.WalkDir(absPath, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !idx.Allowed(path) {
				return nil
			}
			// Resolve symlinks so we only index regular files
			finfo, statErr := os.Stat(path)
			if statErr != nil || !finfo.Mode().IsRegular() {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// Allowed reports whether path has an extension the indexer accepts.
func (idx *Indexer) Allowed(path string) bool {
	if len(idx.allowedExts) == 0 {
		return raster.IsSupported(path)
	}
	return extensionAllowed(filepath.Ext(path), idx.allowedExts)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// IndexPaths collects files under paths and indexes them as one batch.
func (idx *Indexer) IndexPaths(ctx context.Context, paths []string, force bool) (*models.IndexStats, error) {
	files, err := idx.CollectFiles(paths)
	if err != nil {
		return nil, err
	}
	inputs := make([]models.ImageInput, len(files))
	for i, f := range files {
		inputs[i] = models.ImageInput{Path: f, Force: force}
	}
	return idx.IndexImages(ctx, inputs), nil
}

// IndexDirectory walks dir recursively and indexes every allowed image.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, force bool) (*models.IndexStats, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	return idx.IndexPaths(ctx, []string{absDir}, force)
}

// Reindex re-extracts every stored record under the active schema from its
// source file, keeping keys. Records whose source cannot be read stay as
// they are and are counted as failed.
func (idx *Indexer) Reindex(ctx context.Context) (*models.IndexStats, error) {
	records, err := idx.engine.Storage().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	inputs := make([]models.ImageInput, 0, len(records))
	var unavailable []models.IndexFailure
	for _, rec := range records {
		info, err := os.Stat(rec.SourceRef)
		if rec.SourceRef == "" || err != nil || !info.Mode().IsRegular() {
			unavailable = append(unavailable, models.IndexFailure{Source: rec.Key, Error: ErrSourceUnavailable.Error()})
			continue
		}
		inputs = append(inputs, models.ImageInput{Key: rec.Key, Path: rec.SourceRef, SourceRef: rec.SourceRef, Force: true})
	}
	stats := idx.IndexImages(ctx, inputs)
	stats.Failed += len(unavailable)
	stats.Failures = append(stats.Failures, unavailable...)
	return stats, nil
}

// Delete removes the record with key.
func (idx *Indexer) Delete(ctx context.Context, key string) error {
	idx.logger.Debug("indexer deleting image", zap.String("key", key))
	return idx.engine.Delete(ctx, key)
}

// DeleteFile removes the record for the file at path. A path that was never
// indexed is not an error.
func (idx *Indexer) DeleteFile(ctx context.Context, path string) error {
	key, err := idx.KeyFor(path)
	if err != nil {
		return err
	}
	if err := idx.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// Clear removes every record.
func (idx *Indexer) Clear(ctx context.Context) error {
	return idx.engine.Clear(ctx)
}
