// Package search ranks stored descriptors against a query descriptor.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/niteru/internal/descriptor"
	"github.com/hyperjump/niteru/internal/keyword"
	"github.com/hyperjump/niteru/internal/models"
	"github.com/hyperjump/niteru/internal/ranking"
	"github.com/hyperjump/niteru/internal/raster"
	"github.com/hyperjump/niteru/internal/storage"
	"github.com/hyperjump/niteru/internal/vector"
)

var (
	// ErrInvalidVector is returned when a vector does not fit its schema.
	ErrInvalidVector = errors.New("invalid vector")
	// ErrUnknownSchema is returned for schema IDs missing from the registry.
	ErrUnknownSchema = errors.New("unknown schema")
	// ErrNoResult is returned when a query image could not be turned into a ranking.
	ErrNoResult = errors.New("no result")
)

// Engine runs linear-scan similarity search over a Storage snapshot.
type Engine struct {
	storage      storage.Storage
	assembler    *descriptor.Assembler
	scorer       *vector.Scorer
	keywordIndex keyword.KeywordIndex
	ranker       *ranking.Ranker
	maxTopK      int
	logger       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithKeywordIndex enables text filters through a keyword index.
func WithKeywordIndex(k keyword.KeywordIndex) Option {
	return func(e *Engine) { e.keywordIndex = k }
}

// WithRanker sets the post-hoc ranking plugin.
func WithRanker(r *ranking.Ranker) Option {
	return func(e *Engine) { e.ranker = r }
}

// WithMaxTopK caps the number of results a query may ask for.
func WithMaxTopK(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTopK = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a search engine with the given dependencies.
// The assembler defines the active schema for SearchImage.
func NewEngine(store storage.Storage, assembler *descriptor.Assembler, scorer *vector.Scorer, opts ...Option) *Engine {
	if scorer == nil {
		scorer = vector.NewScorer(nil)
	}
	e := &Engine{
		storage:   store,
		assembler: assembler,
		scorer:    scorer,
		maxTopK:   models.MaxTopK,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Schema returns the active schema.
func (e *Engine) Schema() *descriptor.Schema {
	return e.assembler.Schema()
}

// Assembler returns the descriptor assembler for the active schema.
func (e *Engine) Assembler() *descriptor.Assembler {
	return e.assembler
}

// Storage returns the underlying store.
func (e *Engine) Storage() storage.Storage {
	return e.storage
}

// KeywordIndex returns the keyword index, or nil when disabled.
func (e *Engine) KeywordIndex() keyword.KeywordIndex {
	return e.keywordIndex
}

// checkVector resolves schemaID and validates vec against it.
func checkVector(schemaID string, vec []float32) (*descriptor.Schema, error) {
	schema, ok := descriptor.Lookup(schemaID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, schemaID)
	}
	if err := schema.Validate(vec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVector, err)
	}
	return schema, nil
}

// Index upserts rec by key. Overwrites keep the original insertion position.
func (e *Engine) Index(ctx context.Context, rec *models.ImageRecord) error {
	if strings.TrimSpace(rec.Key) == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidVector)
	}
	if _, err := checkVector(rec.SchemaID, rec.Vector); err != nil {
		return err
	}
	if err := e.storage.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to store %s: %w", rec.Key, err)
	}
	if e.keywordIndex != nil {
		if err := e.keywordIndex.Index(ctx, rec.Key, rec.SourceRef); err != nil {
			e.logger.Warn("keyword index failed", zap.String("key", rec.Key), zap.Error(err))
		}
	}
	return nil
}

// Delete removes the record with key.
func (e *Engine) Delete(ctx context.Context, key string) error {
	if err := e.storage.Delete(ctx, key); err != nil {
		return err
	}
	if e.keywordIndex != nil {
		if err := e.keywordIndex.Delete(ctx, key); err != nil {
			e.logger.Warn("keyword delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// Clear removes every record.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.storage.Clear(ctx); err != nil {
		return err
	}
	if e.keywordIndex != nil {
		return e.keywordIndex.Clear(ctx)
	}
	return nil
}

// Search ranks every stored record compatible with the query. Records that
// are invalid, incompatible, the query itself, or outside the filter are
// excluded and counted; they never receive a score.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if query.TopK > e.maxTopK {
		query.TopK = e.maxTopK
	}
	querySchema, err := checkVector(query.SchemaID, query.Vector)
	if err != nil {
		return nil, err
	}

	allow, err := e.filter(ctx, query.Filter)
	if err != nil {
		return nil, err
	}

	records, err := e.storage.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	response := &models.SearchResponse{Schema: querySchema.ID}
	scored := make([]*models.SearchResult, 0, len(records))
	for _, rec := range records {
		schema, err := checkVector(rec.SchemaID, rec.Vector)
		if err != nil {
			response.Excluded.Invalid++
			e.logger.Debug("skipping invalid record", zap.String("key", rec.Key), zap.Error(err))
			continue
		}
		if query.Key != "" && rec.Key == query.Key {
			continue
		}
		if allow != nil && !allow(rec) {
			response.Excluded.Filtered++
			continue
		}
		score, ok := e.scorer.Compare(query.Vector, querySchema, rec.Vector, schema)
		if !ok {
			response.Excluded.Incompatible++
			continue
		}
		scored = append(scored, &models.SearchResult{
			Key:        rec.Key,
			Similarity: score.Similarity,
			PerBlock:   score.PerBlock,
			SourceRef:  rec.SourceRef,
		})
	}

	e.ranker.Apply(query.Key, scored)

	kept := scored[:0]
	for _, r := range scored {
		if r.Similarity >= query.MinSimilarity {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Similarity > kept[j].Similarity })

	response.Total = len(kept)
	if len(kept) > query.TopK {
		kept = kept[:query.TopK]
	}
	for i, r := range kept {
		r.Rank = i + 1
	}
	response.Results = kept
	response.QueryTime = time.Since(startTime).Milliseconds()
	return response, nil
}

// filter returns a predicate for query.Filter, or nil when there is none.
// Without a keyword index the filter is a case-insensitive substring match.
func (e *Engine) filter(ctx context.Context, text string) (func(*models.ImageRecord) bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if e.keywordIndex == nil {
		needle := strings.ToLower(text)
		return func(r *models.ImageRecord) bool {
			return strings.Contains(strings.ToLower(r.Key), needle) ||
				strings.Contains(strings.ToLower(r.SourceRef), needle)
		}, nil
	}
	keys, err := e.keywordIndex.Match(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("filter failed: %w", err)
	}
	return func(r *models.ImageRecord) bool {
		_, ok := keys[r.Key]
		return ok
	}, nil
}

// ImageQuery holds the ranking parameters for SearchImage.
type ImageQuery struct {
	TopK          int
	MinSimilarity float64
	Filter        string
}

// SearchImage decodes r, extracts its descriptor under the active schema and
// searches with it. key, when set, excludes the stored record with that key.
// Decode and extraction failures are wrapped in ErrNoResult.
func (e *Engine) SearchImage(ctx context.Context, key string, r io.Reader, q ImageQuery) (*models.SearchResponse, error) {
	img, _, err := raster.Decode(r, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResult, err)
	}
	desc, err := e.assembler.Extract(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: extract: %w", ErrNoResult, err)
	}
	resp, err := e.Search(ctx, &models.SearchQuery{
		Key:           key,
		Vector:        desc.Vector,
		SchemaID:      desc.Schema.ID,
		TopK:          q.TopK,
		MinSimilarity: q.MinSimilarity,
		Filter:        q.Filter,
	})
	if err != nil {
		return nil, err
	}
	resp.EmbeddingFallback = desc.EmbeddingFallback
	return resp, nil
}

// Validate checks every stored record against its schema.
func (e *Engine) Validate(ctx context.Context) (*models.ValidationReport, error) {
	records, err := e.storage.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	report := &models.ValidationReport{PerSchema: make(map[string]int)}
	for _, rec := range records {
		if _, err := checkVector(rec.SchemaID, rec.Vector); err != nil {
			report.InvalidCount++
			report.InvalidKeys = append(report.InvalidKeys, rec.Key)
			e.logger.Warn("invalid record", zap.String("key", rec.Key), zap.Error(err))
			continue
		}
		report.ValidCount++
		report.PerSchema[rec.SchemaID]++
	}
	return report, nil
}
