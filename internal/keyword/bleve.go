package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path
// creates a memory-only index.
// If you change the index mapping in code, remove the index directory to force a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("source", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("key", keywordFieldMapping)
	im.AddDocumentMapping("image", docMapping)
	im.DefaultType = "image"
	im.DefaultMapping = docMapping

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// splitWords breaks a key or path into words on every non letter/digit rune,
// so "nike_logo-red.png" yields "nike logo red png".
func splitWords(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

// Index indexes an image key with its source reference.
func (b *BleveIndex) Index(ctx context.Context, key, sourceRef string) error {
	return b.index.Index(key, map[string]interface{}{
		"key":    key,
		"name":   splitWords(key),
		"source": splitWords(sourceRef),
	})
}

// Search runs a match query over key words and source path words and
// returns up to limit results.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if limit <= 0 {
		limit = 10
	}
	fuzzy, fuzziness := false, 1
	if opts != nil {
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}
	var q blevequery.Query
	if fuzzy {
		q = buildFuzzyQuery(query, fuzziness)
	} else {
		q = bleve.NewMatchQuery(splitWords(query))
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"source"}
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		src, _ := hit.Fields["source"].(string)
		out[i] = &KeywordResult{Key: hit.ID, Source: src, Score: hit.Score}
	}
	return out, nil
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per word.
func buildFuzzyQuery(query string, fuzziness int) blevequery.Query {
	terms := strings.Fields(strings.ToLower(splitWords(query)))
	if len(terms) == 0 {
		return bleve.NewMatchNoneQuery()
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Match returns the set of keys matching query.
func (b *BleveIndex) Match(ctx context.Context, query string) (map[string]struct{}, error) {
	n, err := b.index.DocCount()
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	if n == 0 {
		return out, nil
	}
	hits, err := b.Search(ctx, query, int(n), nil)
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		out[h.Key] = struct{}{}
	}
	return out, nil
}

// Delete removes a key from the index.
func (b *BleveIndex) Delete(ctx context.Context, key string) error {
	return b.index.Delete(key)
}

// Clear removes every key in one batch.
func (b *BleveIndex) Clear(ctx context.Context) error {
	n, err := b.index.DocCount()
	if err != nil || n == 0 {
		return err
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(n)
	results, err := b.index.Search(req)
	if err != nil {
		return fmt.Errorf("Bleve list failed: %w", err)
	}
	batch := b.index.NewBatch()
	for _, hit := range results.Hits {
		batch.Delete(hit.ID)
	}
	return b.index.Batch(batch)
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of keys in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
