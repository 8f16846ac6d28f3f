package descriptor

import (
	"context"
	"fmt"
	"image"

	"github.com/hyperjump/niteru/internal/embedding"
	"github.com/hyperjump/niteru/internal/raster"
	"go.uber.org/zap"
)

// Descriptor is an assembled vector together with its schema.
type Descriptor struct {
	Schema *Schema
	Vector []float32
	// EmbeddingFallback is set when the embedding block was zero-filled.
	EmbeddingFallback bool
}

// Block returns the named block of the descriptor.
func (d *Descriptor) Block(name string) []float32 {
	return d.Schema.Slice(d.Vector, name)
}

// Assembler extracts every block of one schema and concatenates them in the
// schema's declared order.
type Assembler struct {
	schema   *Schema
	embedder embedding.Embedder
	logger   *zap.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithEmbedder sets the embedding provider. Without one the embedding block is zero.
func WithEmbedder(e embedding.Embedder) AssemblerOption {
	return func(a *Assembler) { a.embedder = e }
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *zap.Logger) AssemblerOption {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAssembler returns an assembler for schema.
func NewAssembler(schema *Schema, opts ...AssemblerOption) *Assembler {
	a := &Assembler{schema: schema, logger: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Schema returns the schema the assembler produces.
func (a *Assembler) Schema() *Schema { return a.schema }

// Extract samples img with the schema's resize policy and assembles its descriptor.
func (a *Assembler) Extract(ctx context.Context, img image.Image) (*Descriptor, error) {
	bufs, err := raster.SampleAll(img, a.schema.SampleSizes(), a.schema.Resize)
	if err != nil {
		return nil, err
	}
	return a.ExtractBuffers(ctx, bufs)
}

// ExtractBuffers assembles a descriptor from pre-sampled buffers keyed by size.
func (a *Assembler) ExtractBuffers(ctx context.Context, bufs map[int]*raster.PixelBuffer) (*Descriptor, error) {
	var (
		feature  = bufs[FeatureSize]
		gray     *grayPlane
		analysis *textureAnalysis
		fallback bool
	)
	if feature != nil {
		gray = newGrayPlane(feature)
	}

	blocks := make([]FeatureBlock, 0, len(a.schema.Blocks))
	for _, spec := range a.schema.Blocks {
		if spec.Name == BlockEmbedding {
			block, fb := a.embeddingBlock(ctx, bufs[a.schema.EmbeddingSize], spec.Length)
			fallback = fallback || fb
			blocks = append(blocks, block)
			continue
		}
		if gray == nil {
			return nil, fmt.Errorf("schema %s: missing %dpx buffer", a.schema.ID, FeatureSize)
		}
		switch spec.Name {
		case BlockColor:
			blocks = append(blocks, ColorBlock(feature, spec.Length))
		case BlockEdge:
			blocks = append(blocks, EdgeBlock(gray, spec.Length))
		case BlockTexture, BlockPattern:
			if analysis == nil {
				analysis = analyzeTexture(gray)
			}
			if spec.Name == BlockTexture {
				blocks = append(blocks, textureBlock(analysis, spec.Length))
			} else {
				blocks = append(blocks, patternBlock(analysis, spec.Length))
			}
		case BlockShape:
			blocks = append(blocks, ShapeBlock(gray, spec.Length))
		default:
			return nil, fmt.Errorf("schema %s: no extractor for block %q", a.schema.ID, spec.Name)
		}
	}

	vec, err := a.Assemble(blocks)
	if err != nil {
		return nil, err
	}
	return &Descriptor{Schema: a.schema, Vector: vec, EmbeddingFallback: fallback}, nil
}

// Assemble concatenates blocks, which must match the schema's order and lengths.
func (a *Assembler) Assemble(blocks []FeatureBlock) ([]float32, error) {
	if len(blocks) != len(a.schema.Blocks) {
		return nil, fmt.Errorf("schema %s: got %d blocks, want %d", a.schema.ID, len(blocks), len(a.schema.Blocks))
	}
	vec := make([]float32, a.schema.TotalLength)
	for i, spec := range a.schema.Blocks {
		b := blocks[i]
		if b.Name != spec.Name || b.Len() != spec.Length {
			return nil, fmt.Errorf("schema %s: block %d is %s[%d], want %s[%d]",
				a.schema.ID, i, b.Name, b.Len(), spec.Name, spec.Length)
		}
		copy(vec[spec.Offset:], b.Values)
	}
	sanitize(vec)
	return vec, nil
}

// embeddingBlock asks the provider for an embedding and falls back to zeros.
func (a *Assembler) embeddingBlock(ctx context.Context, buf *raster.PixelBuffer, length int) (FeatureBlock, bool) {
	zero := FeatureBlock{Name: BlockEmbedding, Values: make([]float32, length)}
	if a.embedder == nil {
		a.logger.Warn("no embedding provider, using zero embedding block", zap.String("schema", a.schema.ID))
		return zero, true
	}
	if buf == nil {
		a.logger.Warn("missing embedding input buffer", zap.Int("size", a.schema.EmbeddingSize))
		return zero, true
	}
	emb, err := a.embedder.Embed(ctx, buf)
	if err != nil {
		a.logger.Warn("embedding failed, using zero embedding block", zap.Error(err))
		return zero, true
	}
	if len(emb) != length {
		a.logger.Warn("embedding dimension mismatch, using zero embedding block",
			zap.Int("got", len(emb)), zap.Int("want", length))
		return zero, true
	}
	copy(zero.Values, emb)
	return zero, false
}
