package descriptor

import (
	"fmt"
	"math"
	"sort"

	"github.com/hyperjump/niteru/internal/raster"
)

// FeatureSize is the side of the buffer used by the hand-built extractors.
const FeatureSize = 100

// EmbeddingLength is the width of the embedding block in every schema that carries one.
const EmbeddingLength = 1280

// BlockSpec places one named block inside a vector.
type BlockSpec struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// Schema is a versioned vector layout.
type Schema struct {
	ID             string              `json:"id"`
	Blocks         []BlockSpec         `json:"blocks"`
	TotalLength    int                 `json:"total_length"`
	Resize         raster.ResizePolicy `json:"resize"`
	EmbeddingSize  int                 `json:"embedding_size,omitempty"`
	DefaultWeights map[string]float64  `json:"default_weights"`
}

type blockDecl struct {
	name   string
	length int
	weight float64
}

func newSchema(id string, resize raster.ResizePolicy, embeddingSize int, decls ...blockDecl) *Schema {
	s := &Schema{
		ID:             id,
		Resize:         resize,
		EmbeddingSize:  embeddingSize,
		DefaultWeights: make(map[string]float64, len(decls)),
	}
	for _, d := range decls {
		s.Blocks = append(s.Blocks, BlockSpec{Name: d.name, Offset: s.TotalLength, Length: d.length})
		s.TotalLength += d.length
		s.DefaultWeights[d.name] = d.weight
	}
	return s
}

// Registered schemas.
var (
	V1 = newSchema("v1", raster.ResizeCrop, 0,
		blockDecl{BlockColor, 256, 0.30},
		blockDecl{BlockEdge, 128, 0.30},
		blockDecl{BlockTexture, 128, 0.25},
		blockDecl{BlockShape, 32, 0.15},
	)
	V2 = newSchema("v2", raster.ResizeCrop, 224,
		blockDecl{BlockEmbedding, EmbeddingLength, 0.70},
		blockDecl{BlockPattern, 13, 0.30},
	)
	V3 = newSchema("v3", raster.ResizeFit, 224,
		blockDecl{BlockColor, 256, 0.20},
		blockDecl{BlockEdge, 128, 0.15},
		blockDecl{BlockTexture, 128, 0.15},
		blockDecl{BlockShape, 32, 0.10},
		blockDecl{BlockEmbedding, EmbeddingLength, 0.40},
	)
)

var registry = map[string]*Schema{V1.ID: V1, V2.ID: V2, V3.ID: V3}

// DefaultSchemaID is used when no schema is configured.
const DefaultSchemaID = "v1"

// Lookup returns the registered schema with the given ID.
func Lookup(id string) (*Schema, bool) {
	s, ok := registry[id]
	return s, ok
}

// Resolve is Lookup that returns an error for unknown IDs.
func Resolve(id string) (*Schema, error) {
	s, ok := Lookup(id)
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", id)
	}
	return s, nil
}

// Registered returns all schemas ordered by ID.
func Registered() []*Schema {
	out := make([]*Schema, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Block returns the layout of the named block.
func (s *Schema) Block(name string) (BlockSpec, bool) {
	for _, b := range s.Blocks {
		if b.Name == name {
			return b, true
		}
	}
	return BlockSpec{}, false
}

// Slice returns the named block's values within vec, or nil when absent or vec is short.
func (s *Schema) Slice(vec []float32, name string) []float32 {
	b, ok := s.Block(name)
	if !ok || b.Offset+b.Length > len(vec) {
		return nil
	}
	return vec[b.Offset : b.Offset+b.Length]
}

// HasEmbedding reports whether the layout includes an embedding block.
func (s *Schema) HasEmbedding() bool {
	_, ok := s.Block(BlockEmbedding)
	return ok
}

// SampleSizes lists the buffer sizes extraction needs.
func (s *Schema) SampleSizes() []int {
	var sizes []int
	for _, b := range s.Blocks {
		if b.Name != BlockEmbedding {
			sizes = append(sizes, FeatureSize)
			break
		}
	}
	if s.EmbeddingSize > 0 {
		sizes = append(sizes, s.EmbeddingSize)
	}
	return sizes
}

// Compatible reports whether vectors of s and o can be compared block by block.
func (s *Schema) Compatible(o *Schema) bool {
	if s == nil || o == nil {
		return false
	}
	if s == o {
		return true
	}
	if s.TotalLength != o.TotalLength || len(s.Blocks) != len(o.Blocks) {
		return false
	}
	for i := range s.Blocks {
		if s.Blocks[i] != o.Blocks[i] {
			return false
		}
	}
	return true
}

// Validate checks that vec conforms to the layout and holds only finite values.
func (s *Schema) Validate(vec []float32) error {
	if len(vec) != s.TotalLength {
		return fmt.Errorf("schema %s: vector length %d, want %d", s.ID, len(vec), s.TotalLength)
	}
	for i, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("schema %s: non-finite value at %d", s.ID, i)
		}
	}
	return nil
}

// PatternSignal returns the repeating-pattern strength stored in vec, read
// from the texture block or, failing that, the pattern block.
func (s *Schema) PatternSignal(vec []float32) float64 {
	if t := s.Slice(vec, BlockTexture); t != nil && TexturePatternStrengthIndex < len(t) {
		return float64(t[TexturePatternStrengthIndex])
	}
	if p := s.Slice(vec, BlockPattern); p != nil && PatternStrengthIndex < len(p) {
		return float64(p[PatternStrengthIndex])
	}
	return 0
}

// PatternBlockName returns the block the pattern boost applies to, if any.
func (s *Schema) PatternBlockName() (string, bool) {
	if _, ok := s.Block(BlockTexture); ok {
		return BlockTexture, true
	}
	if _, ok := s.Block(BlockPattern); ok {
		return BlockPattern, true
	}
	return "", false
}
