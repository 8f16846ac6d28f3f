package descriptor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_lengths(t *testing.T) {
	tests := []struct {
		schema *Schema
		total  int
		blocks []string
	}{
		{V1, 544, []string{BlockColor, BlockEdge, BlockTexture, BlockShape}},
		{V2, 1293, []string{BlockEmbedding, BlockPattern}},
		{V3, 1824, []string{BlockColor, BlockEdge, BlockTexture, BlockShape, BlockEmbedding}},
	}
	for _, tt := range tests {
		t.Run(tt.schema.ID, func(t *testing.T) {
			assert.Equal(t, tt.total, tt.schema.TotalLength)
			offset := 0
			var weights float64
			for i, b := range tt.schema.Blocks {
				assert.Equal(t, tt.blocks[i], b.Name)
				assert.Equal(t, offset, b.Offset, "offsets are contiguous")
				offset += b.Length
				weights += tt.schema.DefaultWeights[b.Name]
			}
			assert.Equal(t, tt.total, offset)
			assert.InDelta(t, 1.0, weights, 1e-9)
		})
	}
}

func TestLookup(t *testing.T) {
	s, ok := Lookup("v2")
	require.True(t, ok)
	assert.Same(t, V2, s)
	_, ok = Lookup("v9")
	assert.False(t, ok)
	_, err := Resolve("v9")
	assert.Error(t, err)
	assert.Len(t, Registered(), 3)
	assert.Equal(t, "v1", Registered()[0].ID)
}

func TestSchema_Compatible(t *testing.T) {
	assert.True(t, V1.Compatible(V1))
	assert.False(t, V1.Compatible(V2))
	assert.False(t, V2.Compatible(V3))
	assert.False(t, V1.Compatible(nil))

	clone := newSchema("v1-copy", V1.Resize, 0,
		blockDecl{BlockColor, 256, 0.3},
		blockDecl{BlockEdge, 128, 0.3},
		blockDecl{BlockTexture, 128, 0.25},
		blockDecl{BlockShape, 32, 0.15},
	)
	assert.True(t, V1.Compatible(clone), "identical layouts compare")

	reordered := newSchema("v1-swapped", V1.Resize, 0,
		blockDecl{BlockEdge, 128, 0.3},
		blockDecl{BlockColor, 256, 0.3},
		blockDecl{BlockTexture, 128, 0.25},
		blockDecl{BlockShape, 32, 0.15},
	)
	assert.False(t, V1.Compatible(reordered))
}

func TestSchema_Validate(t *testing.T) {
	assert.NoError(t, V1.Validate(make([]float32, 544)))
	assert.Error(t, V1.Validate(nil))
	assert.Error(t, V1.Validate(make([]float32, 543)))

	bad := make([]float32, 544)
	bad[10] = float32(math.NaN())
	assert.Error(t, V1.Validate(bad))
	bad[10] = float32(math.Inf(1))
	assert.Error(t, V1.Validate(bad))
}

func TestSchema_SliceAndSignal(t *testing.T) {
	vec := make([]float32, V1.TotalLength)
	tex, _ := V1.Block(BlockTexture)
	vec[tex.Offset+TexturePatternStrengthIndex] = 0.7
	assert.InDelta(t, 0.7, V1.PatternSignal(vec), 1e-6)
	assert.Len(t, V1.Slice(vec, BlockShape), 32)
	assert.Nil(t, V1.Slice(vec, BlockEmbedding))
	assert.Nil(t, V1.Slice(vec[:10], BlockShape))

	v2 := make([]float32, V2.TotalLength)
	pat, _ := V2.Block(BlockPattern)
	v2[pat.Offset+PatternStrengthIndex] = 0.4
	assert.InDelta(t, 0.4, V2.PatternSignal(v2), 1e-6)
	name, ok := V2.PatternBlockName()
	assert.True(t, ok)
	assert.Equal(t, BlockPattern, name)
}

func TestSchema_SampleSizes(t *testing.T) {
	assert.Equal(t, []int{FeatureSize}, V1.SampleSizes())
	assert.Equal(t, []int{FeatureSize, 224}, V2.SampleSizes())
	assert.True(t, V3.HasEmbedding())
	assert.False(t, V1.HasEmbedding())
}
