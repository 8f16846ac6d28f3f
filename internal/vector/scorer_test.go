package vector

import (
	"context"
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/hyperjump/niteru/internal/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(size int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func stripeImage(size, period, offset int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.White
			if (x+y+offset)%period < period/2 {
				c = color.Black
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func extract(t *testing.T, img image.Image) []float32 {
	t.Helper()
	d, err := descriptor.NewAssembler(descriptor.V1).Extract(context.Background(), img)
	require.NoError(t, err)
	return d.Vector
}

func randomVector(r *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = r.Float32()
	}
	return v
}

func TestScorer_solidBlackSelfSimilarity(t *testing.T) {
	s := NewScorer(nil)
	a := extract(t, solidImage(100, color.Black))
	b := extract(t, solidImage(100, color.Black))

	score, ok := s.Compare(a, descriptor.V1, b, descriptor.V1)
	require.True(t, ok)
	assert.GreaterOrEqual(t, score.Similarity, 0.99)
}

func TestScorer_blackVsWhite(t *testing.T) {
	s := NewScorer(nil)
	black := extract(t, solidImage(100, color.Black))
	white := extract(t, solidImage(100, color.White))

	score, ok := s.Compare(black, descriptor.V1, white, descriptor.V1)
	require.True(t, ok)
	assert.Less(t, score.PerBlock[descriptor.BlockColor], 0.1)
	assert.Zero(t, score.PerBlock[descriptor.BlockEdge])
	assert.Zero(t, score.PerBlock[descriptor.BlockTexture])
	assert.Less(t, score.Similarity, 0.2)
}

func TestScorer_shiftedDiagonalStripes(t *testing.T) {
	s := NewScorer(PatternBoost{Threshold: 0.3, Factor: 1.6})
	a := extract(t, stripeImage(100, 10, 0))
	b := extract(t, stripeImage(100, 10, 1))

	score, ok := s.Compare(a, descriptor.V1, b, descriptor.V1)
	require.True(t, ok)
	assert.Greater(t, score.PerBlock[descriptor.BlockTexture], 0.7)
	assert.Greater(t, score.Similarity, 0.5)
}

func TestScorer_incomparableSchemas(t *testing.T) {
	s := NewScorer(nil)
	v1 := make([]float32, descriptor.V1.TotalLength)
	v2 := make([]float32, descriptor.V2.TotalLength)
	_, ok := s.Compare(v2, descriptor.V2, v1, descriptor.V1)
	assert.False(t, ok)

	_, ok = s.Compare(v1[:100], descriptor.V1, v1, descriptor.V1)
	assert.False(t, ok, "short vector is incomparable")
}

func TestScorer_properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	policies := map[string]WeightPolicy{
		"static": StaticWeights{},
		"boost":  PatternBoost{Threshold: 0.2, Factor: 2},
	}
	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			s := NewScorer(policy)
			for i := 0; i < 50; i++ {
				a := randomVector(r, descriptor.V1.TotalLength)
				b := randomVector(r, descriptor.V1.TotalLength)
				if i%5 == 0 {
					for j := 256; j < 384; j++ {
						b[j] = 0
					}
				}

				ab, ok := s.Compare(a, descriptor.V1, b, descriptor.V1)
				require.True(t, ok)
				ba, _ := s.Compare(b, descriptor.V1, a, descriptor.V1)
				aa, _ := s.Compare(a, descriptor.V1, a, descriptor.V1)

				assert.GreaterOrEqual(t, ab.Similarity, 0.0)
				assert.LessOrEqual(t, ab.Similarity, 1.0)
				assert.Equal(t, ab.Similarity, ba.Similarity, "symmetric")
				assert.InDelta(t, 1.0, aa.Similarity, 1e-5, "self similarity")
			}
		})
	}
}

func TestScorer_zeroVectors(t *testing.T) {
	s := NewScorer(nil)
	zero := make([]float32, descriptor.V1.TotalLength)
	score, ok := s.Compare(zero, descriptor.V1, zero, descriptor.V1)
	require.True(t, ok)
	assert.Zero(t, score.Similarity)
}

func TestScorer_nonFiniteTreatedAsZero(t *testing.T) {
	s := NewScorer(nil)
	a := make([]float32, descriptor.V1.TotalLength)
	b := make([]float32, descriptor.V1.TotalLength)
	a[0], b[0] = 1, 1
	a[300] = float32(math.Inf(1))
	b[300] = 1
	score, ok := s.Compare(a, descriptor.V1, b, descriptor.V1)
	require.True(t, ok)
	assert.False(t, math.IsNaN(score.Similarity))
	assert.GreaterOrEqual(t, score.Similarity, 0.0)
	assert.LessOrEqual(t, score.Similarity, 1.0)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, Cosine([]float32{1, 0}, []float32{-1, 0}), "negative cosine clamps to 0")
	assert.Zero(t, Dot([]float32{1}, []float32{1, 2}))
}

// v2 carries only embedding and pattern; without an embedder a flat image has
// nothing informative left and scores 0, even against itself.
func TestScorer_v2FlatImageWithoutEmbedder(t *testing.T) {
	d, err := descriptor.NewAssembler(descriptor.V2).Extract(context.Background(), solidImage(100, color.Black))
	require.NoError(t, err)
	assert.True(t, d.EmbeddingFallback)
	for i, v := range d.Vector {
		require.Zero(t, v, "index %d", i)
	}

	score, ok := NewScorer(nil).Compare(d.Vector, descriptor.V2, d.Vector, descriptor.V2)
	require.True(t, ok)
	assert.Zero(t, score.Similarity)
}
