package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/hyperjump/niteru/internal/raster"
	"github.com/hyperjump/niteru/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and for running without
// a model. Each output dimension mixes a pixel-hash phase with coarse color
// statistics, so identical buffers always get the same embedding and
// similar-looking buffers stay close.
type MockEmbedder struct {
	dimensions int
	inputSize  int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions, inputSize int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 1280
	}
	if inputSize <= 0 {
		inputSize = 224
	}
	return &MockEmbedder{dimensions: dimensions, inputSize: inputSize}
}

// Embed returns a deterministic embedding derived from buf.
func (e *MockEmbedder) Embed(ctx context.Context, buf *raster.PixelBuffer) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var mean [3]float64
	h := fnv.New64a()
	for i := 0; i < buf.Len(); i++ {
		r, g, b := buf.RGBAt(i)
		mean[0] += float64(r)
		mean[1] += float64(g)
		mean[2] += float64(b)
		_, _ = h.Write([]byte{r >> 5, g >> 5, b >> 5})
	}
	n := float64(buf.Len())
	seed := float64(h.Sum64()%1000) / 1000

	emb := make([]float32, e.dimensions)
	for i := range emb {
		c := mean[i%3] / n / 255
		emb[i] = float32(0.8*c + 0.2*math.Abs(math.Sin(seed*float64(i+1))) + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// InputSize returns the expected square input side.
func (e *MockEmbedder) InputSize() int {
	return e.inputSize
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
