// Package embedding provides optional neural image embeddings via ONNX and caching.
package embedding

import (
	"context"
	"errors"

	"github.com/hyperjump/niteru/internal/raster"
)

// ErrUnavailable is returned when no embedding backend can be used.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Embedder produces an L2-normalized embedding for a square pixel buffer.
type Embedder interface {
	Embed(ctx context.Context, buf *raster.PixelBuffer) ([]float32, error)
	Dimensions() int
	InputSize() int
	Close() error
}
