package descriptor

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/hyperjump/niteru/internal/raster"
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

// stripeImage draws diagonal black/white stripes of the given period, shifted by offset pixels.
func stripeImage(size, period, offset int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x+y+offset)%period < period/2 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func sample(t *testing.T, img image.Image) *raster.PixelBuffer {
	t.Helper()
	buf, err := raster.Sample(img, FeatureSize, raster.ResizeCrop)
	require.NoError(t, err)
	return buf
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

func isZero(vals []float32) bool {
	for _, v := range vals {
		if v != 0 {
			return false
		}
	}
	return true
}

func requireUnitRange(t *testing.T, b FeatureBlock) {
	t.Helper()
	for i, v := range b.Values {
		require.Falsef(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0), "%s[%d] not finite", b.Name, i)
		require.GreaterOrEqualf(t, v, float32(0), "%s[%d] = %v", b.Name, i, v)
		require.LessOrEqualf(t, v, float32(1), "%s[%d] = %v", b.Name, i, v)
	}
}
