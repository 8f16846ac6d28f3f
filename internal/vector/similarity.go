// Package vector scores descriptor vectors against each other block by block.
package vector

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Dot returns the inner product of a and b, or 0 when lengths differ or the result is not finite.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return finite(float64(vek32.Dot(a, b)))
}

// Norm returns the L2 norm of x.
func Norm(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	return finite(float64(vek32.Norm(x)))
}

// Cosine returns dot(a,b)/(|a||b|) clamped to [0,1]. A zero norm on either side yields 0.
func Cosine(a, b []float32) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp01(Dot(a, b) / (na * nb))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	v = finite(v)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
