package utils

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// NormalizeL2 normalizes the slice in place to unit L2 norm.
// If the norm is zero or not finite, the slice is unchanged.
func NormalizeL2(x []float32) {
	if len(x) == 0 {
		return
	}
	norm := vek32.Norm(x)
	if norm == 0 || math.IsNaN(float64(norm)) || math.IsInf(float64(norm), 0) {
		return
	}
	vek32.DivNumber_Inplace(x, norm)
}

// Clamp01 bounds v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
