package utils

import "math"

// NormalizeL2 normalizes the slice in place to unit L2 norm.
// If the norm is zero, the slice is unchanged and false is returned.
func NormalizeL2(x []float32) bool {
	n := Norm(x)
	if n == 0 {
		return false
	}
	inv := float32(1.0 / n)
	for i := range x {
		x[i] *= inv
	}
	return true
}

// Dot returns the inner product of a and b accumulated in float64.
// Callers must pass vectors of equal length.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of x.
func Norm(x []float32) float64 {
	return math.Sqrt(Dot(x, x))
}

// ClampUnit clamps v to [-1, 1]; float error can push normalized dot products slightly past 1.
func ClampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
