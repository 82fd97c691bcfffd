// Package math32 provides float32 vector kernels.
// This is an internal package - external users should use the distance package.
package math32

import (
	"math"

	"gonum.org/v1/gonum/blas/blas32"
)

func vec(a []float32) blas32.Vector {
	return blas32.Vector{N: len(a), Data: a, Inc: 1}
}

// Dot calculates the dot product of two vectors.
// Assumes len(a) == len(b).
func Dot(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return blas32.Dot(vec(a), vec(b[:len(a)]))
}

// Norm returns the L2 norm of a.
func Norm(a []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return blas32.Nrm2(vec(a))
}

// ScaleInPlace multiplies all elements of a by scalar.
func ScaleInPlace(a []float32, scalar float32) {
	if len(a) == 0 {
		return
	}
	blas32.Scal(scalar, vec(a))
}

// SquaredL2 calculates the squared L2 distance.
// Assumes len(a) == len(b).
func SquaredL2(a, b []float32) float32 {
	var distance float32
	for i := range a {
		d := a[i] - b[i]
		distance += d * d
	}

	return distance
}

// L1 calculates the Manhattan distance.
// Assumes len(a) == len(b).
func L1(a, b []float32) float32 {
	var distance float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		distance += d
	}

	return distance
}

// Sqrt returns the square root of x.
func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// IsFinite reports whether every element of a is neither NaN nor Inf.
func IsFinite(a []float32) bool {
	for _, v := range a {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
