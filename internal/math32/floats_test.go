package math32

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Positive values", []float32{1, 2, 3}, []float32{4, 5, 6}, 32.0},
		{"Negative values", []float32{-1, -2, -3}, []float32{-4, -5, -6}, 32.0},
		{"More than 4", []float32{1, 2, 3, 1, 2, 3}, []float32{4, 5, 6, 4, 5, 6}, 64.0},
		{"Mixed values", []float32{1, -2, 3}, []float32{-4, 5, -6}, -32.0},
		{"Zero values", []float32{0, 0, 0}, []float32{0, 0, 0}, 0.0},
		{"Empty", []float32{}, []float32{}, 0.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Dot(tc.a, tc.b)
			assert.InDelta(t, tc.expected, result, 1e-5)
		})
	}
}

func BenchmarkDot(b *testing.B) {
	const size = 1 << 16
	va := make([]float32, size)
	vb := make([]float32, size)

	for i := range va {
		va[i] = rand.Float32() // nolint gosec
		vb[i] = rand.Float32() // nolint gosec
	}

	b.ResetTimer()

	for b.Loop() {
		_ = Dot(va, vb)
	}
}

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Positive values", []float32{1, 2, 3}, []float32{4, 5, 6}, 27.0},
		{"Negative values", []float32{-1, -2, -3}, []float32{-4, -5, -6}, 27.0},
		{"1 Remainder", []float32{1, 2, 3, 1, 2, 3}, []float32{4, 5, 6, 4, 5, 6}, 54.0},
		{"Mixed values", []float32{1, -2, 3}, []float32{-4, 5, -6}, 155.0},
		{"Zero values", []float32{0, 0, 0}, []float32{0, 0, 0}, 0.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, SquaredL2(tc.a, tc.b), 1e-5)
		})
	}
}

func TestL1(t *testing.T) {
	assert.InDelta(t, float32(9), L1([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-6)
	assert.InDelta(t, float32(6), L1([]float32{1, -1, 0}, []float32{-1, 1, 2}), 1e-6)
	assert.Equal(t, float32(0), L1(nil, nil))
}

func TestNormAndScale(t *testing.T) {
	v := []float32{3, 4}
	assert.InDelta(t, float32(5), Norm(v), 1e-6)

	ScaleInPlace(v, 0.5)
	assert.InDelta(t, float32(1.5), v[0], 1e-6)
	assert.InDelta(t, float32(2), v[1], 1e-6)

	assert.Equal(t, float32(0), Norm(nil))
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite([]float32{1, 2, 3}))
	assert.True(t, IsFinite(nil))
	assert.False(t, IsFinite([]float32{1, float32(math.NaN())}))
	assert.False(t, IsFinite([]float32{float32(math.Inf(-1))}))
}
