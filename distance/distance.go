package distance

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/vecsearch/internal/math32"
)

var (
	// ErrDegenerateVector is returned when a cosine similarity involves a zero-norm vector.
	ErrDegenerateVector = errors.New("degenerate vector: zero norm")

	// ErrUnsupportedKind is returned for a Kind outside the known variant set.
	ErrUnsupportedKind = errors.New("unsupported distance kind")
)

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Kind is the distance metric declared for a collection.
//
// The zero value is KindUnspecified, which callers use to mean
// "whatever the collection declares".
type Kind int

const (
	KindUnspecified Kind = iota
	KindCosine
	KindEuclidean
	KindDot
	KindManhattan
)

// Kinds lists every supported metric in declaration order.
var Kinds = []Kind{KindCosine, KindEuclidean, KindDot, KindManhattan}

func (k Kind) String() string {
	switch k {
	case KindUnspecified:
		return "Unspecified"
	case KindCosine:
		return "Cosine"
	case KindEuclidean:
		return "Euclidean"
	case KindDot:
		return "Dot"
	case KindManhattan:
		return "Manhattan"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Valid reports whether k is one of the supported metrics.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// ParseKind parses a metric name case-insensitively ("cosine", "COSINE", "Cosine").
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(k.String(), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return KindUnspecified, fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return math32.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return math32.SquaredL2(a, b)
}

// L1 calculates the Manhattan distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func L1(a, b []float32) float32 {
	return math32.L1(a, b)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return math32.Norm(v)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm := math32.Norm(v)
	if norm == 0 {
		return false
	}
	math32.ScaleInPlace(v, 1/norm)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Similarity computes the exact similarity of a and b under kind.
// Higher is always more similar:
//
//	Cosine:    dot(a,b) / (‖a‖·‖b‖)
//	Euclidean: -‖a-b‖
//	Dot:       dot(a,b)
//	Manhattan: -Σ|aᵢ-bᵢ|
func Similarity(kind Kind, a, b []float32) (float32, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, &ErrDimensionMismatch{Expected: len(a), Actual: len(b)}
	}

	switch kind {
	case KindCosine:
		na, nb := math32.Norm(a), math32.Norm(b)
		if na == 0 || nb == 0 {
			return 0, ErrDegenerateVector
		}
		return math32.Dot(a, b) / (na * nb), nil
	case KindEuclidean:
		return -math32.Sqrt(math32.SquaredL2(a, b)), nil
	case KindDot:
		return math32.Dot(a, b), nil
	case KindManhattan:
		return -math32.L1(a, b), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}
