package distance

import "fmt"

// Space is the internal distance space an ANN index is built in.
type Space int

const (
	// SpaceInnerProduct ranks by inner product. Raw unit: dot(a,b).
	SpaceInnerProduct Space = iota
	// SpaceL2 ranks by Euclidean distance. Raw unit: squared L2.
	SpaceL2
)

func (s Space) String() string {
	switch s {
	case SpaceInnerProduct:
		return "InnerProduct"
	case SpaceL2:
		return "L2"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Func is a graph distance function: lower means closer.
type Func func(a, b []float32) float32

// SpaceFor maps a metric onto the index space used to serve it.
//
// Manhattan has no native space; it is served from SpaceL2. Rankings then
// follow Euclidean order, which approximates but does not equal L1 order.
func SpaceFor(kind Kind) (Space, error) {
	switch kind {
	case KindCosine, KindDot:
		return SpaceInnerProduct, nil
	case KindEuclidean, KindManhattan:
		return SpaceL2, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

// Func returns the graph distance function of the space.
func (s Space) Func() Func {
	switch s {
	case SpaceInnerProduct:
		return negDot
	default:
		return SquaredL2
	}
}

// ToRaw converts a graph distance produced by Func back into the raw unit
// of the space (inner product or squared L2).
func (s Space) ToRaw(d float32) float32 {
	if s == SpaceInnerProduct {
		return -d
	}
	return d
}

func negDot(a, b []float32) float32 {
	return -Dot(a, b)
}

// Score converts a raw index value of the space serving kind into a score
// where higher means more similar. Every mapping is monotonic in the
// index's ranking direction:
//
//	Cosine:              (1 + ip) / 2      ip on unit vectors, range [0, 1]
//	Euclidean/Manhattan: 1 / (1 + l2sq)    range (0, 1]
//	Dot:                 ip                unbounded
func Score(kind Kind, raw float32) float32 {
	switch kind {
	case KindCosine:
		return (1 + raw) / 2
	case KindEuclidean, KindManhattan:
		return 1 / (1 + raw)
	default:
		return raw
	}
}
