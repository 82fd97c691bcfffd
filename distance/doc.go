// Package distance provides the similarity metrics used by vecsearch.
//
// # Supported Metrics
//
//   - KindCosine: normalized dot product
//   - KindEuclidean: negated L2 distance
//   - KindDot: inner product
//   - KindManhattan: negated L1 distance
//
// Similarity always follows one ranking direction: higher is more similar.
//
// # Index Spaces
//
// ANN indexes are built in one of two spaces. Cosine and Dot use
// SpaceInnerProduct, Euclidean and Manhattan use SpaceL2. Score maps the raw
// value an index reports back into the "higher is better" convention.
//
// # Usage
//
//	sim, err := distance.Similarity(distance.KindCosine, a, b)
//	kind, err := distance.ParseKind("euclidean")
//	score := distance.Score(kind, rawL2)
package distance
