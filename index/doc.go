// Package index builds immutable HNSW indexes over a collection's points.
//
// An Index owns the mapping from graph ordinals back to points, the
// metadata inverted index used for filtered search, and the conversion of
// queries into the index space of its distance kind:
//
//	Cosine, Dot         -> inner product space
//	Euclidean, Manhattan -> squared L2 space
//
// Manhattan is served from the L2 space, so its rankings approximate L1
// order rather than reproduce it exactly.
package index
