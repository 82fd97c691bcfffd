// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest neighbor search.
//
// The graph is built from a seeded random source, so inserting the same
// vectors in the same order always yields the same graph. Node ids are
// insertion ordinals starting at 0. Search results are ordered by ascending
// distance with ties broken by ordinal.
package hnsw
