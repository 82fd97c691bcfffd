// Package model defines core types used throughout vecsearch.
//
// # Data Types
//
//   - Point: stored item with content, embedding and metadata
//   - CollectionConfig: name, dimensionality, distance and HNSW parameters
//   - HNSWConfig: M, ef_construction, ef_search (defaults 16/200/50)
//   - SearchResult: ranked hit with a "higher is better" score
//
// # Point Builder
//
// Use the fluent API to construct points:
//
//	p := model.NewPoint(vec).
//	    WithContent("hello world").
//	    WithMetadata("category", "greeting").
//	    Build()
package model
