package server

import (
	"github.com/hupe1980/vecsearch/model"
)

// CreateCollectionRequest is the body of POST /api/v1/collections/{name}.
type CreateCollectionRequest struct {
	Size       int              `json:"size"`
	Distance   string           `json:"distance"`
	HNSWConfig model.HNSWConfig `json:"hnsw_config"`
}

// CollectionResponse describes a stored collection.
type CollectionResponse struct {
	model.CollectionConfig
	VectorsCount int `json:"vectors_count"`
}

// SearchRequest is the body of POST /api/v1/collections/{name}/search.
type SearchRequest struct {
	QueryVector []float32 `json:"query_vector"`
	TopK        int       `json:"top_k"`
	// DistanceType defaults to the collection's distance.
	DistanceType string         `json:"distance_type,omitempty"`
	Filter       map[string]any `json:"filter,omitempty"`
	EF           int            `json:"ef,omitempty"`
}

// SearchByIDRequest is the body of POST /api/v1/collections/{name}/search_by_id.
type SearchByIDRequest struct {
	PointID string         `json:"point_id"`
	TopK    int            `json:"top_k"`
	Filter  map[string]any `json:"filter,omitempty"`
}

// SearchResponse wraps ranked results.
type SearchResponse struct {
	Results []model.SearchResult `json:"results"`
}

// SimilarityRequest is the body of POST /api/v1/similarity.
type SimilarityRequest struct {
	VectorA  []float32 `json:"vector_a"`
	VectorB  []float32 `json:"vector_b"`
	Distance string    `json:"distance"`
}

// SimilarityResponse carries the exact similarity.
type SimilarityResponse struct {
	Similarity float32 `json:"similarity"`
}

// MessageResponse acknowledges a mutation.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
