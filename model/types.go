package model

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/hupe1980/vecsearch/distance"
)

// HNSW construction defaults.
const (
	DefaultM              = 16
	DefaultEFConstruction = 200
	DefaultEFSearch       = 50
)

var (
	// ErrInvalidConfig is returned by CollectionConfig.Validate.
	ErrInvalidConfig = errors.New("invalid collection config")
)

// Point is a stored item: a content string, its embedding and free-form metadata.
// Points are immutable once stored.
type Point struct {
	ID        uuid.UUID      `json:"id"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy of p. Metadata values are copied shallowly.
func (p Point) Clone() Point {
	return Point{
		ID:        p.ID,
		Content:   p.Content,
		Embedding: slices.Clone(p.Embedding),
		Metadata:  maps.Clone(p.Metadata),
	}
}

// HNSWConfig holds the graph construction and search parameters of a collection.
// Zero fields mean "use the default".
type HNSWConfig struct {
	M              int `json:"m,omitempty" yaml:"m,omitempty"`
	EFConstruction int `json:"ef_construction,omitempty" yaml:"ef_construction,omitempty"`
	EFSearch       int `json:"ef_search,omitempty" yaml:"ef_search,omitempty"`
}

// WithDefaults returns c with every non-positive field replaced by its default.
func (c HNSWConfig) WithDefaults() HNSWConfig {
	if c.M <= 0 {
		c.M = DefaultM
	}
	if c.EFConstruction <= 0 {
		c.EFConstruction = DefaultEFConstruction
	}
	if c.EFSearch <= 0 {
		c.EFSearch = DefaultEFSearch
	}
	return c
}

// CollectionConfig describes a named collection.
type CollectionConfig struct {
	Name     string        `json:"name" yaml:"name"`
	Size     int           `json:"size" yaml:"size"`
	Distance distance.Kind `json:"distance" yaml:"distance"`
	HNSW     HNSWConfig    `json:"hnsw_config" yaml:"hnsw_config"`
}

// Validate reports whether the config can back a collection.
func (c CollectionConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidConfig)
	}
	if c.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, c.Size)
	}
	if !c.Distance.Valid() {
		return fmt.Errorf("%w: %w: %s", ErrInvalidConfig, distance.ErrUnsupportedKind, c.Distance)
	}
	return nil
}

// SearchResult is one ranked hit. Higher Score is more similar.
type SearchResult struct {
	ID       uuid.UUID      `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float32        `json:"score"`
}

// PointBuilder provides a fluent API for constructing points.
type PointBuilder struct {
	p Point
}

// NewPoint starts a point with a fresh random id.
func NewPoint(embedding []float32) *PointBuilder {
	return &PointBuilder{p: Point{ID: uuid.New(), Embedding: embedding}}
}

// WithID overrides the generated id.
func (b *PointBuilder) WithID(id uuid.UUID) *PointBuilder {
	b.p.ID = id
	return b
}

// WithContent sets the content string.
func (b *PointBuilder) WithContent(content string) *PointBuilder {
	b.p.Content = content
	return b
}

// WithMetadata adds a metadata field.
func (b *PointBuilder) WithMetadata(key string, value any) *PointBuilder {
	if b.p.Metadata == nil {
		b.p.Metadata = make(map[string]any)
	}
	b.p.Metadata[key] = value
	return b
}

// Build returns the constructed point.
func (b *PointBuilder) Build() Point {
	return b.p
}
