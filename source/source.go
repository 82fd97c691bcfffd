package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/model"
)

var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrPointNotFound is returned when a point does not exist in a collection.
	ErrPointNotFound = errors.New("point not found")

	// ErrCollectionExists is returned when creating a collection whose name is taken.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrDuplicatePoint is returned when a point id is already stored or
	// repeated within one batch.
	ErrDuplicatePoint = errors.New("duplicate point id")

	// ErrInvalidPoint is returned for points that cannot be stored.
	ErrInvalidPoint = errors.New("invalid point")
)

// Source is the read side the search core consumes.
//
// LoadPoints returns points in a stable order (insertion order for every
// backend in this module), which keeps index construction deterministic.
type Source interface {
	// LoadConfig returns a collection's configuration or ErrCollectionNotFound.
	LoadConfig(ctx context.Context, name string) (model.CollectionConfig, error)

	// LoadPoints returns all points of a collection or ErrCollectionNotFound.
	LoadPoints(ctx context.Context, name string) ([]model.Point, error)

	// LoadPoint returns one point, ErrCollectionNotFound or ErrPointNotFound.
	LoadPoint(ctx context.Context, name string, id uuid.UUID) (model.Point, error)
}

// Store is a full collection and point store. Its Source methods double as
// the get-collection-config and list-points operations.
type Store interface {
	Source

	// CreateCollection stores a new collection or fails with ErrCollectionExists.
	CreateCollection(ctx context.Context, cfg model.CollectionConfig) error

	// DeleteCollection removes a collection and all of its points.
	DeleteCollection(ctx context.Context, name string) error

	// AddPoints appends points to a collection. The batch is validated as a
	// whole and stored atomically.
	AddPoints(ctx context.Context, name string, points []model.Point) error

	// ListCollections returns every collection config ordered by name.
	ListCollections(ctx context.Context) ([]model.CollectionConfig, error)

	// CountPoints returns the number of points in a collection.
	CountPoints(ctx context.Context, name string) (int, error)

	// Close releases the store's resources.
	Close() error
}

// ValidatePoints checks a batch against the collection config: ids must be
// set and unique within the batch, embeddings must match the declared size.
func ValidatePoints(cfg model.CollectionConfig, points []model.Point) error {
	seen := make(map[uuid.UUID]struct{}, len(points))

	for i := range points {
		p := &points[i]

		if p.ID == uuid.Nil {
			return fmt.Errorf("%w: point %d has no id", ErrInvalidPoint, i)
		}

		if len(p.Embedding) != cfg.Size {
			return fmt.Errorf("%w: point %s: %w", ErrInvalidPoint, p.ID, &distance.ErrDimensionMismatch{Expected: cfg.Size, Actual: len(p.Embedding)})
		}

		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePoint, p.ID)
		}

		seen[p.ID] = struct{}{}
	}

	return nil
}
