package source

import (
	"context"

	"github.com/hupe1980/vecsearch/model"
)

// Invalidator drops cached state derived from a collection.
type Invalidator interface {
	Invalidate(name string)
}

// InvalidatingStore calls Invalidate after every successful mutation of
// the wrapped store.
type InvalidatingStore struct {
	Store
	inv Invalidator
}

// WithInvalidation wraps store so that inv learns about every mutation.
func WithInvalidation(store Store, inv Invalidator) *InvalidatingStore {
	return &InvalidatingStore{Store: store, inv: inv}
}

// CreateCollection implements Store.
func (s *InvalidatingStore) CreateCollection(ctx context.Context, cfg model.CollectionConfig) error {
	if err := s.Store.CreateCollection(ctx, cfg); err != nil {
		return err
	}

	// A previous collection with the same name may still be cached.
	s.inv.Invalidate(cfg.Name)

	return nil
}

// DeleteCollection implements Store.
func (s *InvalidatingStore) DeleteCollection(ctx context.Context, name string) error {
	if err := s.Store.DeleteCollection(ctx, name); err != nil {
		return err
	}

	s.inv.Invalidate(name)

	return nil
}

// AddPoints implements Store.
func (s *InvalidatingStore) AddPoints(ctx context.Context, name string, points []model.Point) error {
	if err := s.Store.AddPoints(ctx, name, points); err != nil {
		return err
	}

	s.inv.Invalidate(name)

	return nil
}
