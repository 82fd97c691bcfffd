// Package memory provides an in-memory source.Store.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/source"
)

// Compile time check to ensure Store satisfies the source.Store interface.
var _ source.Store = (*Store)(nil)

type collection struct {
	cfg    model.CollectionConfig
	points []model.Point
	byID   map[uuid.UUID]int
}

// Store keeps collections in process memory. Returned points share no
// memory with the store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) get(name string) (*collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", source.ErrCollectionNotFound, name)
	}
	return c, nil
}

// CreateCollection implements source.Store.
func (s *Store) CreateCollection(_ context.Context, cfg model.CollectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[cfg.Name]; ok {
		return fmt.Errorf("%w: %q", source.ErrCollectionExists, cfg.Name)
	}

	s.collections[cfg.Name] = &collection{cfg: cfg, byID: make(map[uuid.UUID]int)}

	return nil
}

// LoadConfig implements source.Source.
func (s *Store) LoadConfig(_ context.Context, name string) (model.CollectionConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(name)
	if err != nil {
		return model.CollectionConfig{}, err
	}

	return c.cfg, nil
}

// DeleteCollection implements source.Store.
func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(name); err != nil {
		return err
	}

	delete(s.collections, name)

	return nil
}

// AddPoints implements source.Store.
func (s *Store) AddPoints(_ context.Context, name string, points []model.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.get(name)
	if err != nil {
		return err
	}

	if err := source.ValidatePoints(c.cfg, points); err != nil {
		return err
	}

	for i := range points {
		if _, ok := c.byID[points[i].ID]; ok {
			return fmt.Errorf("%w: %s", source.ErrDuplicatePoint, points[i].ID)
		}
	}

	for i := range points {
		c.byID[points[i].ID] = len(c.points)
		c.points = append(c.points, points[i].Clone())
	}

	return nil
}

// LoadPoints implements source.Source.
func (s *Store) LoadPoints(_ context.Context, name string) ([]model.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(name)
	if err != nil {
		return nil, err
	}

	out := make([]model.Point, len(c.points))
	for i := range c.points {
		out[i] = c.points[i].Clone()
	}

	return out, nil
}

// LoadPoint implements source.Source.
func (s *Store) LoadPoint(_ context.Context, name string, id uuid.UUID) (model.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(name)
	if err != nil {
		return model.Point{}, err
	}

	i, ok := c.byID[id]
	if !ok {
		return model.Point{}, fmt.Errorf("%w: %s in %q", source.ErrPointNotFound, id, name)
	}

	return c.points[i].Clone(), nil
}

// ListCollections implements source.Store.
func (s *Store) ListCollections(_ context.Context) ([]model.CollectionConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.CollectionConfig, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, c.cfg)
	}

	slices.SortFunc(out, func(a, b model.CollectionConfig) int {
		return strings.Compare(a.Name, b.Name)
	})

	return out, nil
}

// CountPoints implements source.Store.
func (s *Store) CountPoints(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(name)
	if err != nil {
		return 0, err
	}

	return len(c.points), nil
}

// Close implements source.Store.
func (s *Store) Close() error {
	return nil
}
