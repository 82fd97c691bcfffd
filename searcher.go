package vecsearch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/vecsearch/cache"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/index"
	"github.com/hupe1980/vecsearch/metadata"
	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/source"
)

// ErrClosed is returned by operations on a closed Searcher.
var ErrClosed = errors.New("searcher is closed")

// Searcher answers nearest-neighbor queries against the collections of a
// source.Source. Indexes are built on first use and reused until
// Invalidate is called for their collection.
//
// A Searcher is safe for concurrent use.
type Searcher struct {
	src     source.Source
	cache   *cache.Cache
	logger  *Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// New creates a Searcher reading collections from src.
func New(src source.Source, optFns ...Option) *Searcher {
	o := applyOptions(optFns)

	s := &Searcher{
		src:     src,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}

	cacheOpts := make([]func(*cache.Options), 0, len(o.cacheOptions)+1)
	cacheOpts = append(cacheOpts, func(co *cache.Options) {
		co.Logger = o.logger.With("component", "cache")
	})
	cacheOpts = append(cacheOpts, o.cacheOptions...)
	cacheOpts = append(cacheOpts, func(co *cache.Options) {
		next := co.OnBuild
		co.OnBuild = func(info cache.BuildInfo) {
			s.metrics.RecordBuild(info.Collection, info.Points, info.Restored, info.Duration, info.Err)
			if next != nil {
				next(info)
			}
		}
	})

	s.cache = cache.New(src, cacheOpts...)

	return s
}

type searchOptions struct {
	ef     int
	filter *metadata.FilterSet
	err    error
}

// SearchOption configures a single search.
type SearchOption func(*searchOptions)

// WithEF overrides the collection's ef_search for one query.
func WithEF(ef int) SearchOption {
	return func(o *searchOptions) {
		o.ef = ef
	}
}

// WithFilter restricts results to points whose metadata matches fs.
func WithFilter(fs *metadata.FilterSet) SearchOption {
	return func(o *searchOptions) {
		o.filter = fs
	}
}

// WithPayloadFilter restricts results to points whose metadata contains
// every key of m with an equal value.
func WithPayloadFilter(m map[string]any) SearchOption {
	return func(o *searchOptions) {
		fs, err := metadata.ExactMatch(m)
		if err != nil {
			o.err = fmt.Errorf("%w: payload filter: %w", ErrInvalidArgument, err)
			return
		}
		o.filter = fs
	}
}

// SearchByVector returns up to topK points of collection name ranked by
// descending score against query.
//
// kind must be distance.KindUnspecified or the collection's own metric. An
// empty collection yields an empty result.
func (s *Searcher) SearchByVector(ctx context.Context, name string, query []float32, topK int, kind distance.Kind, optFns ...SearchOption) (results []model.SearchResult, err error) {
	start := time.Now()

	defer func() {
		d := time.Since(start)
		s.metrics.RecordSearch(name, topK, len(results), d, err)
		s.logger.LogSearch(ctx, name, topK, len(results), d, err)
	}()

	results, err = s.searchByVector(ctx, name, query, topK, kind, optFns)
	if err != nil {
		return nil, fmt.Errorf("vecsearch: search %q: %w", name, err)
	}

	return results, nil
}

func (s *Searcher) searchByVector(ctx context.Context, name string, query []float32, topK int, kind distance.Kind, optFns []SearchOption) ([]model.SearchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrInvalidArgument)
	}

	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", ErrInvalidArgument, topK)
	}

	if kind != distance.KindUnspecified && !kind.Valid() {
		return nil, fmt.Errorf("%w: %w: %s", ErrInvalidArgument, distance.ErrUnsupportedKind, kind)
	}

	so := searchOptions{}
	for _, fn := range optFns {
		fn(&so)
	}

	if so.err != nil {
		return nil, so.err
	}

	ix, err := s.cache.GetOrBuild(ctx, name)
	if err != nil {
		return nil, translateError(err)
	}

	if ix.Len() == 0 {
		return []model.SearchResult{}, nil
	}

	if kind != distance.KindUnspecified && kind != ix.Kind() {
		return nil, fmt.Errorf("%w: collection uses %s, query asked for %s", ErrInvalidArgument, ix.Kind(), kind)
	}

	var ixOpts []index.SearchOption
	if so.ef > 0 {
		ixOpts = append(ixOpts, index.WithEF(so.ef))
	}
	if so.filter != nil {
		ixOpts = append(ixOpts, index.WithFilter(so.filter))
	}

	neighbors, err := ix.Search(query, topK, ixOpts...)
	if err != nil {
		return nil, translateError(err)
	}

	results := make([]model.SearchResult, 0, len(neighbors))

	for _, n := range neighbors {
		p, ok := ix.Point(n.Ordinal)
		if !ok {
			return nil, fmt.Errorf("ordinal %d has no point", n.Ordinal)
		}

		results = append(results, model.SearchResult{
			ID:       p.ID,
			Content:  p.Content,
			Metadata: maps.Clone(p.Metadata),
			Score:    distance.Score(ix.Kind(), n.Raw),
		})
	}

	return results, nil
}

// SearchByID searches collection name with the stored embedding of point
// id. The point is read from the source, never from a cached index.
func (s *Searcher) SearchByID(ctx context.Context, name string, id uuid.UUID, topK int, optFns ...SearchOption) ([]model.SearchResult, error) {
	cfg, p, err := s.loadPoint(ctx, name, id)
	if err != nil {
		s.metrics.RecordSearch(name, topK, 0, 0, err)
		s.logger.LogSearch(ctx, name, topK, 0, 0, err)
		return nil, fmt.Errorf("vecsearch: search %q by id %s: %w", name, id, err)
	}

	return s.SearchByVector(ctx, name, p.Embedding, topK, cfg.Distance, optFns...)
}

func (s *Searcher) loadPoint(ctx context.Context, name string, id uuid.UUID) (model.CollectionConfig, model.Point, error) {
	if err := s.checkOpen(); err != nil {
		return model.CollectionConfig{}, model.Point{}, err
	}

	cfg, err := s.src.LoadConfig(ctx, name)
	if err != nil {
		return cfg, model.Point{}, translateError(err)
	}

	p, err := s.src.LoadPoint(ctx, name, id)
	if err != nil {
		return cfg, p, translateError(err)
	}

	return cfg, p, nil
}

// ComputeSimilarity returns the exact similarity of a and b under kind.
// No collection or index is involved.
func (s *Searcher) ComputeSimilarity(a, b []float32, kind distance.Kind) (float32, error) {
	start := time.Now()

	sim, err := distance.Similarity(kind, a, b)
	err = translateError(err)

	s.metrics.RecordSimilarity(time.Since(start), err)

	if err != nil {
		return 0, fmt.Errorf("vecsearch: similarity: %w", err)
	}

	return sim, nil
}

// Invalidate drops the cached index of collection name. Storage writers
// call it after every mutation; see source.WithInvalidation.
func (s *Searcher) Invalidate(name string) {
	s.cache.Invalidate(name)
	s.metrics.RecordInvalidate(name)
	s.logger.LogInvalidate(context.Background(), name)
}

// Warm builds the indexes of the given collections concurrently.
func (s *Searcher) Warm(ctx context.Context, names ...string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := s.cache.Warm(ctx, names...); err != nil {
		return fmt.Errorf("vecsearch: warm: %w", translateError(err))
	}

	return nil
}

// Cached returns the sorted names of collections with a built index.
func (s *Searcher) Cached() []string {
	return s.cache.Names()
}

// Builds returns how many index builds have run.
func (s *Searcher) Builds() int64 {
	return s.cache.Builds()
}

// Close drops every cached index. The source is not closed. Further calls
// fail with ErrClosed.
func (s *Searcher) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	s.cache.Purge()

	return nil
}

func (s *Searcher) checkOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}
