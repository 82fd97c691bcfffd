package index

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/hnsw"
	"github.com/hupe1980/vecsearch/internal/math32"
	"github.com/hupe1980/vecsearch/metadata"
	"github.com/hupe1980/vecsearch/model"
)

// DefaultSeed seeds graph construction unless WithSeed overrides it.
const DefaultSeed int64 = 42

var (
	// ErrNonFinite is returned when an embedding contains NaN or Inf.
	ErrNonFinite = errors.New("embedding contains non-finite values")

	// ErrEmptyEmbedding is returned when a point has no embedding and no
	// dimension was declared.
	ErrEmptyEmbedding = errors.New("embedding is empty")

	// ErrGraphMismatch is returned by Restore when the graph does not fit the points.
	ErrGraphMismatch = errors.New("graph does not match points")
)

// BuildError reports an index construction failure.
type BuildError struct {
	PointID uuid.UUID
	Err     error
}

func (e *BuildError) Error() string {
	if e.PointID == uuid.Nil {
		return fmt.Sprintf("index build failed: %v", e.Err)
	}
	return fmt.Sprintf("index build failed: point %s: %v", e.PointID, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Neighbor is a search hit: the point's ordinal and the raw value in the
// index space's unit (inner product or squared L2).
type Neighbor struct {
	Ordinal uint32
	Raw     float32
}

type options struct {
	name      string
	dimension int
	seed      int64
}

// Option configures Build and Restore.
type Option func(*options)

// WithName records the collection name the index serves.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithDimension enforces a declared dimensionality on every point.
func WithDimension(n int) Option {
	return func(o *options) {
		o.dimension = n
	}
}

// WithSeed sets the graph construction seed.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// Index is an immutable HNSW index over a snapshot of a collection's points.
// Ordinal i refers to the i-th point passed to Build.
type Index struct {
	name      string
	kind      distance.Kind
	space     distance.Space
	dimension int
	params    model.HNSWConfig
	seed      int64

	points []model.Point
	graph  *hnsw.HNSW
	meta   *metadata.Index
}

// Build constructs an index over points for kind.
//
// An empty point set yields an empty index. All embeddings must share one
// dimensionality. Cosine embeddings are indexed as L2-normalized copies, the
// points themselves keep their original embeddings.
func Build(points []model.Point, kind distance.Kind, params model.HNSWConfig, optFns ...Option) (*Index, error) {
	o := options{seed: DefaultSeed}
	for _, fn := range optFns {
		fn(&o)
	}

	ix, err := newIndex(points, kind, params, o)
	if err != nil {
		return nil, err
	}

	graph := ix.newGraph()

	for i := range ix.points {
		p := &ix.points[i]

		vec := p.Embedding
		if kind == distance.KindCosine {
			// Zero vectors stay as they are.
			if normalized, ok := distance.NormalizeL2Copy(vec); ok {
				vec = normalized
			}
		}

		if _, err := graph.Insert(vec); err != nil {
			return nil, &BuildError{PointID: p.ID, Err: err}
		}
	}

	ix.graph = graph

	return ix, nil
}

// Restore wraps a previously built graph, skipping construction. The graph
// must have been built from the same points, kind and params.
func Restore(points []model.Point, kind distance.Kind, params model.HNSWConfig, graph *hnsw.HNSW, optFns ...Option) (*Index, error) {
	o := options{seed: DefaultSeed}
	for _, fn := range optFns {
		fn(&o)
	}

	ix, err := newIndex(points, kind, params, o)
	if err != nil {
		return nil, err
	}

	if graph == nil || graph.Len() != len(points) || (len(points) > 0 && graph.Dimension() != ix.dimension) {
		return nil, &BuildError{Err: ErrGraphMismatch}
	}

	ix.graph = graph

	return ix, nil
}

// newIndex validates the points and builds everything except the graph.
func newIndex(points []model.Point, kind distance.Kind, params model.HNSWConfig, o options) (*Index, error) {
	space, err := distance.SpaceFor(kind)
	if err != nil {
		return nil, &BuildError{Err: err}
	}

	dim := o.dimension
	if dim <= 0 && len(points) > 0 {
		dim = len(points[0].Embedding)
	}

	ix := &Index{
		name:      o.name,
		kind:      kind,
		space:     space,
		dimension: dim,
		params:    params.WithDefaults(),
		seed:      o.seed,
		points:    slices.Clone(points),
		meta:      metadata.NewIndex(),
	}

	for i := range ix.points {
		p := &ix.points[i]

		if dim == 0 {
			return nil, &BuildError{PointID: p.ID, Err: ErrEmptyEmbedding}
		}

		if len(p.Embedding) != dim {
			return nil, fmt.Errorf("point %s: %w", p.ID, &distance.ErrDimensionMismatch{Expected: dim, Actual: len(p.Embedding)})
		}

		if !math32.IsFinite(p.Embedding) {
			return nil, &BuildError{PointID: p.ID, Err: ErrNonFinite}
		}

		ix.meta.Set(uint32(i), metadata.DocumentFromAny(p.Metadata))
	}

	return ix, nil
}

func (ix *Index) newGraph() *hnsw.HNSW {
	return hnsw.New(ix.dimension, func(o *hnsw.Options) {
		o.M = ix.params.M
		o.EFConstruction = ix.params.EFConstruction
		o.EF = ix.params.EFSearch
		o.Heuristic = true
		o.DistanceFunc = ix.space.Func()
		o.Seed = ix.seed
	})
}

// Name returns the collection name the index serves, if set.
func (ix *Index) Name() string { return ix.name }

// Kind returns the distance kind the index was built for.
func (ix *Index) Kind() distance.Kind { return ix.kind }

// Space returns the internal distance space.
func (ix *Index) Space() distance.Space { return ix.space }

// Dimension returns the embedding dimensionality, 0 for an empty index
// built without WithDimension.
func (ix *Index) Dimension() int { return ix.dimension }

// Params returns the effective HNSW parameters.
func (ix *Index) Params() model.HNSWConfig { return ix.params }

// Seed returns the graph construction seed.
func (ix *Index) Seed() int64 { return ix.seed }

// Len returns the number of indexed points.
func (ix *Index) Len() int { return len(ix.points) }

// Point returns the point stored at ordinal.
func (ix *Index) Point(ordinal uint32) (model.Point, bool) {
	if int(ordinal) >= len(ix.points) {
		return model.Point{}, false
	}
	return ix.points[ordinal], true
}

// Points returns the indexed points in ordinal order. The slice must not be modified.
func (ix *Index) Points() []model.Point { return ix.points }

// Graph returns the underlying HNSW graph.
func (ix *Index) Graph() *hnsw.HNSW { return ix.graph }

// Metadata returns the metadata inverted index.
func (ix *Index) Metadata() *metadata.Index { return ix.meta }

// PrepareQuery validates q against the index and maps it into the index
// space. Cosine queries are L2-normalized; a zero-norm Cosine query fails
// with distance.ErrDegenerateVector.
func (ix *Index) PrepareQuery(q []float32) ([]float32, error) {
	if len(q) == 0 || (ix.dimension > 0 && len(q) != ix.dimension) {
		return nil, &distance.ErrDimensionMismatch{Expected: ix.dimension, Actual: len(q)}
	}

	if ix.kind != distance.KindCosine {
		return q, nil
	}

	normalized, ok := distance.NormalizeL2Copy(q)
	if !ok {
		return nil, distance.ErrDegenerateVector
	}

	return normalized, nil
}

type searchOptions struct {
	ef     int
	filter *metadata.FilterSet
}

// SearchOption configures Search.
type SearchOption func(*searchOptions)

// WithEF overrides the query-time candidate list size.
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

// Search returns up to k neighbors of query, best first. Raw values are in
// the unit of Space().
func (ix *Index) Search(query []float32, k int, optFns ...SearchOption) ([]Neighbor, error) {
	if k < 1 {
		return nil, hnsw.ErrInvalidK
	}

	if len(ix.points) == 0 {
		return nil, nil
	}

	q, err := ix.PrepareQuery(query)
	if err != nil {
		return nil, err
	}

	o := searchOptions{ef: ix.params.EFSearch}
	for _, fn := range optFns {
		fn(&o)
	}

	k = min(k, len(ix.points))
	ef := max(o.ef, k)

	var results []hnsw.SearchResult

	allowed := ix.meta.Compile(o.filter)

	switch {
	case allowed == nil:
		results, err = ix.graph.KNNSearch(q, k, ef, nil)
	case allowed.IsEmpty():
		return nil, nil
	case allowed.GetCardinality() <= uint64(ef):
		// Few candidates: an exact scan beats walking a sparse graph.
		results, err = ix.graph.BruteSearch(q, k, allowed.Contains)
	default:
		results, err = ix.graph.KNNSearch(q, k, ef, allowed.Contains)
	}

	if err != nil {
		return nil, err
	}

	neighbors := make([]Neighbor, len(results))
	for i, r := range results {
		neighbors[i] = Neighbor{Ordinal: r.ID, Raw: ix.space.ToRaw(r.Distance)}
	}

	return neighbors, nil
}
