package index

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/metadata"
	"github.com/hupe1980/vecsearch/model"
)

func point(vec ...float32) model.Point {
	return model.NewPoint(vec).Build()
}

func randomPoints(n, dim int, seed int64) []model.Point {
	r := rand.New(rand.NewSource(seed)) // nolint gosec

	points := make([]model.Point, n)
	for i := range points {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = r.Float32()*2 - 1
		}

		points[i] = model.NewPoint(vec).
			WithID(uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(i), byte(i >> 8)})).
			WithMetadata("bucket", i%3).
			Build()
	}

	return points
}

func TestBuildEmpty(t *testing.T) {
	ix, err := Build(nil, distance.KindCosine, model.HNSWConfig{}, WithDimension(3))
	require.NoError(t, err)

	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, 3, ix.Dimension())

	res, err := ix.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestBuildDefaults(t *testing.T) {
	ix, err := Build([]model.Point{point(1, 2)}, distance.KindEuclidean, model.HNSWConfig{M: 8})
	require.NoError(t, err)

	assert.Equal(t, model.HNSWConfig{M: 8, EFConstruction: 200, EFSearch: 50}, ix.Params())
	assert.Equal(t, distance.SpaceL2, ix.Space())
	assert.Equal(t, distance.KindEuclidean, ix.Kind())
	assert.Equal(t, DefaultSeed, ix.Seed())
}

func TestBuildErrors(t *testing.T) {
	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := Build([]model.Point{point(1, 2), point(1, 2, 3)}, distance.KindDot, model.HNSWConfig{})

		var dimErr *distance.ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 2, dimErr.Expected)
		assert.Equal(t, 3, dimErr.Actual)
	})

	t.Run("DeclaredDimension", func(t *testing.T) {
		_, err := Build([]model.Point{point(1, 2)}, distance.KindDot, model.HNSWConfig{}, WithDimension(3))

		var dimErr *distance.ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 3, dimErr.Expected)
	})

	t.Run("NonFinite", func(t *testing.T) {
		bad := point(1, float32(math.NaN()))
		_, err := Build([]model.Point{point(1, 2), bad}, distance.KindEuclidean, model.HNSWConfig{})

		var buildErr *BuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Equal(t, bad.ID, buildErr.PointID)
		require.ErrorIs(t, err, ErrNonFinite)
	})

	t.Run("EmptyEmbedding", func(t *testing.T) {
		_, err := Build([]model.Point{point()}, distance.KindEuclidean, model.HNSWConfig{})
		require.ErrorIs(t, err, ErrEmptyEmbedding)
	})

	t.Run("UnsupportedKind", func(t *testing.T) {
		_, err := Build([]model.Point{point(1)}, distance.KindUnspecified, model.HNSWConfig{})
		require.ErrorIs(t, err, distance.ErrUnsupportedKind)
	})
}

func TestCosineKeepsOriginalEmbeddings(t *testing.T) {
	p := point(3, 4)
	zero := point(0, 0)

	ix, err := Build([]model.Point{p, zero}, distance.KindCosine, model.HNSWConfig{})
	require.NoError(t, err)

	got, ok := ix.Point(0)
	require.True(t, ok)
	assert.Equal(t, []float32{3, 4}, got.Embedding)

	vec, ok := ix.Graph().Vector(0)
	require.True(t, ok)
	assert.InDelta(t, 0.6, vec[0], 1e-6)

	vec, ok = ix.Graph().Vector(1)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 0}, vec)

	_, ok = ix.Point(2)
	assert.False(t, ok)
}

func TestPrepareQuery(t *testing.T) {
	ix, err := Build([]model.Point{point(1, 0)}, distance.KindCosine, model.HNSWConfig{})
	require.NoError(t, err)

	q, err := ix.PrepareQuery([]float32{0, 5})
	require.NoError(t, err)
	require.Len(t, q, 2)
	assert.InDelta(t, 0, q[0], 1e-6)
	assert.InDelta(t, 1, q[1], 1e-6)

	_, err = ix.PrepareQuery([]float32{0, 0})
	require.ErrorIs(t, err, distance.ErrDegenerateVector)

	_, err = ix.PrepareQuery([]float32{1})

	var dimErr *distance.ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
}

func TestSearchRawUnits(t *testing.T) {
	points := []model.Point{point(1, 0), point(0, 1)}

	t.Run("Cosine", func(t *testing.T) {
		ix, err := Build(points, distance.KindCosine, model.HNSWConfig{})
		require.NoError(t, err)

		res, err := ix.Search([]float32{2, 0}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)

		assert.Equal(t, uint32(0), res[0].Ordinal)
		assert.InDelta(t, 1, res[0].Raw, 1e-6)
		assert.Equal(t, uint32(1), res[1].Ordinal)
		assert.InDelta(t, 0, res[1].Raw, 1e-6)
	})

	t.Run("Euclidean", func(t *testing.T) {
		ix, err := Build(points, distance.KindEuclidean, model.HNSWConfig{})
		require.NoError(t, err)

		res, err := ix.Search([]float32{2, 0}, 5)
		require.NoError(t, err)
		require.Len(t, res, 2)

		assert.Equal(t, uint32(0), res[0].Ordinal)
		assert.InDelta(t, 1, res[0].Raw, 1e-6)
		assert.InDelta(t, 5, res[1].Raw, 1e-6)
	})

	t.Run("Dot", func(t *testing.T) {
		ix, err := Build([]model.Point{point(1, 0), point(3, 0)}, distance.KindDot, model.HNSWConfig{})
		require.NoError(t, err)

		res, err := ix.Search([]float32{1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, res, 1)

		assert.Equal(t, uint32(1), res[0].Ordinal)
		assert.InDelta(t, 3, res[0].Raw, 1e-6)
	})
}

func TestSearchBoundedAndDistinct(t *testing.T) {
	points := randomPoints(500, 8, 1)

	ix, err := Build(points, distance.KindEuclidean, model.HNSWConfig{})
	require.NoError(t, err)

	res, err := ix.Search(points[7].Embedding, 20)
	require.NoError(t, err)
	require.Len(t, res, 20)

	assert.Equal(t, uint32(7), res[0].Ordinal)

	seen := make(map[uint32]struct{})
	for i, n := range res {
		_, dup := seen[n.Ordinal]
		assert.False(t, dup)
		seen[n.Ordinal] = struct{}{}

		if i > 0 {
			assert.LessOrEqual(t, res[i-1].Raw, n.Raw)
		}
	}
}

func TestSearchFilter(t *testing.T) {
	points := randomPoints(300, 6, 2)

	ix, err := Build(points, distance.KindCosine, model.HNSWConfig{})
	require.NoError(t, err)

	fs := metadata.NewFilterSet(metadata.Eq("bucket", metadata.Int(1)))

	res, err := ix.Search(points[0].Embedding, 10, WithFilter(fs), WithEF(20))
	require.NoError(t, err)
	require.NotEmpty(t, res)

	for _, n := range res {
		p, _ := ix.Point(n.Ordinal)
		assert.Equal(t, 1, p.Metadata["bucket"])
	}

	none := metadata.NewFilterSet(metadata.Eq("bucket", metadata.Int(9)))

	res, err = ix.Search(points[0].Embedding, 10, WithFilter(none))
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestDeterministicBuild(t *testing.T) {
	points := randomPoints(400, 8, 3)

	a, err := Build(points, distance.KindDot, model.HNSWConfig{})
	require.NoError(t, err)

	b, err := Build(points, distance.KindDot, model.HNSWConfig{})
	require.NoError(t, err)

	for _, q := range []int{0, 50, 399} {
		ra, err := a.Search(points[q].Embedding, 10, WithEF(16))
		require.NoError(t, err)

		rb, err := b.Search(points[q].Embedding, 10, WithEF(16))
		require.NoError(t, err)

		assert.Equal(t, ra, rb)
	}
}

func TestRestore(t *testing.T) {
	points := randomPoints(100, 4, 4)

	built, err := Build(points, distance.KindEuclidean, model.HNSWConfig{}, WithName("docs"))
	require.NoError(t, err)

	restored, err := Restore(points, distance.KindEuclidean, model.HNSWConfig{}, built.Graph(), WithName("docs"))
	require.NoError(t, err)
	assert.Equal(t, "docs", restored.Name())

	want, err := built.Search(points[3].Embedding, 5)
	require.NoError(t, err)

	got, err := restored.Search(points[3].Embedding, 5)
	require.NoError(t, err)

	assert.Equal(t, want, got)

	_, err = Restore(points[:10], distance.KindEuclidean, model.HNSWConfig{}, built.Graph())
	require.ErrorIs(t, err, ErrGraphMismatch)
}
