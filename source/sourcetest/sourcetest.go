// Package sourcetest provides a conformance suite for source.Store backends.
package sourcetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/source"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) source.Store

// Run exercises every Store operation against stores made by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s source.Store)
	}{
		{"CreateAndLoadConfig", testCreateAndLoadConfig},
		{"CreateDuplicate", testCreateDuplicate},
		{"CreateInvalid", testCreateInvalid},
		{"MissingCollection", testMissingCollection},
		{"AddAndLoadPoints", testAddAndLoadPoints},
		{"AddPointsValidation", testAddPointsValidation},
		{"LoadPoint", testLoadPoint},
		{"DeleteCascades", testDeleteCascades},
		{"ListCollections", testListCollections},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })

			tt.fn(t, s)
		})
	}
}

// Config returns a valid cosine collection config of size 3.
func Config(name string) model.CollectionConfig {
	return model.CollectionConfig{
		Name:     name,
		Size:     3,
		Distance: distance.KindCosine,
		HNSW:     model.HNSWConfig{M: 8, EFConstruction: 64, EFSearch: 32},
	}
}

// Points returns three deterministic points of size 3.
func Points() []model.Point {
	return []model.Point{
		model.NewPoint([]float32{1, 0, 0}).
			WithID(uuid.MustParse("00000000-0000-0000-0000-000000000001")).
			WithContent("first").
			WithMetadata("lang", "en").
			WithMetadata("rank", 1).
			Build(),
		model.NewPoint([]float32{0, 1, 0}).
			WithID(uuid.MustParse("00000000-0000-0000-0000-000000000002")).
			WithContent("second").
			WithMetadata("lang", "de").
			Build(),
		model.NewPoint([]float32{0.5, 0.5, 0}).
			WithID(uuid.MustParse("00000000-0000-0000-0000-000000000003")).
			WithContent("third").
			Build(),
	}
}

func testCreateAndLoadConfig(t *testing.T, s source.Store) {
	ctx := context.Background()
	cfg := Config("docs")

	require.NoError(t, s.CreateCollection(ctx, cfg))

	got, err := s.LoadConfig(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	n, err := s.CountPoints(ctx, "docs")
	require.NoError(t, err)
	assert.Zero(t, n)

	points, err := s.LoadPoints(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func testCreateDuplicate(t *testing.T, s source.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateCollection(ctx, Config("docs")))
	require.ErrorIs(t, s.CreateCollection(ctx, Config("docs")), source.ErrCollectionExists)
}

func testCreateInvalid(t *testing.T, s source.Store) {
	ctx := context.Background()

	cfg := Config("")
	require.ErrorIs(t, s.CreateCollection(ctx, cfg), model.ErrInvalidConfig)

	cfg = Config("bad")
	cfg.Size = 0
	require.ErrorIs(t, s.CreateCollection(ctx, cfg), model.ErrInvalidConfig)
}

func testMissingCollection(t *testing.T, s source.Store) {
	ctx := context.Background()

	_, err := s.LoadConfig(ctx, "nope")
	require.ErrorIs(t, err, source.ErrCollectionNotFound)

	_, err = s.LoadPoints(ctx, "nope")
	require.ErrorIs(t, err, source.ErrCollectionNotFound)

	_, err = s.LoadPoint(ctx, "nope", uuid.New())
	require.ErrorIs(t, err, source.ErrCollectionNotFound)

	_, err = s.CountPoints(ctx, "nope")
	require.ErrorIs(t, err, source.ErrCollectionNotFound)

	require.ErrorIs(t, s.AddPoints(ctx, "nope", Points()), source.ErrCollectionNotFound)
	require.ErrorIs(t, s.DeleteCollection(ctx, "nope"), source.ErrCollectionNotFound)
}

func testAddAndLoadPoints(t *testing.T, s source.Store) {
	ctx := context.Background()
	want := Points()

	require.NoError(t, s.CreateCollection(ctx, Config("docs")))
	require.NoError(t, s.AddPoints(ctx, "docs", want[:2]))
	require.NoError(t, s.AddPoints(ctx, "docs", want[2:]))

	got, err := s.LoadPoints(ctx, "docs")
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Content, got[i].Content)
		assert.Equal(t, want[i].Embedding, got[i].Embedding)
	}

	assert.Equal(t, "en", got[0].Metadata["lang"])
	assert.EqualValues(t, 1, got[0].Metadata["rank"])
	assert.Empty(t, got[2].Metadata)

	n, err := s.CountPoints(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func testAddPointsValidation(t *testing.T, s source.Store) {
	ctx := context.Background()
	points := Points()

	require.NoError(t, s.CreateCollection(ctx, Config("docs")))

	wrongSize := model.NewPoint([]float32{1, 2}).Build()
	err := s.AddPoints(ctx, "docs", []model.Point{wrongSize})
	require.ErrorIs(t, err, source.ErrInvalidPoint)

	var dimErr *distance.ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)

	noID := points[0]
	noID.ID = uuid.Nil
	require.ErrorIs(t, s.AddPoints(ctx, "docs", []model.Point{noID}), source.ErrInvalidPoint)

	require.ErrorIs(t, s.AddPoints(ctx, "docs", []model.Point{points[0], points[0]}), source.ErrDuplicatePoint)

	require.NoError(t, s.AddPoints(ctx, "docs", points[:1]))

	// A batch with one stored id must not be partially applied.
	require.ErrorIs(t, s.AddPoints(ctx, "docs", []model.Point{points[1], points[0]}), source.ErrDuplicatePoint)

	n, err := s.CountPoints(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testLoadPoint(t *testing.T, s source.Store) {
	ctx := context.Background()
	points := Points()

	require.NoError(t, s.CreateCollection(ctx, Config("docs")))
	require.NoError(t, s.AddPoints(ctx, "docs", points))

	got, err := s.LoadPoint(ctx, "docs", points[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)
	assert.Equal(t, points[1].Embedding, got.Embedding)

	_, err = s.LoadPoint(ctx, "docs", uuid.New())
	require.ErrorIs(t, err, source.ErrPointNotFound)
}

func testDeleteCascades(t *testing.T, s source.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateCollection(ctx, Config("docs")))
	require.NoError(t, s.AddPoints(ctx, "docs", Points()))
	require.NoError(t, s.DeleteCollection(ctx, "docs"))

	_, err := s.LoadConfig(ctx, "docs")
	require.ErrorIs(t, err, source.ErrCollectionNotFound)

	// Recreating the name starts from an empty collection.
	require.NoError(t, s.CreateCollection(ctx, Config("docs")))

	n, err := s.CountPoints(ctx, "docs")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.AddPoints(ctx, "docs", Points()))
}

func testListCollections(t *testing.T, s source.Store) {
	ctx := context.Background()

	for _, name := range []string{"b", "a", "c"} {
		require.NoError(t, s.CreateCollection(ctx, Config(name)))
	}

	got, err := s.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)
	assert.Equal(t, "c", got[2].Name)
}
