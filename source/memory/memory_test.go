package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/source"
	"github.com/hupe1980/vecsearch/source/sourcetest"
)

func TestStore(t *testing.T) {
	sourcetest.Run(t, func(t *testing.T) source.Store {
		return New()
	})
}

func TestLoadPointsIsolated(t *testing.T) {
	ctx := context.Background()
	s := New()

	points := sourcetest.Points()
	require.NoError(t, s.CreateCollection(ctx, model.CollectionConfig{Name: "docs", Size: 3, Distance: distance.KindCosine}))
	require.NoError(t, s.AddPoints(ctx, "docs", points))

	// Mutating the caller's slice must not leak into the store.
	points[0].Embedding[0] = 42

	got, err := s.LoadPoints(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, float32(1), got[0].Embedding[0])

	got[1].Embedding[0] = 42

	again, err := s.LoadPoint(ctx, "docs", got[1].ID)
	require.NoError(t, err)
	assert.Equal(t, float32(0), again.Embedding[0])
}
