package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch/source"
	"github.com/hupe1980/vecsearch/source/sourcetest"
)

func TestStore(t *testing.T) {
	sourcetest.Run(t, func(t *testing.T) source.Store {
		s, err := Open(context.Background(), filepath.Join(t.TempDir(), "vecsearch.db"))
		require.NoError(t, err)

		return s
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "vecsearch.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)

	points := sourcetest.Points()
	cfg := sourcetest.Config("docs")

	require.NoError(t, s.CreateCollection(ctx, cfg))
	require.NoError(t, s.AddPoints(ctx, "docs", points))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.LoadConfig(ctx, "docs")
	require.NoError(t, err)
	require.Equal(t, cfg, got)

	loaded, err := s.LoadPoints(ctx, "docs")
	require.NoError(t, err)
	require.Len(t, loaded, len(points))
	require.Equal(t, points[0].Embedding, loaded[0].Embedding)
}
