package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch/codec"
	"github.com/hupe1980/vecsearch/source"
	"github.com/hupe1980/vecsearch/source/sourcetest"
)

func TestStore(t *testing.T) {
	tests := []struct {
		name string
		opts func(t *testing.T) Options
	}{
		{"disk msgpack", func(t *testing.T) Options { return Options{Dir: t.TempDir()} }},
		{"memory json", func(*testing.T) Options { return Options{InMemory: true, Codec: codec.JSON{}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sourcetest.Run(t, func(t *testing.T) source.Store {
				s, err := Open(tt.opts(t))
				require.NoError(t, err)

				return s
			})
		})
	}
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Options{})
	require.Error(t, err)
}

func TestPrefixIsolation(t *testing.T) {
	ctx := context.Background()

	s, err := Open(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	// "doc" is a byte prefix of "docs"; their points must not mix.
	require.NoError(t, s.CreateCollection(ctx, sourcetest.Config("doc")))
	require.NoError(t, s.CreateCollection(ctx, sourcetest.Config("docs")))

	points := sourcetest.Points()
	require.NoError(t, s.AddPoints(ctx, "docs", points))

	n, err := s.CountPoints(ctx, "doc")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.DeleteCollection(ctx, "doc"))

	n, err = s.CountPoints(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, len(points), n)
}

func TestReopenKeepsSequence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	points := sourcetest.Points()

	s, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.CreateCollection(ctx, sourcetest.Config("docs")))
	require.NoError(t, s.AddPoints(ctx, "docs", points[:2]))
	require.NoError(t, s.Close())

	s, err = Open(Options{Dir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.AddPoints(ctx, "docs", points[2:]))

	got, err := s.LoadPoints(ctx, "docs")
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i := range points {
		assert.Equal(t, points[i].ID, got[i].ID)
	}
}
