package snapshot

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch/blobstore"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/index"
	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/resource"
)

func testConfig() model.CollectionConfig {
	return model.CollectionConfig{
		Name:     "docs/en",
		Size:     8,
		Distance: distance.KindCosine,
		HNSW:     model.HNSWConfig{M: 8, EFConstruction: 64, EFSearch: 32},
	}
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
			Build()
	}

	return points
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in   string
		want Compression
		err  bool
	}{
		{"", CompressionZstd, false},
		{"ZSTD", CompressionZstd, false},
		{"lz4", CompressionLZ4, false},
		{" none ", CompressionNone, false},
		{"gzip", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCompression(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.String(), map[Compression]string{CompressionZstd: "zstd", CompressionLZ4: "lz4", CompressionNone: "none"}[got])
		})
	}
}

func TestFingerprint(t *testing.T) {
	cfg := testConfig()
	points := randomPoints(10, 8, 1)

	base := Fingerprint(cfg, points, 42)
	assert.Equal(t, base, Fingerprint(cfg, randomPoints(10, 8, 1), 42))

	assert.NotEqual(t, base, Fingerprint(cfg, points, 43), "seed")
	assert.NotEqual(t, base, Fingerprint(cfg, points[:9], 42), "point count")

	changed := randomPoints(10, 8, 1)
	changed[3].Embedding[0] += 0.5
	assert.NotEqual(t, base, Fingerprint(cfg, changed, 42), "embedding")

	other := cfg
	other.Distance = distance.KindDot
	assert.NotEqual(t, base, Fingerprint(other, points, 42), "distance")

	// Zero params and explicit defaults build the same graph.
	zero := cfg
	zero.HNSW = model.HNSWConfig{}
	defaults := cfg
	defaults.HNSW = model.HNSWConfig{}.WithDefaults()
	assert.Equal(t, Fingerprint(zero, points, 42), Fingerprint(defaults, points, 42))
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionZstd, CompressionLZ4, CompressionNone} {
		t.Run(c.String(), func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig()
			points := randomPoints(300, cfg.Size, 7)

			ix, err := index.Build(points, cfg.Distance, cfg.HNSW, index.WithName(cfg.Name), index.WithDimension(cfg.Size))
			require.NoError(t, err)

			rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 30})
			store := New(blobstore.NewMemoryStore(), func(o *Options) {
				o.Compression = c
				o.Controller = rc
			})

			graph, found, err := store.Load(ctx, cfg, points, ix.Seed())
			require.NoError(t, err)
			require.False(t, found)
			require.Nil(t, graph)

			require.NoError(t, store.Save(ctx, cfg, ix))

			graph, found, err = store.Load(ctx, cfg, points, ix.Seed())
			require.NoError(t, err)
			require.True(t, found)

			restored, err := index.Restore(points, cfg.Distance, cfg.HNSW, graph, index.WithName(cfg.Name), index.WithDimension(cfg.Size))
			require.NoError(t, err)

			for q := 0; q < 20; q++ {
				query := points[q*7].Embedding

				want, err := ix.Search(query, 10)
				require.NoError(t, err)

				got, err := restored.Search(query, 10)
				require.NoError(t, err)

				assert.Equal(t, want, got)
			}
		})
	}
}

func TestSavePrunesStale(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	blobs := blobstore.NewMemoryStore()
	store := New(blobs)

	first := randomPoints(20, cfg.Size, 1)
	ix, err := index.Build(first, cfg.Distance, cfg.HNSW)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, cfg, ix))

	second := append(first, randomPoints(5, cfg.Size, 2)...)
	ix, err = index.Build(second, cfg.Distance, cfg.HNSW)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, cfg, ix))

	names, err := store.List(ctx, cfg.Name)
	require.NoError(t, err)
	require.Len(t, names, 1)

	_, found, err := store.Load(ctx, cfg, first, index.DefaultSeed)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.Load(ctx, cfg, second, index.DefaultSeed)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, store.Delete(ctx, cfg.Name))

	names, err = store.List(ctx, cfg.Name)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLoadCorrupt(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	points := randomPoints(5, cfg.Size, 1)
	blobs := blobstore.NewMemoryStore()
	store := New(blobs)

	name := store.name(cfg.Name, Fingerprint(cfg, points, 42))
	require.NoError(t, blobs.Put(ctx, name, []byte("garbage")))

	_, found, err := store.Load(ctx, cfg, points, 42)
	require.ErrorIs(t, err, ErrCorrupt)
	assert.False(t, found)
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	points := randomPoints(50, cfg.Size, 3)

	blobs, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	store := New(blobs, func(o *Options) { o.Compression = CompressionLZ4 })

	ix, err := index.Build(points, cfg.Distance, cfg.HNSW)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, cfg, ix))

	graph, found, err := store.Load(ctx, cfg, points, index.DefaultSeed)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ix.Graph().Len(), graph.Len())
}
