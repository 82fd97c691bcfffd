package cache

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch/blobstore"
	"github.com/hupe1980/vecsearch/index"
	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/resource"
	"github.com/hupe1980/vecsearch/snapshot"
	"github.com/hupe1980/vecsearch/source"
	"github.com/hupe1980/vecsearch/source/memory"
	"github.com/hupe1980/vecsearch/source/sourcetest"
)

// gatedSource blocks the first LoadPoints call after reading the points
// until release is closed.
type gatedSource struct {
	source.Source

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedSource(src source.Source) *gatedSource {
	return &gatedSource{
		Source:  src,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedSource) LoadPoints(ctx context.Context, name string) ([]model.Point, error) {
	points, err := g.Source.LoadPoints(ctx, name)

	first := false
	g.once.Do(func() { first = true })

	if first {
		close(g.entered)
		<-g.release
	}

	return points, err
}

func newStore(t *testing.T, names ...string) *memory.Store {
	t.Helper()

	ctx := context.Background()
	store := memory.New()

	for _, name := range names {
		require.NoError(t, store.CreateCollection(ctx, sourcetest.Config(name)))
		require.NoError(t, store.AddPoints(ctx, name, sourcetest.Points()))
	}

	return store
}

func extraPoint() model.Point {
	return model.NewPoint([]float32{0, 0, 1}).WithID(uuid.MustParse("00000000-0000-0000-0000-000000000004")).Build()
}

func TestGetOrBuildCaches(t *testing.T) {
	ctx := context.Background()
	c := New(newStore(t, "docs"))

	ix1, err := c.GetOrBuild(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, ix1.Len())
	assert.Equal(t, "docs", ix1.Name())

	ix2, err := c.GetOrBuild(ctx, "docs")
	require.NoError(t, err)

	assert.Same(t, ix1, ix2)
	assert.Equal(t, int64(1), c.Builds())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"docs"}, c.Names())

	peeked, ok := c.Peek("docs")
	require.True(t, ok)
	assert.Same(t, ix1, peeked)
}

func TestConcurrentCallersShareOneBuild(t *testing.T) {
	ctx := context.Background()
	src := newGatedSource(newStore(t, "docs"))
	c := New(src)

	const callers = 32

	results := make([]*index.Index, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrBuild(ctx, "docs")
		}(i)
	}

	<-src.entered
	close(src.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}

	assert.Equal(t, int64(1), c.Builds())
}

func TestInvalidateDuringBuild(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "docs")
	src := newGatedSource(store)
	c := New(src)

	type result struct {
		ix  *index.Index
		err error
	}

	done := make(chan result, 1)

	go func() {
		ix, err := c.GetOrBuild(ctx, "docs")
		done <- result{ix, err}
	}()

	<-src.entered

	require.NoError(t, store.AddPoints(ctx, "docs", []model.Point{extraPoint()}))
	c.Invalidate("docs")

	close(src.release)

	stale := <-done
	require.NoError(t, stale.err)
	assert.Equal(t, 3, stale.ix.Len())

	// The stale build was handed out but not kept.
	assert.Equal(t, 0, c.Len())

	fresh, err := c.GetOrBuild(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 4, fresh.Len())
	assert.Equal(t, int64(2), c.Builds())
}

func TestCallerCancellation(t *testing.T) {
	src := newGatedSource(newStore(t, "docs"))
	c := New(src)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		_, err := c.GetOrBuild(ctx, "docs")
		done <- err
	}()

	<-src.entered
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)

	close(src.release)

	ix, err := c.GetOrBuild(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, int64(1), c.Builds())
}

func TestLRUEviction(t *testing.T) {
	ctx := context.Background()
	c := New(newStore(t, "a", "b", "c"), func(o *Options) {
		o.MaxEntries = 2
	})

	for _, name := range []string{"a", "b", "a", "c"} {
		_, err := c.GetOrBuild(ctx, name)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a", "c"}, c.Names())

	// Evicted collections simply rebuild.
	_, err := c.GetOrBuild(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(4), c.Builds())
}

func TestErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("collection not found", func(t *testing.T) {
		c := New(memory.New())

		_, err := c.GetOrBuild(ctx, "missing")
		require.ErrorIs(t, err, source.ErrCollectionNotFound)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("non-finite embedding", func(t *testing.T) {
		store := newStore(t, "docs")
		bad := model.NewPoint([]float32{float32(math.NaN()), 0, 0}).Build()
		require.NoError(t, store.AddPoints(ctx, "docs", []model.Point{bad}))

		var infos []BuildInfo

		c := New(store, func(o *Options) {
			o.OnBuild = func(info BuildInfo) { infos = append(infos, info) }
		})

		_, err := c.GetOrBuild(ctx, "docs")

		var buildErr *index.BuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Equal(t, bad.ID, buildErr.PointID)
		require.ErrorIs(t, err, index.ErrNonFinite)

		assert.Equal(t, 0, c.Len())
		require.Len(t, infos, 1)
		assert.Error(t, infos[0].Err)
	})
}

func TestEmptyCollection(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateCollection(ctx, sourcetest.Config("empty")))

	c := New(store)

	ix, err := c.GetOrBuild(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, 3, ix.Dimension())
}

func TestWarmAndPurge(t *testing.T) {
	ctx := context.Background()
	c := New(newStore(t, "a", "b", "c"), func(o *Options) {
		o.Controller = resource.NewController(resource.Config{MaxConcurrentBuilds: 2})
	})

	require.NoError(t, c.Warm(ctx, "a", "b", "c"))
	assert.Equal(t, 3, c.Len())

	require.ErrorIs(t, c.Warm(ctx, "a", "missing"), source.ErrCollectionNotFound)

	c.Purge()
	assert.Equal(t, 0, c.Len())

	_, err := c.GetOrBuild(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.Builds())
}

func TestMemoryLimit(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1})

	var infos []BuildInfo

	c := New(newStore(t, "docs"), func(o *Options) {
		o.Controller = rc
		o.OnBuild = func(info BuildInfo) { infos = append(infos, info) }
	})

	ix, err := c.GetOrBuild(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), rc.MemoryUsage())

	require.Len(t, infos, 1)
	assert.False(t, infos[0].Stored)
}

func TestMemoryAccounting(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{})
	c := New(newStore(t, "docs"), func(o *Options) { o.Controller = rc })

	_, err := c.GetOrBuild(ctx, "docs")
	require.NoError(t, err)
	assert.Positive(t, rc.MemoryUsage())

	c.Invalidate("docs")
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "docs")
	snaps := snapshot.New(blobstore.NewMemoryStore())

	var infos []BuildInfo

	newCache := func() *Cache {
		return New(store, func(o *Options) {
			o.Snapshots = snaps
			o.OnBuild = func(info BuildInfo) { infos = append(infos, info) }
		})
	}

	built, err := newCache().GetOrBuild(ctx, "docs")
	require.NoError(t, err)

	restored, err := newCache().GetOrBuild(ctx, "docs")
	require.NoError(t, err)

	require.Len(t, infos, 2)
	assert.False(t, infos[0].Restored)
	assert.True(t, infos[1].Restored)

	query := []float32{0.9, 0.1, 0}

	want, err := built.Search(query, 3)
	require.NoError(t, err)

	got, err := restored.Search(query, 3)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}
