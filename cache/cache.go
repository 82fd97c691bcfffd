package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/vecsearch/hnsw"
	"github.com/hupe1980/vecsearch/index"
	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/resource"
	"github.com/hupe1980/vecsearch/source"
)

// SnapshotStore persists built graphs. *snapshot.Store implements it.
type SnapshotStore interface {
	Load(ctx context.Context, cfg model.CollectionConfig, points []model.Point, seed int64) (*hnsw.HNSW, bool, error)
	Save(ctx context.Context, cfg model.CollectionConfig, ix *index.Index) error
}

// BuildInfo describes one finished build attempt.
type BuildInfo struct {
	Collection string
	Points     int
	Duration   time.Duration
	Restored   bool
	Stored     bool
	Err        error
}

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the number of cached indexes. Least recently used
	// entries are evicted first. 0 means unbounded.
	MaxEntries int

	// Seed for graph construction.
	Seed int64

	// Controller admits builds and accounts cached memory. Nil means no limits.
	Controller *resource.Controller

	// Snapshots, if set, is consulted before building and written after.
	Snapshots SnapshotStore

	// OnBuild is called after every build attempt.
	OnBuild func(BuildInfo)

	Logger *slog.Logger
}

// DefaultOptions contains the default cache configuration.
var DefaultOptions = Options{
	Seed: index.DefaultSeed,
}

type entry struct {
	name  string
	ix    *index.Index
	bytes int64
}

// Cache maps collection names to built indexes. At most one build per
// collection runs at a time and every concurrent caller shares its result.
type Cache struct {
	src  source.Source
	opts Options

	mu          sync.Mutex
	entries     map[string]*list.Element
	lru         *list.List
	generations map[string]uint64
	epoch       uint64

	group  singleflight.Group
	builds atomic.Int64
}

// New creates an empty cache reading from src.
func New(src source.Source, optFns ...func(o *Options)) *Cache {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Cache{
		src:         src,
		opts:        opts,
		entries:     make(map[string]*list.Element),
		lru:         list.New(),
		generations: make(map[string]uint64),
	}
}

// GetOrBuild returns the index of collection name, building it on a miss.
//
// The build runs detached from ctx: a caller that gives up returns
// ctx.Err() while the build continues for the others.
func (c *Cache) GetOrBuild(ctx context.Context, name string) (*index.Index, error) {
	c.mu.Lock()
	if el, ok := c.entries[name]; ok {
		c.lru.MoveToFront(el)
		ix := el.Value.(*entry).ix
		c.mu.Unlock()

		return ix, nil
	}
	gen := c.generation(name)
	c.mu.Unlock()

	key := name + "\x00" + strconv.FormatUint(gen, 10)
	buildCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (any, error) {
		return c.build(buildCtx, name, gen)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*index.Index), nil
	}
}

// Peek returns the cached index without building.
func (c *Cache) Peek(name string) (*index.Index, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[name]; ok {
		return el.Value.(*entry).ix, true
	}

	return nil, false
}

// Invalidate drops the cached index of name. A build in flight for name
// finishes for its waiters but is not stored; the next GetOrBuild builds
// from current storage.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[name]++

	if el, ok := c.entries[name]; ok {
		c.remove(el)
	}

	c.opts.Logger.Debug("index invalidated", "collection", name, "generation", c.generation(name))
}

// Purge invalidates every collection.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++

	for _, el := range c.entries {
		c.remove(el)
	}
}

// generation only ever grows for a name. Callers hold mu.
func (c *Cache) generation(name string) uint64 {
	return c.generations[name] + c.epoch
}

// Warm builds the given collections concurrently and returns the first error.
func (c *Cache) Warm(ctx context.Context, names ...string) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, name := range names {
		g.Go(func() error {
			_, err := c.GetOrBuild(gctx, name)
			return err
		})
	}

	return g.Wait()
}

// Len returns the number of cached indexes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Names returns the sorted names of cached collections.
func (c *Cache) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Builds returns how many builds have run, restored snapshots included.
func (c *Cache) Builds() int64 {
	return c.builds.Load()
}

func (c *Cache) build(ctx context.Context, name string, gen uint64) (*index.Index, error) {
	// A flight for this generation may have finished between our miss and now.
	if ix, ok := c.lookup(name, gen); ok {
		return ix, nil
	}

	if err := c.opts.Controller.AcquireBuild(ctx); err != nil {
		return nil, fmt.Errorf("acquire build slot: %w", err)
	}
	defer c.opts.Controller.ReleaseBuild()

	c.builds.Add(1)

	start := time.Now()
	info := BuildInfo{Collection: name}

	ix, restored, err := c.construct(ctx, name)

	info.Duration = time.Since(start)
	info.Restored = restored
	info.Err = err

	if err == nil {
		info.Points = ix.Len()
		info.Stored = c.store(name, gen, ix)
	}

	c.report(info)

	if err != nil {
		return nil, err
	}

	return ix, nil
}

func (c *Cache) construct(ctx context.Context, name string) (*index.Index, bool, error) {
	cfg, err := c.src.LoadConfig(ctx, name)
	if err != nil {
		return nil, false, err
	}

	points, err := c.src.LoadPoints(ctx, name)
	if err != nil {
		return nil, false, err
	}

	opts := []index.Option{
		index.WithName(name),
		index.WithDimension(cfg.Size),
		index.WithSeed(c.opts.Seed),
	}

	useSnapshots := c.opts.Snapshots != nil && len(points) > 0

	if useSnapshots {
		if ix, ok := c.restore(ctx, cfg, points, opts); ok {
			return ix, true, nil
		}
	}

	ix, err := index.Build(points, cfg.Distance, cfg.HNSW, opts...)
	if err != nil {
		return nil, false, err
	}

	if useSnapshots {
		if err := c.opts.Snapshots.Save(ctx, cfg, ix); err != nil {
			c.opts.Logger.Warn("save snapshot failed", "collection", name, "error", err)
		}
	}

	return ix, false, nil
}

// restore loads a snapshot. Any failure falls back to building.
func (c *Cache) restore(ctx context.Context, cfg model.CollectionConfig, points []model.Point, opts []index.Option) (*index.Index, bool) {
	graph, found, err := c.opts.Snapshots.Load(ctx, cfg, points, c.opts.Seed)
	if err != nil {
		c.opts.Logger.Warn("load snapshot failed", "collection", cfg.Name, "error", err)
		return nil, false
	}

	if !found {
		return nil, false
	}

	ix, err := index.Restore(points, cfg.Distance, cfg.HNSW, graph, opts...)
	if err != nil {
		c.opts.Logger.Warn("restore snapshot failed", "collection", cfg.Name, "error", err)
		return nil, false
	}

	return ix, true
}

func (c *Cache) lookup(name string, gen uint64) (*index.Index, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation(name) != gen {
		return nil, false
	}

	if el, ok := c.entries[name]; ok {
		c.lru.MoveToFront(el)
		return el.Value.(*entry).ix, true
	}

	return nil, false
}

// store caches ix unless name was invalidated since the build started.
func (c *Cache) store(name string, gen uint64, ix *index.Index) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation(name) != gen {
		c.opts.Logger.Debug("discarding stale build", "collection", name)
		return false
	}

	if el, ok := c.entries[name]; ok {
		c.remove(el)
	}

	size := estimateBytes(ix)

	for !c.opts.Controller.TryAcquireMemory(size) {
		el := c.lru.Back()
		if el == nil {
			c.opts.Logger.Warn("index exceeds memory limit, not cached", "collection", name, "bytes", size)
			return false
		}
		c.remove(el)
	}

	c.entries[name] = c.lru.PushFront(&entry{name: name, ix: ix, bytes: size})

	for c.opts.MaxEntries > 0 && c.lru.Len() > c.opts.MaxEntries {
		c.remove(c.lru.Back())
	}

	return true
}

func (c *Cache) remove(el *list.Element) {
	e := el.Value.(*entry)

	c.lru.Remove(el)
	delete(c.entries, e.name)
	c.opts.Controller.ReleaseMemory(e.bytes)
}

func (c *Cache) report(info BuildInfo) {
	switch {
	case info.Err != nil && errors.Is(info.Err, source.ErrCollectionNotFound):
		c.opts.Logger.Debug("index build skipped", "collection", info.Collection, "error", info.Err)
	case info.Err != nil:
		c.opts.Logger.Error("index build failed", "collection", info.Collection, "error", info.Err)
	default:
		c.opts.Logger.Info("index built",
			"collection", info.Collection,
			"points", info.Points,
			"duration", info.Duration,
			"restored", info.Restored,
			"stored", info.Stored,
		)
	}

	if c.opts.OnBuild != nil {
		c.opts.OnBuild(info)
	}
}

// estimateBytes approximates the memory held by ix: embeddings twice
// (points and graph) plus adjacency lists.
func estimateBytes(ix *index.Index) int64 {
	n := int64(ix.Len())
	dim := int64(ix.Dimension())
	m := int64(ix.Params().M)

	return n * (2*dim*4 + 2*m*4)
}
