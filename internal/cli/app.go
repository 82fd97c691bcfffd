package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/blobstore"
	"github.com/hupe1980/vecsearch/blobstore/minio"
	"github.com/hupe1980/vecsearch/blobstore/s3"
	"github.com/hupe1980/vecsearch/cache"
	"github.com/hupe1980/vecsearch/internal/config"
	vecprom "github.com/hupe1980/vecsearch/metrics/prometheus"
	"github.com/hupe1980/vecsearch/resource"
	"github.com/hupe1980/vecsearch/snapshot"
	"github.com/hupe1980/vecsearch/source"
	"github.com/hupe1980/vecsearch/source/badger"
	"github.com/hupe1980/vecsearch/source/memory"
	"github.com/hupe1980/vecsearch/source/postgres"
	"github.com/hupe1980/vecsearch/source/sqlite"
)

// app holds everything a command needs, opened from one config.
type app struct {
	cfg       *config.Config
	logger    *vecsearch.Logger
	store     source.Store
	writer    source.Store
	searcher  *vecsearch.Searcher
	snapshots *snapshot.Store
	registry  *prometheus.Registry
}

func newLogger(cfg config.Log) (*vecsearch.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(cfg.Format, "json") {
		return vecsearch.NewJSONLogger(level), nil
	}

	return vecsearch.NewTextLogger(level), nil
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.Store, logger.Logger)
	if err != nil {
		return nil, err
	}

	rc := resource.NewController(resource.Config{
		MaxConcurrentBuilds: cfg.Cache.MaxConcurrentBuilds,
		BuildsPerSecond:     cfg.Cache.BuildsPerSecond,
		MemoryLimitBytes:    cfg.Cache.MemoryLimitBytes,
		IOLimitBytesPerSec:  cfg.Snapshots.WriteBytesPerSec,
	})

	snapshots, err := openSnapshots(ctx, cfg.Snapshots, rc, logger.Logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []vecsearch.Option{
		vecsearch.WithLogger(logger),
		vecsearch.WithMetricsCollector(vecprom.New(registry)),
		vecsearch.WithController(rc),
		vecsearch.WithCacheOptions(func(o *cache.Options) {
			o.MaxEntries = cfg.Cache.MaxEntries
			if cfg.Cache.Seed != 0 {
				o.Seed = cfg.Cache.Seed
			}
		}),
	}

	if snapshots != nil {
		opts = append(opts, vecsearch.WithSnapshots(snapshots))
	}

	searcher := vecsearch.New(store, opts...)

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		writer:    source.WithInvalidation(store, searcher),
		searcher:  searcher,
		snapshots: snapshots,
		registry:  registry,
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.searcher.Close(), a.store.Close())
}

func openStore(ctx context.Context, cfg config.Store, logger *slog.Logger) (source.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.DSN)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DSN)
	case config.DriverBadger:
		return badger.Open(badger.Options{Dir: cfg.Dir, Logger: logger})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// openSnapshots returns nil when snapshots are disabled.
func openSnapshots(ctx context.Context, cfg config.Snapshots, rc *resource.Controller, logger *slog.Logger) (*snapshot.Store, error) {
	var (
		blobs blobstore.Store
		err   error
	)

	switch cfg.Driver {
	case "":
		return nil, nil
	case config.SnapshotLocal:
		blobs, err = blobstore.NewLocalStore(cfg.Dir)
	case config.SnapshotS3:
		blobs, err = s3.New(ctx, cfg.Bucket, func(o *s3.Options) {
			o.Prefix = cfg.Prefix
			o.Region = cfg.Region
			o.Endpoint = cfg.Endpoint
			o.UsePathStyle = cfg.PathStyle
		})
	case config.SnapshotMinIO:
		blobs, err = minio.Dial(ctx, cfg.Endpoint, cfg.Bucket, func(o *minio.Options) {
			o.AccessKey = cfg.AccessKey
			o.SecretKey = cfg.SecretKey
			o.Secure = cfg.Secure
			o.Region = cfg.Region
			o.Prefix = cfg.Prefix
		})
	default:
		return nil, fmt.Errorf("unknown snapshot driver %q", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	if cfg.CacheBytes > 0 {
		blobs = blobstore.NewCachingStore(blobs, cfg.CacheBytes, rc)
	}

	compression, err := snapshot.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	return snapshot.New(blobs, func(o *snapshot.Options) {
		o.Compression = compression
		o.Controller = rc
		o.Logger = logger.With("component", "snapshot")
	}), nil
}
