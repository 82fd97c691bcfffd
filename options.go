package vecsearch

import (
	"log/slog"

	"github.com/hupe1980/vecsearch/cache"
	"github.com/hupe1980/vecsearch/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	cacheOptions     []func(*cache.Options)
}

// Option configures a Searcher.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecsearch.BasicMetricsCollector{}
//	s := vecsearch.New(store, vecsearch.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecsearch.NewJSONLogger(slog.LevelInfo)
//	s := vecsearch.New(store, vecsearch.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithCacheOptions passes option functions through to the index cache.
//
//	s := vecsearch.New(store, vecsearch.WithCacheOptions(func(o *cache.Options) {
//	    o.MaxEntries = 64
//	}))
func WithCacheOptions(optFns ...func(*cache.Options)) Option {
	return func(o *options) {
		o.cacheOptions = append(o.cacheOptions, optFns...)
	}
}

// WithMaxEntries bounds the number of cached indexes.
func WithMaxEntries(n int) Option {
	return WithCacheOptions(func(o *cache.Options) {
		o.MaxEntries = n
	})
}

// WithController limits concurrent builds and cached memory.
func WithController(rc *resource.Controller) Option {
	return WithCacheOptions(func(o *cache.Options) {
		o.Controller = rc
	})
}

// WithSnapshots persists built graphs so that later processes can skip
// construction. *snapshot.Store implements cache.SnapshotStore.
func WithSnapshots(s cache.SnapshotStore) Option {
	return WithCacheOptions(func(o *cache.Options) {
		o.Snapshots = s
	})
}

// WithSeed overrides the graph construction seed.
func WithSeed(seed int64) Option {
	return WithCacheOptions(func(o *cache.Options) {
		o.Seed = seed
	})
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
