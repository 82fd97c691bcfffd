package vecsearch

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus (see the metrics/prometheus package).
type MetricsCollector interface {
	// RecordSearch is called after each search. k is the requested number
	// of neighbors, results the number returned.
	RecordSearch(collection string, k, results int, duration time.Duration, err error)

	// RecordBuild is called after each index build attempt, restores included.
	RecordBuild(collection string, points int, restored bool, duration time.Duration, err error)

	// RecordSimilarity is called after each ComputeSimilarity.
	RecordSimilarity(duration time.Duration, err error)

	// RecordInvalidate is called after each cache invalidation.
	RecordInvalidate(collection string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSearch(string, int, int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordBuild(string, int, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordSimilarity(time.Duration, error)               {}
func (NoopMetricsCollector) RecordInvalidate(string)                             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchResults    atomic.Int64
	SearchTotalNanos atomic.Int64
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildRestored    atomic.Int64
	BuildTotalNanos  atomic.Int64
	SimilarityCount  atomic.Int64
	SimilarityErrors atomic.Int64
	InvalidateCount  atomic.Int64
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ string, _ int, results int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.SearchResults.Add(int64(results))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(_ string, _ int, restored bool, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if restored {
		b.BuildRestored.Add(1)
	}
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordSimilarity implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSimilarity(_ time.Duration, err error) {
	b.SimilarityCount.Add(1)
	if err != nil {
		b.SimilarityErrors.Add(1)
	}
}

// RecordInvalidate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInvalidate(string) {
	b.InvalidateCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		SearchCount:      b.SearchCount.Load(),
		SearchErrors:     b.SearchErrors.Load(),
		SearchResults:    b.SearchResults.Load(),
		SearchAvgNanos:   avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		BuildCount:       b.BuildCount.Load(),
		BuildErrors:      b.BuildErrors.Load(),
		BuildRestored:    b.BuildRestored.Load(),
		BuildAvgNanos:    avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		SimilarityCount:  b.SimilarityCount.Load(),
		SimilarityErrors: b.SimilarityErrors.Load(),
		InvalidateCount:  b.InvalidateCount.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	SearchCount      int64
	SearchErrors     int64
	SearchResults    int64
	SearchAvgNanos   int64
	BuildCount       int64
	BuildErrors      int64
	BuildRestored    int64
	BuildAvgNanos    int64
	SimilarityCount  int64
	SimilarityErrors int64
	InvalidateCount  int64
}
