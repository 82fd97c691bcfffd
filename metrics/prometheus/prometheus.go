// Package prometheus exports Searcher metrics to a Prometheus registry.
package prometheus

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/vecsearch"
)

// Compile time check to ensure Collector satisfies the vecsearch.MetricsCollector interface.
var _ vecsearch.MetricsCollector = (*Collector)(nil)

// Options configures a Collector.
type Options struct {
	// Namespace prefixes every metric name.
	Namespace string

	// Buckets for the latency histograms.
	Buckets []float64
}

// DefaultOptions contains the default collector configuration.
var DefaultOptions = Options{
	Namespace: "vecsearch",
	Buckets:   prom.DefBuckets,
}

// Collector implements vecsearch.MetricsCollector with Prometheus metrics.
type Collector struct {
	opLatency     *prom.HistogramVec
	searchResults prom.Histogram
	builds        *prom.CounterVec
	invalidations *prom.CounterVec
}

// New creates a Collector and registers its metrics with reg.
func New(reg prom.Registerer, optFns ...func(o *Options)) *Collector {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Collector{
		opLatency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of searcher operations",
			Buckets:   opts.Buckets,
		}, []string{"op", "status"}),
		searchResults: prom.NewHistogram(prom.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search",
			Buckets:   prom.ExponentialBuckets(1, 2, 10),
		}),
		builds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "index_builds_total",
			Help:      "Index builds by origin and status",
		}, []string{"origin", "status"}),
		invalidations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "invalidations_total",
			Help:      "Cache invalidations per collection",
		}, []string{"collection"}),
	}

	reg.MustRegister(c.opLatency, c.searchResults, c.builds, c.invalidations)

	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordSearch implements vecsearch.MetricsCollector.
func (c *Collector) RecordSearch(_ string, _ int, results int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("search", status(err)).Observe(d.Seconds())
	if err == nil {
		c.searchResults.Observe(float64(results))
	}
}

// RecordBuild implements vecsearch.MetricsCollector.
func (c *Collector) RecordBuild(_ string, _ int, restored bool, d time.Duration, err error) {
	origin := "build"
	if restored {
		origin = "snapshot"
	}

	c.opLatency.WithLabelValues("build", status(err)).Observe(d.Seconds())
	c.builds.WithLabelValues(origin, status(err)).Inc()
}

// RecordSimilarity implements vecsearch.MetricsCollector.
func (c *Collector) RecordSimilarity(d time.Duration, err error) {
	c.opLatency.WithLabelValues("similarity", status(err)).Observe(d.Seconds())
}

// RecordInvalidate implements vecsearch.MetricsCollector.
func (c *Collector) RecordInvalidate(collection string) {
	c.invalidations.WithLabelValues(collection).Inc()
}
