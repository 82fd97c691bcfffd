package prometheus

import (
	"context"
	"errors"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/source/memory"
	"github.com/hupe1980/vecsearch/source/sourcetest"
)

func TestCollector(t *testing.T) {
	reg := prom.NewRegistry()
	c := New(reg)

	c.RecordSearch("docs", 5, 3, time.Millisecond, nil)
	c.RecordSearch("docs", 5, 0, time.Millisecond, errors.New("boom"))
	c.RecordBuild("docs", 10, false, time.Second, nil)
	c.RecordBuild("docs", 10, true, time.Second, nil)
	c.RecordBuild("docs", 10, false, time.Second, errors.New("boom"))
	c.RecordSimilarity(time.Microsecond, nil)
	c.RecordInvalidate("docs")
	c.RecordInvalidate("docs")

	assert.InDelta(t, 1, testutil.ToFloat64(c.builds.WithLabelValues("build", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.builds.WithLabelValues("snapshot", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.builds.WithLabelValues("build", "error")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.invalidations.WithLabelValues("docs")), 0)

	// op/status series: search×2, build×2, similarity×1.
	assert.Equal(t, 5, testutil.CollectAndCount(c.opLatency))
}

func TestCollectorWithSearcher(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.CreateCollection(ctx, sourcetest.Config("docs")))
	require.NoError(t, store.AddPoints(ctx, "docs", sourcetest.Points()))

	reg := prom.NewRegistry()
	c := New(reg, func(o *Options) { o.Namespace = "test" })

	s := vecsearch.New(store, vecsearch.WithMetricsCollector(c))
	defer s.Close()

	_, err := s.SearchByVector(ctx, "docs", []float32{1, 0, 0}, 2, distance.KindUnspecified)
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(c.builds.WithLabelValues("build", "success")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}

	assert.Contains(t, names, "test_operation_latency_seconds")
	assert.Contains(t, names, "test_index_builds_total")
}
