package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/model"
	"github.com/hupe1980/vecsearch/source/memory"
)

const (
	id1 = "00000000-0000-0000-0000-000000000001"
	id2 = "00000000-0000-0000-0000-000000000002"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memory.New()
	searcher := vecsearch.New(store)
	t.Cleanup(func() { _ = searcher.Close() })

	srv := New(Config{
		Store:    store,
		Searcher: searcher,
		Metrics:  promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

func seed(t *testing.T, ts *httptest.Server) {
	t.Helper()

	status := do(t, ts, http.MethodPost, "/api/v1/collections/docs", CreateCollectionRequest{Size: 3, Distance: "COSINE"}, nil)
	require.Equal(t, http.StatusCreated, status)

	status = do(t, ts, http.MethodPost, "/api/v1/collections/docs/payload", []map[string]any{
		{"id": id1, "content": "x axis", "embedding": []float32{1, 0, 0}, "metadata": map[string]any{"lang": "en"}},
		{"id": id2, "content": "y axis", "embedding": []float32{0, 1, 0}, "metadata": map[string]any{"lang": "de"}},
	}, nil)
	require.Equal(t, http.StatusCreated, status)
}

func TestCollections(t *testing.T) {
	ts := newTestServer(t)
	seed(t, ts)

	var list []model.CollectionConfig
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/api/v1/collections", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, distance.KindCosine, list[0].Distance)

	var got CollectionResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/api/v1/collections/docs", nil, &got))
	assert.Equal(t, 3, got.Size)
	assert.Equal(t, 2, got.VectorsCount)

	assert.Equal(t, http.StatusConflict,
		do(t, ts, http.MethodPost, "/api/v1/collections/docs", CreateCollectionRequest{Size: 3, Distance: "cosine"}, nil))
	assert.Equal(t, http.StatusBadRequest,
		do(t, ts, http.MethodPost, "/api/v1/collections/other", CreateCollectionRequest{Size: 3, Distance: "hamming"}, nil))

	assert.Equal(t, http.StatusOK, do(t, ts, http.MethodDelete, "/api/v1/collections/docs", nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodGet, "/api/v1/collections/docs", nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodDelete, "/api/v1/collections/docs", nil, nil))
}

func TestPayloads(t *testing.T) {
	ts := newTestServer(t)
	seed(t, ts)

	var points []model.Point
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/api/v1/collections/docs/payloads", nil, &points))
	assert.Len(t, points, 2)

	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/api/v1/collections/docs/payloads?lang=de", nil, &points))
	require.Len(t, points, 1)
	assert.Equal(t, "y axis", points[0].Content)

	var errResp ErrorResponse
	status := do(t, ts, http.MethodPost, "/api/v1/collections/docs/payload",
		map[string]any{"content": "short", "embedding": []float32{1}}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errResp.Detail, "dimension mismatch")

	status = do(t, ts, http.MethodPost, "/api/v1/collections/docs/payload",
		map[string]any{"id": id1, "embedding": []float32{1, 1, 1}}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)
	seed(t, ts)

	var resp SearchResponse
	status := do(t, ts, http.MethodPost, "/api/v1/collections/docs/search",
		SearchRequest{QueryVector: []float32{1, 0, 0}, TopK: 2, DistanceType: "Cosine"}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, id1, resp.Results[0].ID.String())
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)
	assert.InDelta(t, 0.5, resp.Results[1].Score, 1e-6)

	// New points are visible because writes invalidate the cached index.
	require.Equal(t, http.StatusCreated, do(t, ts, http.MethodPost, "/api/v1/collections/docs/payload",
		map[string]any{"content": "z axis", "embedding": []float32{0, 0, 1}}, nil))

	status = do(t, ts, http.MethodPost, "/api/v1/collections/docs/search",
		SearchRequest{QueryVector: []float32{0, 0, 1}}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "z axis", resp.Results[0].Content)

	status = do(t, ts, http.MethodPost, "/api/v1/collections/docs/search",
		SearchRequest{QueryVector: []float32{1, 0, 0}, Filter: map[string]any{"lang": "de"}}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, id2, resp.Results[0].ID.String())
}

func TestSearchByID(t *testing.T) {
	ts := newTestServer(t)
	seed(t, ts)

	var resp SearchResponse
	status := do(t, ts, http.MethodPost, "/api/v1/collections/docs/search_by_id",
		SearchByIDRequest{PointID: id2, TopK: 1}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, id2, resp.Results[0].ID.String())

	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodPost, "/api/v1/collections/docs/search_by_id",
		SearchByIDRequest{PointID: "00000000-0000-0000-0000-0000000000ff", TopK: 1}, nil))
	assert.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodPost, "/api/v1/collections/docs/search_by_id",
		SearchByIDRequest{PointID: "not-a-uuid"}, nil))
}

func TestSearchStatusCodes(t *testing.T) {
	ts := newTestServer(t)
	seed(t, ts)

	tests := []struct {
		name string
		path string
		req  SearchRequest
		want int
	}{
		{"MissingCollection", "/api/v1/collections/nope/search", SearchRequest{QueryVector: []float32{1, 0, 0}}, http.StatusNotFound},
		{"EmptyQuery", "/api/v1/collections/docs/search", SearchRequest{}, http.StatusBadRequest},
		{"NegativeTopK", "/api/v1/collections/docs/search", SearchRequest{QueryVector: []float32{1, 0, 0}, TopK: -1}, http.StatusBadRequest},
		{"DimensionMismatch", "/api/v1/collections/docs/search", SearchRequest{QueryVector: []float32{1, 0}}, http.StatusBadRequest},
		{"KindMismatch", "/api/v1/collections/docs/search", SearchRequest{QueryVector: []float32{1, 0, 0}, DistanceType: "dot"}, http.StatusBadRequest},
		{"UnknownKind", "/api/v1/collections/docs/search", SearchRequest{QueryVector: []float32{1, 0, 0}, DistanceType: "hamming"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp ErrorResponse
			assert.Equal(t, tt.want, do(t, ts, http.MethodPost, tt.path, tt.req, &errResp))
			assert.NotEmpty(t, errResp.Detail)
		})
	}
}

func TestSimilarity(t *testing.T) {
	ts := newTestServer(t)

	var resp SimilarityResponse
	status := do(t, ts, http.MethodPost, "/api/v1/similarity",
		SimilarityRequest{VectorA: []float32{1, 2}, VectorB: []float32{3, 4}, Distance: "dot"}, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 11.0, resp.Similarity, 1e-6)

	assert.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodPost, "/api/v1/similarity",
		SimilarityRequest{VectorA: []float32{0, 0}, VectorB: []float32{1, 0}, Distance: "cosine"}, nil))
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]string
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/health", nil, &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
