package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch/model"
)

const pointsJSONL = `{"id": "9b0c8f4e-51a6-4c7a-9d59-0d0f5a0e9f01", "content": "english", "embedding": [1, 0, 0], "metadata": {"lang": "en"}}
{"id": "9b0c8f4e-51a6-4c7a-9d59-0d0f5a0e9f02", "content": "german", "embedding": [0, 1, 0], "metadata": {"lang": "de"}}

{"content": "no id", "embedding": [0, 0, 1]}
`

// run executes one command against a fresh root, the way separate
// processes would share an on-disk store.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--log-level", "error"))

	err := cmd.Execute()

	return out.String(), err
}

func setup(t *testing.T) []string {
	t.Helper()
	t.Setenv("VECSEARCH_CONFIG", "")

	store := []string{"--store", "sqlite", "--dsn", filepath.Join(t.TempDir(), "vecsearch.db")}

	out, err := run(t, "", append([]string{"collection", "create", "docs", "--size", "3", "--distance", "cosine"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Collection docs created successfully")

	out, err = run(t, pointsJSONL, append([]string{"points", "add", "docs"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "3 payloads added successfully to docs")

	return store
}

func TestCollectionCommands(t *testing.T) {
	store := setup(t)

	out, err := run(t, "", append([]string{"collection", "list"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "docs")
	assert.Contains(t, out, "Cosine")

	out, err = run(t, "", append([]string{"collection", "get", "docs", "-o", "json"}, store...)...)
	require.NoError(t, err)

	var got collectionView
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "docs", got.Name)
	assert.Equal(t, 3, got.Size)
	assert.Equal(t, 3, got.VectorsCount)

	_, err = run(t, "", append([]string{"collection", "create", "docs", "--size", "3"}, store...)...)
	require.Error(t, err)

	_, err = run(t, "", append([]string{"collection", "create", "bad", "--size", "3", "--distance", "hamming"}, store...)...)
	require.Error(t, err)

	out, err = run(t, "", append([]string{"collection", "delete", "docs"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted successfully")

	_, err = run(t, "", append([]string{"collection", "get", "docs"}, store...)...)
	require.Error(t, err)
}

func TestPointsList(t *testing.T) {
	store := setup(t)

	out, err := run(t, "", append([]string{"points", "list", "docs", "--filter", "lang=de", "-o", "json"}, store...)...)
	require.NoError(t, err)

	var got []model.Point
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "german", got[0].Content)

	out, err = run(t, "", append([]string{"points", "list", "docs", "-o", "yaml"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "no id")
}

func TestSearchCommands(t *testing.T) {
	store := setup(t)

	out, err := run(t, "", append([]string{"search", "docs", "--vector", "1,0,0", "-k", "2", "-o", "json"}, store...)...)
	require.NoError(t, err)

	var results []model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "english", results[0].Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.5, results[1].Score, 1e-6)

	out, err = run(t, "", append([]string{"search", "docs", "--vector", "[0, 1, 0]", "--filter", "lang=en"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "english")
	assert.NotContains(t, out, "german")

	out, err = run(t, "", append([]string{"search-by-id", "docs", "9b0c8f4e-51a6-4c7a-9d59-0d0f5a0e9f02", "-k", "1"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "german")

	_, err = run(t, "", append([]string{"search", "docs", "--vector", "1,0"}, store...)...)
	require.Error(t, err)

	_, err = run(t, "", append([]string{"search", "docs", "--vector", "1,0,0", "--distance", "dot"}, store...)...)
	require.Error(t, err)

	_, err = run(t, "", append([]string{"search-by-id", "docs", "not-a-uuid"}, store...)...)
	require.Error(t, err)
}

func TestSimilarityCommand(t *testing.T) {
	out, err := run(t, "", "similarity", "--a", "1,0", "--b", "0,1", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"similarity": 0}`, out)

	out, err = run(t, "", "similarity", "--a", "1,2", "--b", "3,4", "--distance", "dot")
	require.NoError(t, err)
	assert.Equal(t, "11", strings.TrimSpace(out))

	_, err = run(t, "", "similarity", "--a", "1,2", "--b", "3")
	require.Error(t, err)
}

func TestWarmAndSnapshots(t *testing.T) {
	store := setup(t)

	cfgPath := filepath.Join(t.TempDir(), "vecsearch.yaml")
	cfg := "snapshots:\n  driver: local\n  dir: " + filepath.Join(t.TempDir(), "blobs") + "\n  compression: zstd\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	args := append([]string{"--config", cfgPath}, store...)

	out, err := run(t, "", append([]string{"warm", "-o", "json"}, args...)...)
	require.NoError(t, err)
	assert.JSONEq(t, `["docs"]`, out)

	out, err = run(t, "", append([]string{"snapshot", "list", "docs"}, args...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "docs/")
	assert.Contains(t, out, ".snap")

	_, err = run(t, "", append([]string{"snapshot", "delete", "docs"}, args...)...)
	require.NoError(t, err)

	out, err = run(t, "", append([]string{"snapshot", "list", "docs", "-o", "json"}, args...)...)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)

	_, err = run(t, "", append([]string{"snapshot", "list", "docs"}, store...)...)
	require.ErrorIs(t, err, errNoSnapshots)
}

func TestParseVector(t *testing.T) {
	tests := []struct {
		in      string
		want    []float32
		wantErr bool
	}{
		{in: "1,0,0", want: []float32{1, 0, 0}},
		{in: "[0.5, -1]", want: []float32{0.5, -1}},
		{in: "", wantErr: true},
		{in: "1,x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseVector(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFilters(t *testing.T) {
	got, err := parseFilters([]string{"lang=en", "year=2024", "draft=false", "title=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lang": "en", "year": float64(2024), "draft": false, "title": "a=b"}, got)

	_, err = parseFilters([]string{"novalue"})
	require.Error(t, err)
}
