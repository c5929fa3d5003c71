package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeaviateHybridSearch(t *testing.T) {
	var query struct {
		Query string `json:"query"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/meta":
			_, _ = w.Write([]byte(`{"version":"1.35.2"}`))
		case "/v1/graphql":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&query))
			_, _ = w.Write([]byte(`{"data":{"Get":{"RegulationChunk":[
				{"text":"Advisers must disclose fees","docId":"ia-2013","clauseId":"15","chunkId":"ia-2013-7","_additional":{"score":"0.82"}}
			]}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	b, err := NewWeaviateBackend(WeaviateConfig{URL: srv.URL})
	require.NoError(t, err)

	rules, err := b.HybridSearch(context.Background(), "fee disclosure", []float64{0.1, 0.2}, 3)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "Advisers must disclose fees", rules[0].RuleText)
	assert.Equal(t, "ia-2013-7", rules[0].Metadata.ChunkID)
	assert.InDelta(t, 0.82, rules[0].Metadata.RelevanceScore, 1e-9)
	assert.Contains(t, query.Query, "RegulationChunk")
	assert.Contains(t, query.Query, "hybrid")
}

func TestChunkUUIDIsStable(t *testing.T) {
	assert.Equal(t, chunkUUID("a"), chunkUUID("a"))
	assert.NotEqual(t, chunkUUID("a"), chunkUUID("b"))
}

func TestNumberField(t *testing.T) {
	assert.Equal(t, 1.5, numberField(1.5))
	assert.Equal(t, 0.25, numberField("0.25"))
	assert.Zero(t, numberField("n/a"))
	assert.Zero(t, numberField(nil))
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{0.5, 1}, toFloat32([]float64{0.5, 1}))
}
