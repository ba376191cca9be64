package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codemem/codemem-mcp/pkg/types"
)

func ollamaHandler(t *testing.T, fn func(prompt string, w http.ResponseWriter)) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fn(req.Prompt, w)
	}
}

func writeEmbedding(w http.ResponseWriter, vec []float64) {
	_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec})
}

func TestOllamaEmbedBatch_NormalizesVectors(t *testing.T) {
	srv := httptest.NewServer(ollamaHandler(t, func(prompt string, w http.ResponseWriter) {
		writeEmbedding(w, []float64{3, 4})
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, Dimensions: 2}, zap.NewNop())
	vectors, err := p.EmbedBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.InDelta(t, 0.6, vectors[0][0], 1e-6)
	assert.InDelta(t, 0.8, vectors[0][1], 1e-6)
}

func TestOllamaEmbedBatch_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(ollamaHandler(t, func(prompt string, w http.ResponseWriter) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		writeEmbedding(w, []float64{1, 0})
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, Dimensions: 2}, zap.NewNop())
	vectors, err := p.EmbedBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOllamaEmbedBatch_StructuralFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(ollamaHandler(t, func(prompt string, w http.ResponseWriter) {
		calls.Add(1)
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, Dimensions: 2}, zap.NewNop())
	_, err := p.EmbedBatch(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOllamaEmbedBatch_FailureIsBatchAtomic(t *testing.T) {
	srv := httptest.NewServer(ollamaHandler(t, func(prompt string, w http.ResponseWriter) {
		if prompt == "bad" {
			http.Error(w, "no such model", http.StatusBadRequest)
			return
		}
		writeEmbedding(w, []float64{1, 0})
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, Dimensions: 2}, zap.NewNop())
	vectors, err := p.EmbedBatch(context.Background(), []string{"good", "bad", "also good"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedFailed)
	assert.Nil(t, vectors, "failed batch must not return partial vectors")
}

func TestOllamaEmbedBatch_RejectsOversizedBatch(t *testing.T) {
	p := NewOllamaProvider(OllamaConfig{Dimensions: 2}, zap.NewNop())
	_, err := p.EmbedBatch(context.Background(), make96plus())
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestOllamaDefaults(t *testing.T) {
	p := NewOllamaProvider(OllamaConfig{}, zap.NewNop())
	assert.Equal(t, DefaultOllamaModel, p.Model())
	assert.Equal(t, DefaultOllamaDimensions, p.Dimensions())
}

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL}, zap.NewNop())
	assert.NoError(t, p.Ping(context.Background()))
}

func make96plus() []string {
	out := make([]string, MaxBatchSize+1)
	for i := range out {
		out[i] = "text"
	}
	return out
}
