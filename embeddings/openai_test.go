package embeddings_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fabfab/profai/embeddings"
)

type embeddingsBackend struct {
	vectors      [][]float32
	lastRequest  map[string]any
	reverseOrder bool
}

func (b *embeddingsBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = json.NewDecoder(r.Body).Decode(&b.lastRequest)

	type datum struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]datum, 0, len(b.vectors))
	for i, vec := range b.vectors {
		data = append(data, datum{Embedding: vec, Index: i})
	}
	if b.reverseOrder {
		for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
			data[i], data[j] = data[j], data[i]
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func newOpenAIEmbedder(t *testing.T, backend *embeddingsBackend, model string, dimension int) embeddings.Embedder {
	t.Helper()
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	return embeddings.NewOpenAIEmbedder(embeddings.Options{
		Provider:      "openai",
		Model:         model,
		Dimension:     dimension,
		OpenAIAPIKey:  "test-key",
		OpenAIBaseURL: server.URL + "/v1",
	})
}

func TestOpenAIEmbedderOrdersVectorsByIndex(t *testing.T) {
	backend := &embeddingsBackend{
		vectors:      [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		reverseOrder: true,
	}
	embedder := newOpenAIEmbedder(t, backend, "text-embedding-3-small", 2)

	vecs, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	if vecs[0][0] != 0.1 || vecs[1][0] != 0.3 {
		t.Fatalf("vectors not placed by reported index: %v", vecs)
	}
}

func TestOpenAIEmbedderRejectsDimensionMismatch(t *testing.T) {
	backend := &embeddingsBackend{vectors: [][]float32{{0.1, 0.2}}}
	embedder := newOpenAIEmbedder(t, backend, "text-embedding-3-small", 3)

	if _, err := embedder.Embed(context.Background(), []string{"hello"}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestOpenAIEmbedderRequestsConfiguredDimension(t *testing.T) {
	backend := &embeddingsBackend{vectors: [][]float32{{0.1, 0.2}}}
	embedder := newOpenAIEmbedder(t, backend, "text-embedding-3-small", 2)

	if _, err := embedder.Embed(context.Background(), []string{"hello"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := backend.lastRequest["dimensions"].(float64); !ok || got != 2 {
		t.Fatalf("request dimensions = %v, want 2", backend.lastRequest["dimensions"])
	}

	// Models outside the text-embedding-3 family must not receive the
	// parameter at all.
	backend = &embeddingsBackend{vectors: [][]float32{{0.1, 0.2}}}
	embedder = newOpenAIEmbedder(t, backend, "text-embedding-ada-002", 2)

	if _, err := embedder.Embed(context.Background(), []string{"hello"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, present := backend.lastRequest["dimensions"]; present {
		t.Fatalf("dimensions sent for a model that rejects it: %v", backend.lastRequest)
	}
}

func TestOpenAIEmbedderEmptyBatch(t *testing.T) {
	backend := &embeddingsBackend{}
	embedder := newOpenAIEmbedder(t, backend, "text-embedding-3-small", 2)

	vecs, err := embedder.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 0 {
		t.Fatalf("expected no vectors, got %v", vecs)
	}
}
