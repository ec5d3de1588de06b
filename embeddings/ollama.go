package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ollamaEmbedder struct {
	host      string
	model     string
	dimension int
	client    *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewOllamaEmbedder(opts Options) Embedder {
	host := strings.TrimRight(opts.OllamaHost, "/")
	if host == "" {
		host = "http://localhost:11434"
	}

	return &ollamaEmbedder{
		host:      host,
		model:     opts.Model,
		dimension: opts.Dimension,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Embed issues one request per text; the Ollama embeddings endpoint takes a
// single prompt at a time. A long corpus batch honors ctx between requests.
func (e *ollamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	url := e.host + "/api/embeddings"

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := json.Marshal(ollamaRequest{Model: e.model, Prompt: text})
		if err != nil {
			return nil, fmt.Errorf("marshal embedding request for text %d: %w", i, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create embedding request for text %d: %w", i, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("call ollama embeddings API: %w", err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("ollama embeddings API returned status %s for text %d", resp.Status, i)
		}

		var payload ollamaResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("decode embedding response for text %d: %w", i, err)
		}
		resp.Body.Close()

		if e.dimension > 0 && len(payload.Embedding) != e.dimension {
			return nil, fmt.Errorf("vector for text %d has dimension %d, want %d", i, len(payload.Embedding), e.dimension)
		}

		vec := make([]float32, len(payload.Embedding))
		for j, value := range payload.Embedding {
			vec[j] = float32(value)
		}
		results = append(results, vec)
	}

	return results, nil
}
