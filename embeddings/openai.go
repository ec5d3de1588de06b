package embeddings

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openAIEmbedder embeds a whole corpus batch in one request. The configured
// dimension is forwarded for models that accept shortened outputs, and every
// returned vector is validated against it, so a corpus_chunks schema mismatch
// surfaces here instead of at insert time.
type openAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

func NewOpenAIEmbedder(opts Options) Embedder {
	cfg := openai.DefaultConfig(opts.OpenAIAPIKey)
	if opts.OpenAIBaseURL != "" {
		cfg.BaseURL = opts.OpenAIBaseURL
	}

	return &openAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		model:     opts.Model,
		dimension: opts.Dimension,
	}
}

// requestDimensions returns the dimension to request from the API, or zero to
// omit it. Only the text-embedding-3 family accepts the parameter; older
// models reject requests that carry it.
func (e *openAIEmbedder) requestDimensions() int {
	if e.dimension > 0 && strings.HasPrefix(e.model, "text-embedding-3") {
		return e.dimension
	}
	return 0
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.requestDimensions(),
	})
	if err != nil {
		return nil, fmt.Errorf("embed %d texts with %s: %w", len(texts), e.model, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(resp.Data))
	}

	// Place vectors by the index the API reports rather than response order.
	results := make([][]float32, len(texts))
	for _, datum := range resp.Data {
		if datum.Index < 0 || datum.Index >= len(results) {
			return nil, fmt.Errorf("embedding index %d out of range for %d texts", datum.Index, len(texts))
		}
		if e.dimension > 0 && len(datum.Embedding) != e.dimension {
			return nil, fmt.Errorf("vector for text %d has dimension %d, want %d", datum.Index, len(datum.Embedding), e.dimension)
		}
		results[datum.Index] = datum.Embedding
	}
	return results, nil
}
