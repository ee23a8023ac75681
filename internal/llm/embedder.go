package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// maxEmbedContent bounds the text sent to the embedding model.
const maxEmbedContent = 8000

// Embedder generates fixed-length vectors for article and query text.
type Embedder struct {
	client *openai.Client
	model  string
}

// NewEmbedder creates an Embedder using the given client and model name.
func NewEmbedder(client *openai.Client, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

// Embed returns the embedding vector for text, truncated to the model's
// input budget. An empty vector from the provider is an error: callers treat
// embedding as best-effort and must be able to tell success from garbage.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxEmbedContent {
		text = text[:maxEmbedContent]
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			if rl := asRateLimit(apiErr); rl != nil {
				return nil, rl
			}
		}
		return nil, fmt.Errorf("embedding request: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}
	return resp.Data[0].Embedding, nil
}
