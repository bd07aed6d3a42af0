// Package rag implements the semantic search index over the message
// corpus: embedding computation, an exact nearest-neighbor index with a
// persistent cache, and retrieval helpers for the question generator.
package rag

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// maxEmbedChars caps text sent to the embedding API. Chunks are far
// smaller in practice; the cap guards against pathological exports.
const maxEmbedChars = 8000

// Embedder computes embedding vectors for texts.
type Embedder interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one embedding per input text, in order, using
	// a single provider call. Callers are responsible for keeping the
	// batch within provider limits.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model identifies the embedding model.
	Model() string

	// Dimension is the vector size the model produces.
	Dimension() int
}

// OpenAIEmbedder implements Embedder with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIEmbedder creates an embedder for the given model.
func NewOpenAIEmbedder(client *openai.Client, model string, dim int) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: model, dim: dim}
}

// Model identifies the embedding model.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Dimension is the vector size the model produces.
func (e *OpenAIEmbedder) Dimension() int { return e.dim }

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds up to one provider batch of texts.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = truncate(t, maxEmbedChars)
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: truncated,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		if len(item.Embedding) != e.dim {
			return nil, fmt.Errorf("embedding dimension %d, expected %d", len(item.Embedding), e.dim)
		}
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
