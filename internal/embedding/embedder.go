// Package embedding provides text embedding services for semantic search
// over session memory and extracted patterns.
//
// Ported from legacy pkg/embedder/pkg/embedders for use in the backplane.
package embedding

import "context"

// Embedder produces vector embeddings from text.
//
// Different providers (OpenAI, Ollama) implement this interface; the
// Gateway wraps whichever one is configured with truncation, normalization,
// rate limiting, and graceful degradation.
type Embedder interface {
	// Embed converts text to a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to vector embeddings, preserving
	// input order in the result slice.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// Model returns the model name being used.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}
