// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingProvider converts text into vectors comparable by cosine similarity.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-ada-002)
//   - OpenAI-compatible servers via a custom base URL
//   - A local deterministic hashing embedder
type EmbeddingProvider interface {
	// EmbedBatch returns one embedding per input text, in input order.
	// Implementations must be deterministic enough that identical text
	// scores at or above the identity threshold against itself.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 256, 1536).
	// This must match the MatchIndex configuration.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}
