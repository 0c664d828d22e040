// Package embeddings provides text-embedding backends for semantic schema
// search.
package embeddings

import "context"

// Embedder turns texts into fixed-width vectors.
type Embedder interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the vector width this embedder produces.
	Dimensions() int
	// Name identifies the backing model.
	Name() string
}
