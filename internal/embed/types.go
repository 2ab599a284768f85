// Package embed defines the embedding provider abstraction used by the
// semantic half of the search pipeline. Providers turn chunk text into
// dense vectors; callers never see provider specifics beyond the model
// name and dimension count recorded in the vector store metadata.
package embed

import (
	"context"
	"errors"
	"math"
)

// Batch carries the result of embedding a slice of texts in one call.
type Batch struct {
	Embeddings  [][]float32
	TotalTokens int
}

// Embedder produces embedding vectors for text.
type Embedder interface {
	// EmbedBatch embeds all texts in order. The returned batch has one
	// embedding per input text.
	EmbedBatch(ctx context.Context, texts []string) (*Batch, error)

	// Embed embeds a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector length this embedder produces.
	Dimensions() int

	// ModelName returns the model identifier recorded alongside vectors.
	ModelName() string

	// Provider returns the provider identifier (e.g. "openai", "static").
	Provider() string
}

// ErrEmptyInput is returned when an embed call receives no text.
var ErrEmptyInput = errors.New("embed: empty input")

// normalizeVector scales v to unit length in place. Zero vectors are
// left untouched.
func normalizeVector(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
