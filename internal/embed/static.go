package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// StaticDimensions is the vector length produced by StaticEmbedder.
const StaticDimensions = 256

const (
	staticTokenWeight = 0.7
	staticNgramWeight = 0.3
	staticNgramSize   = 3
)

var staticTokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// StaticEmbedder produces deterministic hash-based embeddings without any
// network or model dependency. Quality is far below a real model, but two
// texts sharing tokens land near each other, which is enough for the
// search pipeline to be exercised offline and in tests.
type StaticEmbedder struct{}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// EmbedBatch embeds all texts. Token usage is estimated from text length.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) (*Batch, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	batch := &Batch{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		batch.Embeddings[i] = v
		batch.TotalTokens += (len(text) + 3) / 4
	}
	return batch, nil
}

// Embed generates a deterministic embedding for text. Empty input yields
// a zero vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, StaticDimensions)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vector, nil
	}

	for _, token := range staticTokenRegex.FindAllString(strings.ToLower(trimmed), -1) {
		vector[hashToIndex(token)] += staticTokenWeight
	}
	for _, ngram := range staticNgrams(strings.ToLower(trimmed)) {
		vector[hashToIndex(ngram)] += staticNgramWeight
	}

	normalizeVector(vector)
	return vector, nil
}

func (e *StaticEmbedder) Dimensions() int   { return StaticDimensions }
func (e *StaticEmbedder) ModelName() string { return "static-hash-v1" }
func (e *StaticEmbedder) Provider() string  { return "static" }

func hashToIndex(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % StaticDimensions)
}

func staticNgrams(text string) []string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) < staticNgramSize {
		return nil
	}
	grams := make([]string, 0, len(runes)-staticNgramSize+1)
	for i := 0; i+staticNgramSize <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+staticNgramSize]))
	}
	return grams
}
