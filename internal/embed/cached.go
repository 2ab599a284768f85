package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of embeddings kept in memory.
const DefaultCacheSize = 2048

// CachedEmbedder wraps another embedder with an LRU cache keyed by
// content hash and model name. Re-embedding unchanged chunk text after
// an index rebuild becomes a cache hit instead of an API call.
type CachedEmbedder struct {
	inner  Embedder
	cache  *lru.Cache[string, []float32]
	logger *slog.Logger
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with a cache of the given size.
func NewCachedEmbedder(inner Embedder, size int, logger *slog.Logger) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{
		inner:  inner,
		cache:  cache,
		logger: logger.With("component", "embed.cache"),
	}, nil
}

// EmbedBatch serves cached texts from memory and forwards only the
// misses to the wrapped embedder. Reported token usage covers the
// misses only.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) (*Batch, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	result := &Batch{Embeddings: make([][]float32, len(texts))}
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if v, ok := e.cache.Get(e.key(text)); ok {
			result.Embeddings[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return result, nil
	}

	batch, err := e.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		result.Embeddings[i] = batch.Embeddings[j]
		e.cache.Add(e.key(missTexts[j]), batch.Embeddings[j])
	}
	result.TotalTokens = batch.TotalTokens

	e.logger.Debug("embed_cache_batch",
		slog.Int("total", len(texts)),
		slog.Int("misses", len(missTexts)))
	return result, nil
}

// Embed embeds a single text through the cache.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	batch, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return batch.Embeddings[0], nil
}

func (e *CachedEmbedder) Dimensions() int   { return e.inner.Dimensions() }
func (e *CachedEmbedder) ModelName() string { return e.inner.ModelName() }
func (e *CachedEmbedder) Provider() string  { return e.inner.Provider() }

func (e *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.inner.ModelName() + ":" + hex.EncodeToString(sum[:])
}
