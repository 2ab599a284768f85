package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/notesearch/internal/embed"
	"github.com/Aman-CERP/notesearch/internal/search"
)

type brokenEmbedder struct {
	embed.Embedder
}

func (b *brokenEmbedder) EmbedBatch(context.Context, []string) (*embed.Batch, error) {
	return nil, errors.New("provider down")
}

func (b *brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider down")
}

func TestBuildEmbeddingIndexEmbedsAllChunks(t *testing.T) {
	f := newFixture(t, Config{}, embed.NewStaticEmbedder())
	f.write(t, "a.md", "alpha notes about planning")
	f.write(t, "b.md", "beta notes about reviews")
	require.NoError(t, f.manager.BuildIndex(context.Background()))

	var lastDone, lastTotal int
	err := f.manager.BuildEmbeddingIndex(context.Background(), func(done, total int) {
		lastDone, lastTotal = done, total
	})
	require.NoError(t, err)

	s := f.manager.Stats()
	assert.Equal(t, 2, s.Vectors)
	assert.Positive(t, s.TokensUsed)
	assert.Equal(t, 2, lastDone)
	assert.Equal(t, 2, lastTotal)
	assert.False(t, s.UnsavedData, "backfill must persist at the end")
}

func TestBuildEmbeddingIndexSkipsAlreadyEmbedded(t *testing.T) {
	f := newFixture(t, Config{}, embed.NewStaticEmbedder())
	f.write(t, "a.md", "some content")
	require.NoError(t, f.manager.BuildIndex(context.Background()))
	require.NoError(t, f.manager.BuildEmbeddingIndex(context.Background(), nil))

	tokens := f.manager.Stats().TokensUsed
	require.NoError(t, f.manager.BuildEmbeddingIndex(context.Background(), nil))
	assert.Equal(t, tokens, f.manager.Stats().TokensUsed, "second run finds nothing to embed")
}

func TestBuildEmbeddingIndexSurvivesFailedBatches(t *testing.T) {
	f := newFixture(t, Config{}, &brokenEmbedder{Embedder: embed.NewStaticEmbedder()})
	f.write(t, "a.md", "content one")
	f.write(t, "b.md", "content two")
	require.NoError(t, f.manager.BuildIndex(context.Background()))

	err := f.manager.BuildEmbeddingIndex(context.Background(), nil)
	require.NoError(t, err, "failed batches are logged, not fatal")
	assert.Zero(t, f.manager.Stats().Vectors)
}

func TestBuildEmbeddingIndexWithoutEmbedder(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	assert.ErrorIs(t, f.manager.BuildEmbeddingIndex(context.Background(), nil), ErrNoEmbedder)
}

func TestBuildEmbeddingIndexBlockedWhileIndexing(t *testing.T) {
	f := newFixture(t, Config{}, embed.NewStaticEmbedder())
	require.True(t, f.manager.tryBeginIndexing())
	defer f.manager.endIndexing()

	assert.ErrorIs(t, f.manager.BuildEmbeddingIndex(context.Background(), nil), ErrIndexing)
}

func TestHybridSearchAfterEmbedding(t *testing.T) {
	f := newFixture(t, Config{}, embed.NewStaticEmbedder())
	f.write(t, "plan.md", "quarterly project planning meeting agenda")
	f.write(t, "bread.md", "banana bread recipe with walnuts")
	require.NoError(t, f.manager.BuildIndex(context.Background()))
	require.NoError(t, f.manager.BuildEmbeddingIndex(context.Background(), nil))

	f.manager.SetEmbeddingEnabled(true)
	results := f.manager.Search(context.Background(), "project planning meeting", SearchOptions{TopK: 5})
	require.NotEmpty(t, results)
	assert.Equal(t, "plan.md", results[0].Chunk.FilePath)
	assert.Equal(t, search.MatchHybrid, results[0].MatchType)

	f.manager.SetEmbeddingEnabled(false)
	results = f.manager.Search(context.Background(), "project planning meeting", SearchOptions{TopK: 5})
	require.NotEmpty(t, results)
	assert.Equal(t, search.MatchLexical, results[0].MatchType)
}

func TestHybridFailureFallsBackToLexical(t *testing.T) {
	static := embed.NewStaticEmbedder()
	f := newFixture(t, Config{}, static)
	f.write(t, "plan.md", "project planning meeting")
	require.NoError(t, f.manager.BuildIndex(context.Background()))
	require.NoError(t, f.manager.BuildEmbeddingIndex(context.Background(), nil))

	// Swap in a provider that fails at query time.
	f.manager.embedder = &brokenEmbedder{Embedder: static}
	f.manager.SetEmbeddingEnabled(true)

	results := f.manager.Search(context.Background(), "project planning", SearchOptions{TopK: 5})
	require.NotEmpty(t, results)
	assert.Equal(t, search.MatchLexical, results[0].MatchType)
}

func TestPendingChunksPrioritizesRecentEdits(t *testing.T) {
	f := newFixture(t, Config{}, embed.NewStaticEmbedder())
	f.write(t, "a.md", "first file")
	f.write(t, "b.md", "second file")
	f.write(t, "c.md", "third file")
	require.NoError(t, f.manager.BuildIndex(context.Background()))

	f.write(t, "c.md", "third file edited")
	require.NoError(t, f.manager.UpdateFile(context.Background(), "c.md"))
	f.write(t, "b.md", "second file edited")
	require.NoError(t, f.manager.UpdateFile(context.Background(), "b.md"))

	pending := f.manager.pendingChunks(0)
	require.Len(t, pending, 3)
	assert.Equal(t, "b.md", pending[0].FilePath, "latest edit first")
	assert.Equal(t, "c.md", pending[1].FilePath)
	assert.Equal(t, "a.md", pending[2].FilePath)

	limited := f.manager.pendingChunks(2)
	assert.Len(t, limited, 2)
}

func TestIdleBatchEmbedsSmallSlice(t *testing.T) {
	f := newFixture(t, Config{IdleBatchSize: 1}, embed.NewStaticEmbedder())
	f.write(t, "a.md", "alpha")
	f.write(t, "b.md", "beta")
	require.NoError(t, f.manager.BuildIndex(context.Background()))
	f.manager.SetEmbeddingEnabled(true)

	f.manager.embedIdleBatch(context.Background())
	assert.Equal(t, 1, f.manager.Stats().Vectors)

	f.manager.embedIdleBatch(context.Background())
	assert.Equal(t, 2, f.manager.Stats().Vectors)
}

func TestIdleBatchSkipsWhileIndexing(t *testing.T) {
	f := newFixture(t, Config{}, embed.NewStaticEmbedder())
	f.write(t, "a.md", "alpha")
	require.NoError(t, f.manager.BuildIndex(context.Background()))

	require.True(t, f.manager.tryBeginIndexing())
	f.manager.embedIdleBatch(context.Background())
	f.manager.endIndexing()

	assert.Zero(t, f.manager.Stats().Vectors)
}

func TestExecuteToolSearch(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.write(t, "notes/plan.md", "# Roadmap\n\nquarterly planning details")
	require.NoError(t, f.manager.BuildIndex(context.Background()))

	out := f.manager.ExecuteToolSearch(context.Background(), "quarterly planning", 5)
	assert.Contains(t, out, "### [[plan]]")
	assert.Contains(t, out, "Roadmap")
	assert.Contains(t, out, "notes/plan.md")

	out = f.manager.ExecuteToolSearch(context.Background(), "nonexistent gibberish zzz", 5)
	assert.Contains(t, out, "No results found")
}
