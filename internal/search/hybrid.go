package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/notesearch/internal/embed"
	"github.com/Aman-CERP/notesearch/internal/lexical"
	"github.com/Aman-CERP/notesearch/internal/vector"
)

// HybridSearcher runs lexical and vector searches concurrently and
// fuses the two rankings with RRF. When the semantic leg fails or is
// unavailable, the lexical ranking is returned on its own.
type HybridSearcher struct {
	lexical  *lexical.Index
	vectors  *vector.Store
	embedder embed.Embedder
	logger   *slog.Logger
}

// NewHybridSearcher builds a searcher over the given engines.
func NewHybridSearcher(lex *lexical.Index, vec *vector.Store, embedder embed.Embedder, logger *slog.Logger) *HybridSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridSearcher{
		lexical:  lex,
		vectors:  vec,
		embedder: embedder,
		logger:   logger.With("component", "search.hybrid"),
	}
}

// Search returns the top fused results for query. Each leg retrieves
// 2*topK candidates so fusion has overlap to work with. minScore
// filters the lexical leg only; fused RRF scores live on a different
// scale.
func (h *HybridSearcher) Search(ctx context.Context, query string, topK int, minScore float64) ([]*Result, error) {
	if topK <= 0 {
		return []*Result{}, nil
	}
	fetch := topK * 2

	lexResults, vecResults, err := h.runLegs(ctx, query, fetch, minScore)
	if err != nil {
		return nil, err
	}

	// Fusion only makes sense with two rankings. When the semantic leg
	// produced nothing the lexical cosine scores pass through untouched.
	var results []*Result
	if len(vecResults) == 0 {
		results = lexicalOnly(lexResults)
	} else {
		results = h.fuse(lexResults, vecResults)
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func lexicalOnly(lexResults []*lexical.Result) []*Result {
	results := make([]*Result, 0, len(lexResults))
	for _, r := range lexResults {
		results = append(results, &Result{
			Chunk:     r.Chunk,
			Score:     r.Score,
			MatchType: MatchLexical,
		})
	}
	return results
}

// runLegs executes both searches concurrently. A semantic leg failure
// degrades to lexical-only; a context cancellation aborts both.
func (h *HybridSearcher) runLegs(ctx context.Context, query string, limit int, minScore float64) ([]*lexical.Result, []*vector.Result, error) {
	g, gctx := errgroup.WithContext(ctx)

	var lexResults []*lexical.Result
	var vecResults []*vector.Result
	var vecErr error

	g.Go(func() error {
		lexResults = h.lexical.Search(query, limit, minScore)
		return gctx.Err()
	})

	g.Go(func() error {
		if h.embedder == nil || h.vectors == nil {
			return nil
		}
		embedding, err := h.embedder.Embed(gctx, query)
		if err != nil {
			vecErr = fmt.Errorf("embed query: %w", err)
			return nil
		}
		vecResults, err = h.vectors.Search(gctx, embedding, limit)
		if err != nil {
			vecErr = fmt.Errorf("vector search: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if vecErr != nil {
		h.logger.Warn("semantic_leg_failed", slog.String("error", vecErr.Error()))
		vecResults = nil
	}
	return lexResults, vecResults, nil
}

type fusedEntry struct {
	id    string
	score float64
	inLex bool
	inVec bool
}

// fuse combines both rankings: each document scores 1/(k+r+1) per list
// it appears in, where r is its zero-based rank in that list.
func (h *HybridSearcher) fuse(lexResults []*lexical.Result, vecResults []*vector.Result) []*Result {
	entries := make(map[string]*fusedEntry, len(lexResults)+len(vecResults))

	for rank, r := range lexResults {
		id := r.Chunk.ID
		e := entries[id]
		if e == nil {
			e = &fusedEntry{id: id}
			entries[id] = e
		}
		e.inLex = true
		e.score += 1.0 / float64(RRFConstant+rank+1)
	}
	for rank, r := range vecResults {
		e := entries[r.ID]
		if e == nil {
			e = &fusedEntry{id: r.ID}
			entries[r.ID] = e
		}
		e.inVec = true
		e.score += 1.0 / float64(RRFConstant+rank+1)
	}

	results := make([]*Result, 0, len(entries))
	for _, e := range entries {
		c := h.lexical.Chunk(e.id)
		if c == nil {
			// Vector hit for a chunk the index no longer holds.
			continue
		}
		results = append(results, &Result{
			Chunk:     c,
			Score:     e.score,
			MatchType: matchType(e),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	return results
}

func matchType(e *fusedEntry) MatchType {
	switch {
	case e.inLex && e.inVec:
		return MatchHybrid
	case e.inVec:
		return MatchSemantic
	default:
		return MatchLexical
	}
}
