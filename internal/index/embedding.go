package index

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"github.com/Aman-CERP/notesearch/internal/chunk"
	"github.com/Aman-CERP/notesearch/internal/idle"
)

// ProgressFunc reports embedding progress after each batch.
type ProgressFunc func(done, total int)

// BuildEmbeddingIndex embeds every chunk not yet in the vector store.
// A failed batch is logged and skipped so one bad request cannot abort
// the whole backfill; the store is persisted at the end either way.
func (m *Manager) BuildEmbeddingIndex(ctx context.Context, onProgress ProgressFunc) error {
	if m.embedder == nil || m.vectors == nil {
		return ErrNoEmbedder
	}
	if !m.tryBeginIndexing() {
		return ErrIndexing
	}
	defer m.endIndexing()

	pending := m.pendingChunks(0)
	total := len(pending)
	if total == 0 {
		m.logger.Info("embedding_up_to_date")
		return nil
	}

	done := 0
	failed := 0
	for start := 0; start < total; start += m.cfg.EmbedBatchSize {
		if err := ctx.Err(); err != nil {
			return m.finishEmbedding(err)
		}
		end := start + m.cfg.EmbedBatchSize
		if end > total {
			end = total
		}
		batch := pending[start:end]

		if err := m.embedBatch(ctx, batch); err != nil {
			failed += len(batch)
			m.logger.Warn("embed_batch_failed",
				slog.Int("size", len(batch)),
				slog.String("error", err.Error()))
		} else {
			done += len(batch)
		}
		if onProgress != nil {
			onProgress(done, total)
		}
		runtime.Gosched()
	}

	m.logger.Info("embedding_built",
		slog.Int("embedded", done),
		slog.Int("failed", failed),
		slog.Int("tokens_used", m.vectors.TokensUsed()))
	return m.finishEmbedding(nil)
}

func (m *Manager) finishEmbedding(cause error) error {
	if err := m.vectors.Save(); err != nil {
		m.logger.Warn("vector_save_failed", slog.String("error", err.Error()))
		if cause == nil {
			return fmt.Errorf("save vectors: %w", err)
		}
	}
	return cause
}

func (m *Manager) embedBatch(ctx context.Context, chunks []*chunk.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	batch, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	for i, c := range chunks {
		m.vectors.Set(c.ID, batch.Embeddings[i])
	}
	m.vectors.AddTokensUsed(batch.TotalTokens)
	return nil
}

// pendingChunks returns un-embedded chunks, recently edited files
// first, then the rest in deterministic id order. limit <= 0 means all.
func (m *Manager) pendingChunks(limit int) []*chunk.Chunk {
	m.mu.Lock()
	lex := m.lexical
	priority := make(map[string]int, len(m.recentEdits))
	for i, path := range m.recentEdits {
		// Later edits get higher priority.
		priority[path] = i + 1
	}
	m.mu.Unlock()

	var pending []*chunk.Chunk
	for _, c := range lex.Chunks() {
		if !m.vectors.Has(c.ID) {
			pending = append(pending, c)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		pi, pj := priority[pending[i].FilePath], priority[pending[j].FilePath]
		if pi != pj {
			return pi > pj
		}
		return pending[i].ID < pending[j].ID
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}

// RunIdleEmbedding processes small embedding batches whenever the idle
// source signals a quiet period. It returns when ctx is cancelled.
// Foreground builds win: an in-progress build makes the idle pass skip.
func (m *Manager) RunIdleEmbedding(ctx context.Context, src idle.Source) {
	if m.embedder == nil || m.vectors == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-src.Idle():
			if !m.EmbeddingEnabled() {
				continue
			}
			m.embedIdleBatch(ctx)
		}
	}
}

func (m *Manager) embedIdleBatch(ctx context.Context) {
	if !m.tryBeginIndexing() {
		return
	}
	defer m.endIndexing()

	pending := m.pendingChunks(m.cfg.IdleBatchSize)
	if len(pending) == 0 {
		return
	}
	if err := m.embedBatch(ctx, pending); err != nil {
		m.logger.Warn("idle_embed_failed",
			slog.Int("size", len(pending)),
			slog.String("error", err.Error()))
		return
	}
	if err := m.vectors.Save(); err != nil {
		m.logger.Warn("vector_save_failed", slog.String("error", err.Error()))
	}
	m.logger.Debug("idle_embed_batch", slog.Int("size", len(pending)))
}
