// Package index orchestrates the indexing lifecycle: full and
// incremental builds, cache restore, embedding backfill, and query
// routing between the lexical and hybrid search paths.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/notesearch/internal/chunk"
	"github.com/Aman-CERP/notesearch/internal/embed"
	"github.com/Aman-CERP/notesearch/internal/keyvalue"
	"github.com/Aman-CERP/notesearch/internal/lexical"
	"github.com/Aman-CERP/notesearch/internal/proximity"
	"github.com/Aman-CERP/notesearch/internal/search"
	"github.com/Aman-CERP/notesearch/internal/source"
	"github.com/Aman-CERP/notesearch/internal/vector"
)

const (
	// CacheVersion invalidates persisted index caches on format changes.
	CacheVersion = 1

	cacheKey = "index-cache.json"

	// DefaultEmbedBatchSize is the foreground embedding batch size.
	DefaultEmbedBatchSize = 100

	// DefaultIdleBatchSize is the background embedding mini-batch size.
	DefaultIdleBatchSize = 10

	// DefaultDebounceDelay coalesces rapid file-change notifications.
	DefaultDebounceDelay = 500 * time.Millisecond

	// DefaultToolTopK caps result counts on the assistant-facing surface.
	DefaultToolTopK = 10
)

var (
	// ErrCacheInvalid signals that a persisted cache cannot be restored
	// and a full rebuild is required.
	ErrCacheInvalid = errors.New("index: cache invalid")

	// ErrIndexing is returned when a build is already in progress.
	ErrIndexing = errors.New("index: build already in progress")

	// ErrNoEmbedder is returned when embedding work is requested without
	// a configured provider.
	ErrNoEmbedder = errors.New("index: no embedding provider configured")
)

// Config holds the Manager's tunables.
type Config struct {
	ChunkStrategy    chunk.Strategy
	ChunkMaxTokens   int
	ExcludeFolders   []string
	EmbedBatchSize   int
	IdleBatchSize    int
	DebounceDelay    time.Duration
	ProximityEnabled bool
	BoostFactor      float64
}

func (c *Config) applyDefaults() {
	if !c.ChunkStrategy.Valid() {
		c.ChunkStrategy = chunk.StrategySection
	}
	if c.ChunkMaxTokens <= 0 {
		c.ChunkMaxTokens = chunk.DefaultMaxTokens
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if c.IdleBatchSize <= 0 {
		c.IdleBatchSize = DefaultIdleBatchSize
	}
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = DefaultDebounceDelay
	}
}

// SearchOptions tune a single query.
type SearchOptions struct {
	TopK       int
	MinScore   float64
	AnchorPath string // proximity anchor, empty disables boosting
}

// Stats summarizes index state for status surfaces.
type Stats struct {
	Built       bool
	Files       int
	Chunks      int
	Vectors     int
	TokensUsed  int
	Embedding   bool
	UnsavedData bool
}

type fileCacheEntry struct {
	Hash   string         `json:"hash"`
	Chunks []*chunk.Chunk `json:"chunks"`
}

type indexCache struct {
	Version        int                       `json:"version"`
	ChunkStrategy  string                    `json:"chunkStrategy"`
	ChunkMaxTokens int                       `json:"chunkMaxTokens"`
	ExcludeFolders []string                  `json:"excludeFolders"`
	Files          map[string]fileCacheEntry `json:"files"`
}

// Manager ties the chunker, both search engines, the proximity graph,
// and persistence together behind a single lifecycle.
type Manager struct {
	cfg      Config
	src      *source.Source
	chunker  *chunk.Chunker
	vectors  *vector.Store
	embedder embed.Embedder
	scorer   *proximity.Scorer
	kv       *keyvalue.Store
	logger   *slog.Logger

	mu               sync.Mutex
	lexical          *lexical.Index
	built            bool
	indexing         bool
	embeddingEnabled bool
	fileHashes       map[string]string
	recentEdits      []string // paths in edit order, oldest first
	timers           map[string]*time.Timer
	closed           bool
}

// New creates a Manager. embedder may be nil for a lexical-only setup.
func New(cfg Config, src *source.Source, vectors *vector.Store, embedder embed.Embedder, kv *keyvalue.Store, logger *slog.Logger) *Manager {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:        cfg,
		src:        src,
		chunker:    chunk.New(),
		vectors:    vectors,
		embedder:   embedder,
		scorer:     proximity.NewScorer(logger),
		kv:         kv,
		logger:     logger.With("component", "index.manager"),
		lexical:    lexical.NewIndex(),
		fileHashes: make(map[string]string),
		timers:     make(map[string]*time.Timer),
	}
}

// SetEmbeddingEnabled toggles all vector-related behavior.
func (m *Manager) SetEmbeddingEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddingEnabled = enabled
}

// EmbeddingEnabled reports the vector-path gate.
func (m *Manager) EmbeddingEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embeddingEnabled
}

// Built reports whether a usable index exists.
func (m *Manager) Built() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.built
}

// ProximityScorer exposes the link graph for callers that feed it
// directly.
func (m *Manager) ProximityScorer() *proximity.Scorer { return m.scorer }

func (m *Manager) tryBeginIndexing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexing {
		return false
	}
	m.indexing = true
	return true
}

func (m *Manager) endIndexing() {
	m.mu.Lock()
	m.indexing = false
	m.mu.Unlock()
}

// BuildIndex re-chunks every eligible document from scratch. The new
// index replaces the old one in a single swap, so a failed build leaves
// the previous state visible.
func (m *Manager) BuildIndex(ctx context.Context) error {
	if !m.tryBeginIndexing() {
		return ErrIndexing
	}
	defer m.endIndexing()

	start := time.Now()
	files, err := m.src.ListDocuments()
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	newIndex := lexical.NewIndex()
	newHashes := make(map[string]string, len(files))
	docs := make([]proximity.Document, 0, len(files))

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		content, readErr := m.src.ReadCached(f.Path)
		if readErr != nil {
			m.logger.Warn("read_failed",
				slog.String("path", f.Path),
				slog.String("error", readErr.Error()))
			continue
		}
		chunks := m.chunker.Split(f.Path, f.Name, content, m.cfg.ChunkStrategy, m.cfg.ChunkMaxTokens)
		newIndex.AddChunks(chunks)
		newHashes[f.Path] = source.HashContent(content)
		docs = append(docs, proximity.Document{Path: f.Path, Content: content, ModTime: f.ModTime})
		runtime.Gosched()
	}

	m.mu.Lock()
	oldHashes := m.fileHashes
	m.lexical = newIndex
	m.fileHashes = newHashes
	m.built = true
	m.mu.Unlock()

	// Only vectors for files whose content hash matches what this
	// session already indexed are known to describe current chunks.
	// Everything else, including vectors persisted by a previous
	// process, is stale after a full re-chunk.
	if m.vectors != nil {
		for _, path := range m.vectors.Files() {
			oldHash, ok := oldHashes[path]
			if !ok || newHashes[path] != oldHash {
				m.vectors.RemoveByFile(path)
			}
		}
	}
	m.scorer.BuildGraph(docs)

	m.logger.Info("index_built",
		slog.Int("files", len(newHashes)),
		slog.Int("chunks", newIndex.DocCount()),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// BuildIndexFromCache restores from a saved cache, re-chunking only
// files whose content hash changed. A version or chunking-config
// mismatch returns ErrCacheInvalid so the caller falls back to
// BuildIndex.
func (m *Manager) BuildIndexFromCache(ctx context.Context) error {
	if !m.tryBeginIndexing() {
		return ErrIndexing
	}
	defer m.endIndexing()

	var cache indexCache
	if err := m.kv.ReadJSON(cacheKey, &cache); err != nil {
		if os.IsNotExist(err) {
			return ErrCacheInvalid
		}
		m.logger.Warn("cache_read_failed", slog.String("error", err.Error()))
		return ErrCacheInvalid
	}
	if !m.cacheUsable(&cache) {
		return ErrCacheInvalid
	}

	start := time.Now()
	files, err := m.src.ListDocuments()
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	newIndex := lexical.NewIndex()
	newHashes := make(map[string]string, len(files))
	docs := make([]proximity.Document, 0, len(files))
	reused, rechunked := 0, 0

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		content, readErr := m.src.ReadCached(f.Path)
		if readErr != nil {
			m.logger.Warn("read_failed",
				slog.String("path", f.Path),
				slog.String("error", readErr.Error()))
			continue
		}
		hash := source.HashContent(content)
		if entry, ok := cache.Files[f.Path]; ok && entry.Hash == hash {
			newIndex.AddChunks(entry.Chunks)
			reused++
		} else {
			newIndex.AddChunks(m.chunker.Split(f.Path, f.Name, content, m.cfg.ChunkStrategy, m.cfg.ChunkMaxTokens))
			rechunked++
			if m.vectors != nil && ok {
				m.vectors.RemoveByFile(f.Path)
			}
		}
		newHashes[f.Path] = hash
		docs = append(docs, proximity.Document{Path: f.Path, Content: content, ModTime: f.ModTime})
		runtime.Gosched()
	}

	// Files present in the cache but gone from disk count as deletions.
	if m.vectors != nil {
		for path := range cache.Files {
			if _, live := newHashes[path]; !live {
				m.vectors.RemoveByFile(path)
			}
		}
	}

	m.mu.Lock()
	m.lexical = newIndex
	m.fileHashes = newHashes
	m.built = true
	m.mu.Unlock()
	m.scorer.BuildGraph(docs)

	m.logger.Info("index_restored",
		slog.Int("reused", reused),
		slog.Int("rechunked", rechunked),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (m *Manager) cacheUsable(cache *indexCache) bool {
	if cache.Version != CacheVersion {
		m.logger.Warn("cache_version_mismatch", slog.Int("found", cache.Version))
		return false
	}
	if cache.ChunkStrategy != string(m.cfg.ChunkStrategy) || cache.ChunkMaxTokens != m.cfg.ChunkMaxTokens {
		m.logger.Warn("cache_config_mismatch",
			slog.String("strategy", cache.ChunkStrategy),
			slog.Int("max_tokens", cache.ChunkMaxTokens))
		return false
	}
	if len(cache.ExcludeFolders) != len(m.cfg.ExcludeFolders) {
		return false
	}
	for i, f := range cache.ExcludeFolders {
		if f != m.cfg.ExcludeFolders[i] {
			return false
		}
	}
	return true
}

// UpdateFile re-indexes a single document. Unchanged content is a
// cheap no-op, as is any call before the first build or during one.
func (m *Manager) UpdateFile(ctx context.Context, path string) error {
	m.mu.Lock()
	if !m.built || m.indexing {
		m.mu.Unlock()
		return nil
	}
	lex := m.lexical
	oldHash := m.fileHashes[path]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := m.src.ReadFresh(path)
	if err != nil {
		if os.IsNotExist(err) {
			m.RemoveFile(path)
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	hash := source.HashContent(content)
	if hash == oldHash {
		return nil
	}

	lex.RemoveByFile(path)
	if m.vectors != nil {
		m.vectors.RemoveByFile(path)
	}
	chunks := m.chunker.Split(path, source.DisplayName(path), content, m.cfg.ChunkStrategy, m.cfg.ChunkMaxTokens)
	lex.AddChunks(chunks)

	info, statErr := os.Stat(m.absPath(path))
	modTime := time.Now()
	if statErr == nil {
		modTime = info.ModTime()
	}
	m.scorer.UpdateFile(proximity.Document{Path: path, Content: content, ModTime: modTime})

	m.mu.Lock()
	m.fileHashes[path] = hash
	m.noteEditLocked(path)
	m.mu.Unlock()

	m.logger.Debug("file_updated",
		slog.String("path", path),
		slog.Int("chunks", len(chunks)))
	return nil
}

// RemoveFile drops every trace of a path. Unknown paths are a no-op.
func (m *Manager) RemoveFile(path string) {
	m.mu.Lock()
	lex := m.lexical
	delete(m.fileHashes, path)
	m.dropEditLocked(path)
	m.mu.Unlock()

	lex.RemoveByFile(path)
	if m.vectors != nil {
		m.vectors.RemoveByFile(path)
	}
	m.scorer.RemoveFile(path)
	m.src.Forget(path)
	m.logger.Debug("file_removed", slog.String("path", path))
}

// RemoveFolder removes every indexed file under the given vault-relative
// folder. Individual delete events never arrive for files inside a
// directory that was removed or renamed wholesale.
func (m *Manager) RemoveFolder(folder string) {
	prefix := folder + "/"

	m.mu.Lock()
	var doomed []string
	for path := range m.fileHashes {
		if strings.HasPrefix(path, prefix) {
			doomed = append(doomed, path)
		}
	}
	m.mu.Unlock()

	for _, path := range doomed {
		m.RemoveFile(path)
	}
	m.logger.Debug("folder_removed",
		slog.String("folder", folder),
		slog.Int("files", len(doomed)))
}

// DebouncedUpdate coalesces change notifications per path; only the
// last notification within the quiet period triggers an update.
func (m *Manager) DebouncedUpdate(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if timer, ok := m.timers[path]; ok {
		timer.Stop()
	}
	m.timers[path] = time.AfterFunc(m.cfg.DebounceDelay, func() {
		m.mu.Lock()
		delete(m.timers, path)
		m.mu.Unlock()
		if err := m.UpdateFile(context.Background(), path); err != nil {
			m.logger.Warn("debounced_update_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	})
}

func (m *Manager) noteEditLocked(path string) {
	m.dropEditLocked(path)
	m.recentEdits = append(m.recentEdits, path)
}

func (m *Manager) dropEditLocked(path string) {
	for i, p := range m.recentEdits {
		if p == path {
			m.recentEdits = append(m.recentEdits[:i], m.recentEdits[i+1:]...)
			return
		}
	}
}

func (m *Manager) absPath(rel string) string {
	return filepath.Join(m.src.Root(), filepath.FromSlash(rel))
}

// Search routes a query to the hybrid or lexical path. Hybrid runs
// only when embeddings are enabled, a provider is configured, and the
// vector store holds data; hybrid failures degrade to lexical.
func (m *Manager) Search(ctx context.Context, query string, opts SearchOptions) []*search.Result {
	m.mu.Lock()
	built := m.built
	lex := m.lexical
	useHybrid := m.embeddingEnabled && m.embedder != nil && m.vectors != nil
	m.mu.Unlock()

	if !built || opts.TopK <= 0 {
		return []*search.Result{}
	}
	if useHybrid && m.vectors.Count() == 0 {
		useHybrid = false
	}

	var results []*search.Result
	if useHybrid {
		searcher := search.NewHybridSearcher(lex, m.vectors, m.embedder, m.logger)
		hybrid, err := searcher.Search(ctx, query, opts.TopK, opts.MinScore)
		if err != nil {
			m.logger.Warn("hybrid_search_failed", slog.String("error", err.Error()))
		} else {
			results = hybrid
		}
	}
	if results == nil {
		results = lexicalResults(lex, query, opts.TopK, opts.MinScore)
	}

	if m.cfg.ProximityEnabled && opts.AnchorPath != "" {
		results = m.scorer.ApplyBoost(results, opts.AnchorPath, proximity.BoostConfig{
			Enabled:     true,
			BoostFactor: m.cfg.BoostFactor,
		})
	}
	return results
}

func lexicalResults(lex *lexical.Index, query string, topK int, minScore float64) []*search.Result {
	hits := lex.Search(query, topK, minScore)
	results := make([]*search.Result, len(hits))
	for i, h := range hits {
		results[i] = &search.Result{
			Chunk:     h.Chunk,
			Score:     h.Score,
			MatchType: search.MatchLexical,
		}
	}
	return results
}

// Stats reports current index state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{
		Built:     m.built,
		Files:     len(m.fileHashes),
		Chunks:    m.lexical.DocCount(),
		Embedding: m.embeddingEnabled,
	}
	if m.vectors != nil {
		s.Vectors = m.vectors.Count()
		s.TokensUsed = m.vectors.TokensUsed()
		s.UnsavedData = m.vectors.HasUnsavedChanges()
	}
	return s
}

// SaveCache persists the file-hash/chunk cache for the next startup.
func (m *Manager) SaveCache() error {
	m.mu.Lock()
	lex := m.lexical
	hashes := make(map[string]string, len(m.fileHashes))
	for k, v := range m.fileHashes {
		hashes[k] = v
	}
	m.mu.Unlock()

	byFile := make(map[string][]*chunk.Chunk)
	for _, c := range lex.Chunks() {
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}
	// Ordinal order, not lexicographic id order: "f.md::10" must come
	// after "f.md::2".
	for _, chunks := range byFile {
		sort.Slice(chunks, func(i, j int) bool {
			return chunk.Ordinal(chunks[i].ID) < chunk.Ordinal(chunks[j].ID)
		})
	}

	cache := indexCache{
		Version:        CacheVersion,
		ChunkStrategy:  string(m.cfg.ChunkStrategy),
		ChunkMaxTokens: m.cfg.ChunkMaxTokens,
		ExcludeFolders: m.cfg.ExcludeFolders,
		Files:          make(map[string]fileCacheEntry, len(hashes)),
	}
	for path, hash := range hashes {
		cache.Files[path] = fileCacheEntry{Hash: hash, Chunks: byFile[path]}
	}
	return m.kv.WriteJSON(cacheKey, cache)
}

// Close flushes persistent state and stops pending timers. Flush
// failures are logged, not returned; shutdown always completes.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for path, timer := range m.timers {
		timer.Stop()
		delete(m.timers, path)
	}
	built := m.built
	m.mu.Unlock()

	if built {
		if err := m.SaveCache(); err != nil {
			m.logger.Warn("cache_save_failed", slog.String("error", err.Error()))
		}
	}
	if m.vectors != nil && m.vectors.HasUnsavedChanges() {
		if err := m.vectors.Save(); err != nil {
			m.logger.Warn("vector_save_failed", slog.String("error", err.Error()))
		}
	}
	m.logger.Info("index_closed")
}
