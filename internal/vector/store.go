package vector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/notesearch/internal/keyvalue"
)

const (
	// MetadataVersion guards the persisted metadata schema.
	MetadataVersion = 1

	// DefaultShardCapacity is the maximum number of vectors per shard.
	DefaultShardCapacity = 500

	// scanYieldEvery is how many cosine comparisons run between
	// cooperative yields during a linear scan.
	scanYieldEvery = 100

	metadataKey = "vector-meta.json"
	shardDir    = "shards"
)

// Result is a scored vector match.
type Result struct {
	ID    string
	Score float64
}

// Metadata is the persisted store header. It is rewritten on every save.
type Metadata struct {
	Model           string         `json:"model"`
	Dimensions      int            `json:"dimensions"`
	Provider        string         `json:"provider"`
	LastUpdated     time.Time      `json:"lastUpdated"`
	Version         int            `json:"version"`
	TotalTokensUsed int            `json:"totalTokensUsed"`
	ShardCount      int            `json:"shardCount"`
	ChunkToShard    map[string]int `json:"chunkToShard"`
}

// shardFile is the persisted per-shard payload.
type shardFile struct {
	Entries map[string]string `json:"entries"`
}

// Config identifies the embedding space a store holds. All vectors in one
// store share one (provider, model, dimensionality) triple; changing any
// of the three invalidates the store.
type Config struct {
	Provider      string
	Model         string
	Dimensions    int
	ShardCapacity int
}

// Store persists embedding vectors keyed by chunk id, sharded across
// fixed-size partitions. It performs exact linear cosine top-K search.
// The store does not reject mismatched vectors itself; the orchestrator
// clears and rebuilds when IsModelChanged reports drift.
type Store struct {
	mu     sync.Mutex
	kv     *keyvalue.Store
	config Config

	vectors      map[string][]float32
	chunkToShard map[string]int
	shardCount   int
	totalTokens  int

	dirty  map[int]struct{}
	loaded map[int]struct{}

	// stored* mirror the persisted metadata for change detection.
	storedModel    string
	storedProvider string
	storedDims     int
	metaPresent    bool
}

// NewStore creates a store over the given key-value surface.
func NewStore(kv *keyvalue.Store, cfg Config) *Store {
	if cfg.ShardCapacity <= 0 {
		cfg.ShardCapacity = DefaultShardCapacity
	}
	return &Store{
		kv:           kv,
		config:       cfg,
		vectors:      make(map[string][]float32),
		chunkToShard: make(map[string]int),
		dirty:        make(map[int]struct{}),
		loaded:       make(map[int]struct{}),
	}
}

// LoadMetadata reads the persisted header. A missing metadata file is not
// an error: it means "empty store". A corrupt file fails closed the same
// way.
func (s *Store) LoadMetadata() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta Metadata
	err := s.kv.ReadJSON(metadataKey, &meta)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		slog.Warn("vector_metadata_unreadable, starting empty",
			slog.String("error", err.Error()))
		return nil
	}
	if meta.Version != MetadataVersion {
		slog.Warn("vector_metadata_version_mismatch, starting empty",
			slog.Int("got", meta.Version),
			slog.Int("want", MetadataVersion))
		return nil
	}

	s.shardCount = meta.ShardCount
	s.totalTokens = meta.TotalTokensUsed
	s.chunkToShard = meta.ChunkToShard
	if s.chunkToShard == nil {
		s.chunkToShard = make(map[string]int)
	}
	s.storedModel = meta.Model
	s.storedProvider = meta.Provider
	s.storedDims = meta.Dimensions
	s.metaPresent = true
	return nil
}

// IsModelChanged reports whether the persisted store was built with a
// different (provider, model, dimensionality) triple than configured.
// The caller should Clear and rebuild when this is true.
func (s *Store) IsModelChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.metaPresent {
		return false
	}
	return s.storedModel != s.config.Model ||
		s.storedProvider != s.config.Provider ||
		(s.storedDims != 0 && s.config.Dimensions != 0 && s.storedDims != s.config.Dimensions)
}

// Set stores a vector for a chunk id and marks its shard dirty.
func (s *Store) Set(id string, vec []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.assignShardLocked(id)
	s.ensureShardLoadedLocked(idx)
	s.vectors[id] = vec
	s.dirty[idx] = struct{}{}
}

// Get returns the vector for a chunk id, loading its shard if needed.
func (s *Store) Get(id string) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.chunkToShard[id]; ok {
		s.ensureShardLoadedLocked(idx)
	}
	v, ok := s.vectors[id]
	return v, ok
}

// Has reports whether a vector exists for the chunk id.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, assigned := s.chunkToShard[id]
	return assigned
}

// Count returns the number of stored vectors.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunkToShard)
}

// Files returns the distinct file paths that have stored vectors,
// sorted. Unloaded shards are included via the chunk mapping.
func (s *Store) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	files := make([]string, 0)
	for id := range s.chunkToShard {
		path := id
		if i := strings.LastIndex(id, "::"); i >= 0 {
			path = id[:i]
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// AddTokensUsed accumulates the embedding token-usage counter.
func (s *Store) AddTokensUsed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalTokens += n
}

// TokensUsed returns the accumulated embedding token usage.
func (s *Store) TokensUsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalTokens
}

// RemoveByFile drops every vector whose chunk id belongs to the file.
// Affected shards are marked dirty so the deletions persist.
func (s *Store) RemoveByFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := path + "::"
	for id, idx := range s.chunkToShard {
		if strings.HasPrefix(id, prefix) {
			s.ensureShardLoadedLocked(idx)
			delete(s.vectors, id)
			delete(s.chunkToShard, id)
			s.dirty[idx] = struct{}{}
		}
	}
}

// Search runs an exact linear cosine scan over every stored vector and
// returns the topK best matches, however weak. The scan works on a
// snapshot taken under the lock and yields cooperatively every
// scanYieldEvery comparisons without holding it.
func (s *Store) Search(ctx context.Context, query []float32, topK int) ([]*Result, error) {
	if topK <= 0 || len(query) == 0 {
		return []*Result{}, nil
	}

	if err := s.LoadAllShards(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	ids := make([]string, 0, len(s.vectors))
	vecs := make([][]float32, 0, len(s.vectors))
	for id, vec := range s.vectors {
		ids = append(ids, id)
		vecs = append(vecs, vec)
	}
	s.mu.Unlock()

	results := make([]*Result, 0, len(ids))
	for i, vec := range vecs {
		if i%scanYieldEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			runtime.Gosched()
		}
		results = append(results, &Result{ID: ids[i], Score: CosineSimilarity(query, vec)})
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].ID < results[b].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// LoadAllShards loads every not-yet-loaded shard, one at a time, with a
// cooperative yield between shards. A missing or corrupt shard file is
// logged and marked loaded rather than retried or fatal.
func (s *Store) LoadAllShards(ctx context.Context) error {
	s.mu.Lock()
	count := s.shardCount
	s.mu.Unlock()

	for idx := 0; idx < count; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		s.ensureShardLoadedLocked(idx)
		s.mu.Unlock()

		runtime.Gosched()
	}
	return nil
}

// Save writes every dirty shard and always rewrites the metadata header.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx := range s.dirty {
		entries := make(map[string]string)
		for id, shard := range s.chunkToShard {
			if shard != idx {
				continue
			}
			if vec, ok := s.vectors[id]; ok {
				entries[id] = EncodeVector(vec)
			}
		}
		key := shardKey(idx)
		if err := s.kv.WriteJSON(key, shardFile{Entries: entries}); err != nil {
			return fmt.Errorf("save shard %d: %w", idx, err)
		}
	}
	s.dirty = make(map[int]struct{})

	meta := Metadata{
		Model:           s.config.Model,
		Dimensions:      s.config.Dimensions,
		Provider:        s.config.Provider,
		LastUpdated:     time.Now().UTC(),
		Version:         MetadataVersion,
		TotalTokensUsed: s.totalTokens,
		ShardCount:      s.shardCount,
		ChunkToShard:    s.chunkToShard,
	}
	if err := s.kv.WriteJSON(metadataKey, meta); err != nil {
		return fmt.Errorf("save vector metadata: %w", err)
	}
	s.storedModel = meta.Model
	s.storedProvider = meta.Provider
	s.storedDims = meta.Dimensions
	s.metaPresent = true
	return nil
}

// HasUnsavedChanges reports whether any shard is dirty.
func (s *Store) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty) > 0
}

// Clear deletes every shard file and the metadata file, and resets all
// in-memory state.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx := 0; idx < s.shardCount; idx++ {
		if err := s.kv.Remove(shardKey(idx)); err != nil {
			return fmt.Errorf("remove shard %d: %w", idx, err)
		}
	}
	if err := s.kv.Remove(metadataKey); err != nil {
		return fmt.Errorf("remove vector metadata: %w", err)
	}

	s.vectors = make(map[string][]float32)
	s.chunkToShard = make(map[string]int)
	s.shardCount = 0
	s.totalTokens = 0
	s.dirty = make(map[int]struct{})
	s.loaded = make(map[int]struct{})
	s.storedModel = ""
	s.storedProvider = ""
	s.storedDims = 0
	s.metaPresent = false
	return nil
}

// assignShardLocked returns the shard for an id, assigning one if new.
// Shard count only grows; existing assignments never reshuffle.
func (s *Store) assignShardLocked(id string) int {
	if idx, ok := s.chunkToShard[id]; ok {
		return idx
	}

	needed := (len(s.chunkToShard) + s.config.ShardCapacity) / s.config.ShardCapacity
	if needed < 1 {
		needed = 1
	}
	if needed > s.shardCount {
		s.shardCount = needed
	}

	idx := int(shardHash(id) % uint64(s.shardCount))
	s.chunkToShard[id] = idx
	return idx
}

// ensureShardLoadedLocked loads one shard file into memory. Entries whose
// ids are no longer in the central map (stale after deletions) are
// skipped; undecodable entries are logged and dropped.
func (s *Store) ensureShardLoadedLocked(idx int) {
	if _, ok := s.loaded[idx]; ok {
		return
	}
	s.loaded[idx] = struct{}{}

	var sf shardFile
	err := s.kv.ReadJSON(shardKey(idx), &sf)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		slog.Warn("vector_shard_unreadable, treating as empty",
			slog.Int("shard", idx),
			slog.String("error", err.Error()))
		return
	}

	for id, encoded := range sf.Entries {
		if shard, ok := s.chunkToShard[id]; !ok || shard != idx {
			continue
		}
		if _, ok := s.vectors[id]; ok {
			continue
		}
		vec, err := DecodeVector(encoded)
		if err != nil {
			slog.Warn("vector_entry_undecodable, dropping",
				slog.Int("shard", idx),
				slog.String("id", id),
				slog.String("error", err.Error()))
			continue
		}
		s.vectors[id] = vec
	}
}

func shardKey(idx int) string {
	return fmt.Sprintf("%s/shard-%d.json", shardDir, idx)
}
