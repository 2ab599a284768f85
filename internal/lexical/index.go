package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/Aman-CERP/notesearch/internal/chunk"
)

// Result is a scored lexical match.
type Result struct {
	Chunk *chunk.Chunk
	Score float64
}

// docEntry is the per-chunk index record: chunk reference, token list and
// raw term frequencies. It is fully derived from the chunk and never
// persisted.
type docEntry struct {
	chunk  *chunk.Chunk
	tokens []string
	tf     map[string]float64 // normalized by the document's max raw TF
	norm   float64            // TF-IDF vector norm, refreshed with IDF
}

// Index is an in-memory TF-IDF index over chunks, ranked by cosine
// similarity. IDF is recomputed over the whole corpus whenever the corpus
// changes; incremental IDF maintenance is deliberately not attempted at
// this corpus scale.
type Index struct {
	mu     sync.RWMutex
	docs   map[string]*docEntry
	byFile map[string][]string
	df     map[string]int
	idf    map[string]float64
}

// NewIndex creates an empty lexical index.
func NewIndex() *Index {
	return &Index{
		docs:   make(map[string]*docEntry),
		byFile: make(map[string][]string),
		df:     make(map[string]int),
		idf:    make(map[string]float64),
	}
}

// AddChunks indexes chunks and recomputes IDF over the corpus.
func (x *Index) AddChunks(chunks []*chunk.Chunk) {
	if len(chunks) == 0 {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for _, c := range chunks {
		if old, ok := x.docs[c.ID]; ok {
			x.dropLocked(c.ID, old)
		}
		tokens := Tokenize(c.Content)
		entry := &docEntry{
			chunk:  c,
			tokens: tokens,
			tf:     termFrequencies(tokens),
		}
		x.docs[c.ID] = entry
		x.byFile[c.FilePath] = append(x.byFile[c.FilePath], c.ID)
		for term := range entry.tf {
			x.df[term]++
		}
	}

	x.recomputeLocked()
}

// RemoveByFile drops every chunk of a file and recomputes IDF. Document
// frequencies shift on removal, so the recompute is unconditional.
func (x *Index) RemoveByFile(path string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	ids := x.byFile[path]
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if entry, ok := x.docs[id]; ok {
			x.dropLocked(id, entry)
		}
	}
	delete(x.byFile, path)

	x.recomputeLocked()
}

// Clear resets the index to empty.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.docs = make(map[string]*docEntry)
	x.byFile = make(map[string][]string)
	x.df = make(map[string]int)
	x.idf = make(map[string]float64)
}

// DocCount returns the number of indexed chunks.
func (x *Index) DocCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Chunk returns the indexed chunk for an id, or nil.
func (x *Index) Chunk(id string) *chunk.Chunk {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if entry, ok := x.docs[id]; ok {
		return entry.chunk
	}
	return nil
}

// Chunks returns all indexed chunks.
func (x *Index) Chunks() []*chunk.Chunk {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]*chunk.Chunk, 0, len(x.docs))
	for _, entry := range x.docs {
		out = append(out, entry.chunk)
	}
	return out
}

// Search ranks chunks against the query by TF-IDF cosine similarity.
// Results below minScore are dropped; the remainder is sorted descending
// and truncated to topK. A query that tokenizes to nothing but is
// non-empty (typical for one-character CJK queries) falls back to a
// substring scan.
func (x *Index) Search(query string, topK int, minScore float64) []*Result {
	if topK <= 0 {
		return []*Result{}
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		if strings.TrimSpace(query) != "" {
			return x.substringSearchLocked(query, topK, minScore)
		}
		return []*Result{}
	}

	qtf := termFrequencies(queryTokens)
	var qnorm float64
	qw := make(map[string]float64, len(qtf))
	for term, tf := range qtf {
		w := tf * x.idfLocked(term)
		qw[term] = w
		qnorm += w * w
	}
	qnorm = math.Sqrt(qnorm)
	if qnorm == 0 {
		return []*Result{}
	}

	results := make([]*Result, 0, len(x.docs))
	for _, entry := range x.docs {
		if entry.norm == 0 {
			continue
		}
		var dot float64
		for term, w := range qw {
			if dtf, ok := entry.tf[term]; ok {
				dot += w * dtf * x.idfLocked(term)
			}
		}
		if dot == 0 {
			continue
		}
		score := dot / (qnorm * entry.norm)
		if score < minScore {
			continue
		}
		results = append(results, &Result{Chunk: entry.chunk, Score: score})
	}

	return sortAndTruncate(results, topK)
}

// substringSearchLocked scores documents by case-insensitive occurrence
// count of the raw query, normalized by content length.
func (x *Index) substringSearchLocked(query string, topK int, minScore float64) []*Result {
	needle := strings.ToLower(strings.TrimSpace(query))

	results := make([]*Result, 0, 8)
	for _, entry := range x.docs {
		content := entry.chunk.Content
		occurrences := strings.Count(strings.ToLower(content), needle)
		if occurrences == 0 {
			continue
		}
		score := math.Min(1, float64(occurrences)/(float64(len(content))/100))
		if score < minScore {
			continue
		}
		results = append(results, &Result{Chunk: entry.chunk, Score: score})
	}

	return sortAndTruncate(results, topK)
}

// dropLocked removes one document and its document-frequency counts.
func (x *Index) dropLocked(id string, entry *docEntry) {
	for term := range entry.tf {
		if x.df[term] <= 1 {
			delete(x.df, term)
		} else {
			x.df[term]--
		}
	}
	delete(x.docs, id)
}

// recomputeLocked refreshes IDF and per-document norms over the corpus.
// idf(t) = ln((N+1)/(df(t)+1)) + 1.
func (x *Index) recomputeLocked() {
	n := float64(len(x.docs))
	x.idf = make(map[string]float64, len(x.df))
	for term, df := range x.df {
		x.idf[term] = math.Log((n+1)/float64(df+1)) + 1
	}
	for _, entry := range x.docs {
		var norm float64
		for term, tf := range entry.tf {
			w := tf * x.idf[term]
			norm += w * w
		}
		entry.norm = math.Sqrt(norm)
	}
}

func (x *Index) idfLocked(term string) float64 {
	if idf, ok := x.idf[term]; ok {
		return idf
	}
	// Unseen term: df = 0.
	return math.Log(float64(len(x.docs)+1)) + 1
}

// termFrequencies computes term frequencies normalized by the maximum raw
// frequency in the token list.
func termFrequencies(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return map[string]float64{}
	}
	raw := make(map[string]int, len(tokens))
	maxFreq := 0
	for _, tok := range tokens {
		raw[tok]++
		if raw[tok] > maxFreq {
			maxFreq = raw[tok]
		}
	}
	tf := make(map[string]float64, len(raw))
	for term, count := range raw {
		tf[term] = float64(count) / float64(maxFreq)
	}
	return tf
}

// sortAndTruncate orders results by score descending with chunk id as the
// deterministic tie-break, then truncates to topK.
func sortAndTruncate(results []*Result, topK int) []*Result {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
