// Package proximity re-ranks search results by structural and temporal
// closeness to an anchor document. Closeness combines link-graph
// distance, folder overlap, filename similarity, and modification-time
// recency into a single composite score.
package proximity

import (
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/notesearch/internal/search"
)

// Composite weights. They sum to 1 so the proximity score stays in [0, 1].
const (
	linkWeight   = 0.4
	folderWeight = 0.3
	nameWeight   = 0.15
	timeWeight   = 0.15
)

// Link-distance scores by hop count in the bidirectional graph.
const (
	linkScoreSame   = 1.0
	linkScoreOneHop = 0.8
	linkScoreTwoHop = 0.4
	maxLinkDepth    = 2
)

// timeDecayDays controls how fast the recency score falls off.
const timeDecayDays = 7.0

// wikiLinkPattern matches [[target]] references, including the
// [[target|alias]] and [[target#heading]] forms.
var wikiLinkPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// Document is the per-file input the scorer tracks.
type Document struct {
	Path    string
	Content string
	ModTime time.Time
}

// BoostConfig controls how ApplyBoost rescales scores.
type BoostConfig struct {
	Enabled     bool
	BoostFactor float64
}

// Scorer maintains the link graph and document metadata needed to
// compute proximity scores. Links reference documents by note name, so
// the graph stays correct regardless of the order files are indexed in.
type Scorer struct {
	mu       sync.RWMutex
	outbound map[string][]string            // path -> link target names
	inbound  map[string]map[string]struct{} // target name -> linking paths
	byName   map[string]string              // note name -> path
	modTimes map[string]time.Time
	logger   *slog.Logger
}

// NewScorer creates an empty scorer.
func NewScorer(logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		outbound: make(map[string][]string),
		inbound:  make(map[string]map[string]struct{}),
		byName:   make(map[string]string),
		modTimes: make(map[string]time.Time),
		logger:   logger.With("component", "proximity"),
	}
}

// BuildGraph replaces the whole graph from the given document set.
func (s *Scorer) BuildGraph(docs []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outbound = make(map[string][]string, len(docs))
	s.inbound = make(map[string]map[string]struct{})
	s.byName = make(map[string]string, len(docs))
	s.modTimes = make(map[string]time.Time, len(docs))

	for _, doc := range docs {
		s.insertLocked(doc)
	}
	s.logger.Debug("graph_built", slog.Int("documents", len(docs)))
}

// UpdateFile replaces a single document's edges and metadata. Old edges
// are removed on both sides before the new ones are recorded.
func (s *Scorer) UpdateFile(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(doc.Path)
	s.insertLocked(doc)
}

// RemoveFile drops a document and all edges touching it.
func (s *Scorer) RemoveFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(path)
}

func (s *Scorer) insertLocked(doc Document) {
	name := noteName(doc.Path)
	s.byName[name] = doc.Path
	s.modTimes[doc.Path] = doc.ModTime

	targets := extractLinks(doc.Content)
	s.outbound[doc.Path] = targets
	for _, target := range targets {
		set := s.inbound[target]
		if set == nil {
			set = make(map[string]struct{})
			s.inbound[target] = set
		}
		set[doc.Path] = struct{}{}
	}
}

func (s *Scorer) removeLocked(path string) {
	for _, target := range s.outbound[path] {
		if set := s.inbound[target]; set != nil {
			delete(set, path)
			if len(set) == 0 {
				delete(s.inbound, target)
			}
		}
	}
	delete(s.outbound, path)
	delete(s.modTimes, path)

	name := noteName(path)
	if s.byName[name] == path {
		delete(s.byName, name)
	}
}

// ApplyBoost rescales each result by its proximity to the anchor
// document and re-sorts. With boosting disabled or no anchor, results
// pass through unchanged.
func (s *Scorer) ApplyBoost(results []*search.Result, anchorPath string, cfg BoostConfig) []*search.Result {
	if !cfg.Enabled || anchorPath == "" || len(results) == 0 {
		return results
	}

	s.mu.RLock()
	boosted := make([]*search.Result, len(results))
	for i, r := range results {
		prox := s.scoreLocked(anchorPath, r.Chunk.FilePath)
		boosted[i] = &search.Result{
			Chunk:     r.Chunk,
			Score:     r.Score * (1 + cfg.BoostFactor*prox),
			MatchType: r.MatchType,
		}
	}
	s.mu.RUnlock()

	sort.Slice(boosted, func(i, j int) bool {
		if boosted[i].Score != boosted[j].Score {
			return boosted[i].Score > boosted[j].Score
		}
		return boosted[i].Chunk.ID < boosted[j].Chunk.ID
	})
	return boosted
}

// Score returns the composite proximity of target relative to anchor.
func (s *Scorer) Score(anchorPath, targetPath string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scoreLocked(anchorPath, targetPath)
}

func (s *Scorer) scoreLocked(anchorPath, targetPath string) float64 {
	return linkWeight*s.linkScoreLocked(anchorPath, targetPath) +
		folderWeight*folderScore(anchorPath, targetPath) +
		nameWeight*nameScore(anchorPath, targetPath) +
		timeWeight*s.timeScoreLocked(anchorPath, targetPath)
}

// linkScoreLocked walks the bidirectional graph breadth-first from the
// anchor, capped at two hops.
func (s *Scorer) linkScoreLocked(anchorPath, targetPath string) float64 {
	if anchorPath == targetPath {
		return linkScoreSame
	}

	visited := map[string]struct{}{anchorPath: {}}
	frontier := []string{anchorPath}
	for depth := 1; depth <= maxLinkDepth; depth++ {
		var next []string
		for _, path := range frontier {
			for _, neighbor := range s.neighborsLocked(path) {
				if _, seen := visited[neighbor]; seen {
					continue
				}
				if neighbor == targetPath {
					if depth == 1 {
						return linkScoreOneHop
					}
					return linkScoreTwoHop
				}
				visited[neighbor] = struct{}{}
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return 0
}

// neighborsLocked returns both link directions: documents this path
// references, and documents referencing this path's note name.
func (s *Scorer) neighborsLocked(path string) []string {
	var neighbors []string
	for _, target := range s.outbound[path] {
		if resolved, ok := s.byName[target]; ok && resolved != path {
			neighbors = append(neighbors, resolved)
		}
	}
	for linker := range s.inbound[noteName(path)] {
		if linker != path {
			neighbors = append(neighbors, linker)
		}
	}
	return neighbors
}

func (s *Scorer) timeScoreLocked(anchorPath, targetPath string) float64 {
	at, aok := s.modTimes[anchorPath]
	bt, bok := s.modTimes[targetPath]
	if !aok || !bok {
		return 0
	}
	days := math.Abs(at.Sub(bt).Hours()) / 24
	return math.Exp(-days / timeDecayDays)
}

// folderScore is the ratio of matching leading directory segments to
// the longer segment count. Two root-level documents score 1.0.
func folderScore(a, b string) float64 {
	as := pathSegments(a)
	bs := pathSegments(b)
	if len(as) == 0 && len(bs) == 0 {
		return 1.0
	}
	longer := len(as)
	if len(bs) > longer {
		longer = len(bs)
	}
	matching := 0
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			break
		}
		matching++
	}
	return float64(matching) / float64(longer)
}

func pathSegments(path string) []string {
	dir := filepath.ToSlash(filepath.Dir(path))
	if dir == "." || dir == "/" || dir == "" {
		return nil
	}
	return strings.Split(strings.Trim(dir, "/"), "/")
}

// nameScore is the Jaccard similarity of character bigrams of the two
// base filenames with extensions stripped.
func nameScore(a, b string) float64 {
	ab := nameBigrams(noteName(a))
	bb := nameBigrams(noteName(b))
	if len(ab) == 0 && len(bb) == 0 {
		if noteName(a) == noteName(b) {
			return 1.0
		}
		return 0
	}
	if len(ab) == 0 || len(bb) == 0 {
		return 0
	}

	intersection := 0
	for gram := range ab {
		if _, ok := bb[gram]; ok {
			intersection++
		}
	}
	union := len(ab) + len(bb) - intersection
	return float64(intersection) / float64(union)
}

func nameBigrams(name string) map[string]struct{} {
	runes := []rune(name)
	if len(runes) < 2 {
		return nil
	}
	grams := make(map[string]struct{}, len(runes)-1)
	for i := 0; i+2 <= len(runes); i++ {
		grams[string(runes[i:i+2])] = struct{}{}
	}
	return grams
}

// noteName is the lowercased base filename without extension, matching
// how [[wiki links]] name their targets.
func noteName(path string) string {
	base := filepath.Base(filepath.ToSlash(path))
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// extractLinks returns the normalized target names of all wiki links in
// content. Alias and heading suffixes are stripped.
func extractLinks(content string) []string {
	matches := wikiLinkPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var targets []string
	for _, m := range matches {
		target := m[1]
		if i := strings.IndexAny(target, "|#"); i >= 0 {
			target = target[:i]
		}
		target = strings.ToLower(strings.TrimSpace(target))
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		targets = append(targets, target)
	}
	return targets
}
