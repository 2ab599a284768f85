// Package source discovers and reads the note files eligible for
// indexing. Paths handed to the rest of the pipeline are always
// relative to the vault root with forward slashes, so index state stays
// portable across machines.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// readCacheSize bounds the in-memory content cache.
const readCacheSize = 256

// noteExtensions are the file types the indexer considers.
var noteExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// FileInfo describes one indexable document.
type FileInfo struct {
	Path    string // vault-relative, forward slashes
	Name    string // display name: base name without extension
	ModTime time.Time
}

type cachedContent struct {
	content string
	modTime time.Time
}

// Source lists and reads documents under a vault root.
type Source struct {
	root           string
	excludeFolders []string
	cache          *lru.Cache[string, cachedContent]
	logger         *slog.Logger
}

// New creates a source rooted at root. excludeFolders are vault-relative
// folder prefixes whose contents are skipped.
func New(root string, excludeFolders []string, logger *slog.Logger) (*Source, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("source: resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("source: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source: root is not a directory: %s", absRoot)
	}

	cache, err := lru.New[string, cachedContent](readCacheSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	normalized := make([]string, 0, len(excludeFolders))
	for _, f := range excludeFolders {
		f = strings.Trim(filepath.ToSlash(f), "/")
		if f != "" {
			normalized = append(normalized, f)
		}
	}

	return &Source{
		root:           absRoot,
		excludeFolders: normalized,
		cache:          cache,
		logger:         logger.With("component", "source"),
	}, nil
}

// Root returns the absolute vault root.
func (s *Source) Root() string { return s.root }

// ListDocuments walks the vault and returns all indexable files in
// deterministic path order. Unreadable subtrees are logged and skipped.
func (s *Source) ListDocuments() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn("walk_error",
				slog.String("path", path),
				slog.String("error", walkErr.Error()))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && (s.Excluded(rel) || strings.HasPrefix(d.Name(), ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if !Indexable(rel) || s.Excluded(rel) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		files = append(files, FileInfo{
			Path:    rel,
			Name:    DisplayName(rel),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source: walk: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// ReadCached returns a file's content, serving from the cache while the
// on-disk modification time is unchanged.
func (s *Source) ReadCached(relPath string) (string, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(relPath))
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if entry, ok := s.cache.Get(relPath); ok && entry.modTime.Equal(info.ModTime()) {
		return entry.content, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	content := string(data)
	s.cache.Add(relPath, cachedContent{content: content, modTime: info.ModTime()})
	return content, nil
}

// ReadFresh reads a file bypassing and refreshing the cache.
func (s *Source) ReadFresh(relPath string) (string, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(relPath))
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	content := string(data)
	s.cache.Add(relPath, cachedContent{content: content, modTime: info.ModTime()})
	return content, nil
}

// Forget drops a path from the read cache.
func (s *Source) Forget(relPath string) {
	s.cache.Remove(relPath)
}

// Excluded reports whether a vault-relative path falls under an
// excluded folder prefix.
func (s *Source) Excluded(relPath string) bool {
	for _, folder := range s.excludeFolders {
		if relPath == folder || strings.HasPrefix(relPath, folder+"/") {
			return true
		}
	}
	return false
}

// Indexable reports whether the path has a supported note extension.
func Indexable(path string) bool {
	return noteExtensions[strings.ToLower(filepath.Ext(path))]
}

// DisplayName is the base filename without its extension.
func DisplayName(path string) string {
	base := filepath.Base(filepath.ToSlash(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HashContent returns the hex SHA-256 of content, used for change
// detection across index rebuilds.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
