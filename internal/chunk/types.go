// Package chunk splits note documents into retrieval-sized units.
// A document is stripped of its front-matter header, split by one of three
// strategies (section, paragraph, fixed), and every resulting unit is kept
// under a token budget by re-splitting oversized units on paragraph
// boundaries.
package chunk

import (
	"fmt"
	"strconv"
	"strings"
)

// Token estimation constants.
const (
	// DefaultMaxTokens is the default per-chunk token budget.
	DefaultMaxTokens = 512

	// TokensPerChar is the cheap token estimate: 4 chars ~ 1 token.
	TokensPerChar = 4
)

// Strategy selects how a document body is split into units.
type Strategy string

const (
	// StrategySection starts a new unit at each markdown heading.
	StrategySection Strategy = "section"
	// StrategyParagraph starts a new unit after each blank line.
	StrategyParagraph Strategy = "paragraph"
	// StrategyFixed accumulates lines up to the token budget.
	StrategyFixed Strategy = "fixed"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategySection, StrategyParagraph, StrategyFixed:
		return true
	}
	return false
}

// Chunk is a retrievable slice of a document.
//
// ID is "<filePath>::<ordinal>" and is stable only within one chunking pass
// of one file version; re-chunking a file replaces all of its chunks.
// StartLine and EndLine are 0-based and refer to the original file's line
// numbering, including any front-matter lines stripped before splitting.
type Chunk struct {
	ID         string            `json:"id"`
	FilePath   string            `json:"filePath"`
	FileName   string            `json:"fileName"`
	Content    string            `json:"content"`
	Heading    string            `json:"heading,omitempty"`
	StartLine  int               `json:"startLine"`
	EndLine    int               `json:"endLine"`
	TokenCount int               `json:"tokenCount"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ChunkID builds the canonical chunk id for a file path and ordinal.
func ChunkID(filePath string, ordinal int) string {
	return fmt.Sprintf("%s::%d", filePath, ordinal)
}

// Ordinal extracts the ordinal from a chunk id. Ids without a numeric
// suffix report 0.
func Ordinal(id string) int {
	i := strings.LastIndex(id, "::")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(id[i+2:])
	if err != nil {
		return 0
	}
	return n
}

// EstimateTokens returns a cheap token-count estimate for text.
// This is a heuristic, not an exact tokenizer; callers must treat it as
// such (a budget guide, not a guarantee).
func EstimateTokens(text string) int {
	return (len(text) + TokensPerChar - 1) / TokensPerChar
}
