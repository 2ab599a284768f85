// Package search fuses lexical and semantic rankings into a single
// result list using Reciprocal Rank Fusion (RRF).
package search

import "github.com/Aman-CERP/notesearch/internal/chunk"

// MatchType records which ranking lists contributed to a result.
type MatchType string

const (
	MatchLexical  MatchType = "lexical"
	MatchSemantic MatchType = "semantic"
	MatchHybrid   MatchType = "hybrid"
)

// Result is a fused search hit.
type Result struct {
	Chunk     *chunk.Chunk
	Score     float64
	MatchType MatchType
}

// RRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.).
const RRFConstant = 60
