// Package lexical provides the TF-IDF keyword index over chunks.
// Tokenization is script-aware: CJK runs are emitted as overlapping
// bigrams, everything else as lowercased stop-word-filtered words.
package lexical

import (
	"strings"
	"unicode"
)

// stopWords is the fixed English stop-word set applied to word tokens.
var stopWords = buildStopWordMap([]string{
	"the", "a", "an", "and", "or", "but", "is", "are", "was", "were",
	"be", "been", "being", "to", "of", "in", "on", "at", "for", "with",
	"by", "from", "as", "it", "its", "this", "that", "these", "those",
	"i", "you", "he", "she", "we", "they", "not", "no", "do", "does",
	"did", "have", "has", "had", "will", "would", "can", "could",
	"should", "may", "might", "shall", "than", "then", "so", "if",
	"about", "into", "over", "under", "up", "down", "out", "what",
	"which", "who", "when", "where", "why", "how", "all", "each",
	"more", "most", "other", "some", "such", "only", "own", "same",
	"very", "just", "also", "there", "here",
})

// buildStopWordMap converts a slice of stop words to a set.
func buildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

// isCJK reports whether a rune belongs to the CJK scripts that get
// bigram treatment.
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// isWordRune reports whether a rune accumulates into the word buffer.
// Everything else (punctuation, whitespace, symbols) flushes both buffers.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Tokenize splits text into index terms. CJK runs become overlapping
// bigrams; other runs become single lowercased tokens of length > 1 that
// are not stop words. A lone CJK character at a buffer flush produces no
// bigram and is dropped from the stream; the index's substring fallback
// covers that case for queries.
func Tokenize(text string) []string {
	var tokens []string
	var word, cjk []rune

	flushWord := func() {
		if len(word) > 1 {
			tok := string(word)
			if _, stop := stopWords[tok]; !stop {
				tokens = append(tokens, tok)
			}
		}
		word = word[:0]
	}
	flushCJK := func() {
		for i := 0; i+1 < len(cjk); i++ {
			tokens = append(tokens, string(cjk[i:i+2]))
		}
		cjk = cjk[:0]
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flushWord()
			cjk = append(cjk, r)
		case isWordRune(r):
			flushCJK()
			word = append(word, unicode.ToLower(r))
		default:
			flushWord()
			flushCJK()
		}
	}
	flushWord()
	flushCJK()

	return tokens
}
