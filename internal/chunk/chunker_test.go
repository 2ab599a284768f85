package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_SectionStrategy(t *testing.T) {
	raw := "# Intro\nfirst section body\n\n## Details\nsecond section body\nmore detail"

	c := New()
	chunks := c.Split("notes/a.md", "a.md", raw, StrategySection, 512)

	require.Len(t, chunks, 2)

	assert.Equal(t, "notes/a.md::0", chunks[0].ID)
	assert.Equal(t, "Intro", chunks[0].Heading)
	assert.Equal(t, 0, chunks[0].StartLine)
	assert.Contains(t, chunks[0].Content, "first section body")

	assert.Equal(t, "notes/a.md::1", chunks[1].ID)
	assert.Equal(t, "Details", chunks[1].Heading)
	assert.Equal(t, 3, chunks[1].StartLine)
	assert.Equal(t, 5, chunks[1].EndLine)
}

func TestSplit_ParagraphStrategy(t *testing.T) {
	raw := "# Title\npara one line one\npara one line two\n\npara two"

	chunks := New().Split("b.md", "b.md", raw, StrategyParagraph, 512)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Title", chunks[0].Heading)
	assert.Equal(t, "Title", chunks[1].Heading)
	assert.Equal(t, "para two", chunks[1].Content)
	assert.Equal(t, 4, chunks[1].StartLine)
}

func TestSplit_FixedStrategy(t *testing.T) {
	line := strings.Repeat("x", 40) // ~10 tokens per line
	raw := strings.Join([]string{line, line, line, line}, "\n")

	chunks := New().Split("c.md", "c.md", raw, StrategyFixed, 25)

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenCount, 25)
	}
}

func TestSplit_FrontMatter(t *testing.T) {
	raw := strings.Join([]string{
		"---",
		"title: My Note",
		"tags:",
		"  - alpha",
		"  - beta",
		"aliases: [one, two]",
		"---",
		"# Body",
		"content here",
	}, "\n")

	chunks := New().Split("d.md", "d.md", raw, StrategySection, 512)

	require.Len(t, chunks, 1)
	// Line numbers are offset by the front-matter block.
	assert.Equal(t, 7, chunks[0].StartLine)
	assert.Equal(t, 8, chunks[0].EndLine)
	assert.Equal(t, "My Note", chunks[0].Metadata["title"])
	assert.Equal(t, "alpha, beta", chunks[0].Metadata["tags"])
	assert.Equal(t, "one, two", chunks[0].Metadata["aliases"])
}

func TestSplit_MalformedFrontMatter(t *testing.T) {
	raw := "---\n: : not yaml [\n---\nbody text"

	chunks := New().Split("e.md", "e.md", raw, StrategySection, 512)

	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Metadata)
	assert.Equal(t, "body text", chunks[0].Content)
	assert.Equal(t, 3, chunks[0].StartLine)
}

func TestSplit_UnterminatedFrontMatter(t *testing.T) {
	raw := "---\ntitle: dangling\nbody continues"

	chunks := New().Split("f.md", "f.md", raw, StrategySection, 512)

	require.Len(t, chunks, 1)
	// The whole text stays body when the block never closes.
	assert.Equal(t, 0, chunks[0].StartLine)
	assert.Contains(t, chunks[0].Content, "---")
}

func TestSplit_EmptyBody(t *testing.T) {
	assert.Empty(t, New().Split("g.md", "g.md", "", StrategySection, 512))
	assert.Empty(t, New().Split("g.md", "g.md", "---\na: b\n---\n\n", StrategyParagraph, 512))
}

func TestSplit_HeadingInsideFenceIgnored(t *testing.T) {
	raw := strings.Join([]string{
		"# Real",
		"```",
		"# not a heading",
		"```",
		"after fence",
	}, "\n")

	chunks := New().Split("h.md", "h.md", raw, StrategySection, 512)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Real", chunks[0].Heading)
}

func TestSplit_UnclosedFenceDisablesHeadings(t *testing.T) {
	raw := "# Top\n```\n# swallowed\nstill inside"

	chunks := New().Split("i.md", "i.md", raw, StrategySection, 512)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Top", chunks[0].Heading)
}

func TestSplit_OversizeSectionResplit(t *testing.T) {
	para := strings.Repeat("word ", 60) // ~75 tokens
	raw := "# Big\n" + para + "\n\n" + para + "\n\n" + para

	chunks := New().Split("j.md", "j.md", raw, StrategySection, 100)

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenCount, 110, "chunk stays near the budget")
		assert.Equal(t, "Big", ch.Heading)
	}
}

func TestSplit_AtomicOversizeLine(t *testing.T) {
	huge := strings.Repeat("y", 4000) // one irreducible ~1000-token line

	chunks := New().Split("k.md", "k.md", huge, StrategyParagraph, 100)

	require.Len(t, chunks, 1)
	assert.Greater(t, chunks[0].TokenCount, 100)
}

// Chunks concatenated in order must reconstruct the body modulo whitespace
// trimming at chunk boundaries.
func TestSplit_Reconstruction(t *testing.T) {
	raw := strings.Join([]string{
		"# One",
		"alpha beta",
		"gamma",
		"",
		"## Two",
		"delta",
		"```",
		"fenced content",
		"```",
		"epsilon",
	}, "\n")

	for _, strategy := range []Strategy{StrategySection, StrategyParagraph, StrategyFixed} {
		chunks := New().Split("l.md", "l.md", raw, strategy, 512)
		require.NotEmpty(t, chunks, "strategy %s", strategy)

		var joined []string
		for _, ch := range chunks {
			joined = append(joined, ch.Content)
		}
		got := normalizeWS(strings.Join(joined, "\n"))
		want := normalizeWS(raw)
		assert.Equal(t, want, got, "strategy %s", strategy)
	}
}

func normalizeWS(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, strings.TrimRight(line, " \t"))
		}
	}
	return strings.Join(out, "\n")
}

func TestSplit_LineRangesContiguousPerChunk(t *testing.T) {
	raw := "a\nb\nc\n\nd\ne"
	chunks := New().Split("m.md", "m.md", raw, StrategyParagraph, 512)

	require.Len(t, chunks, 2)
	for _, ch := range chunks {
		lineCount := strings.Count(ch.Content, "\n") + 1
		assert.Equal(t, ch.EndLine-ch.StartLine+1, lineCount)
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}

func TestOrdinal(t *testing.T) {
	assert.Equal(t, 0, Ordinal(ChunkID("notes.md", 0)))
	assert.Equal(t, 2, Ordinal(ChunkID("notes.md", 2)))
	assert.Equal(t, 10, Ordinal(ChunkID("notes.md", 10)))
	assert.Equal(t, 7, Ordinal(ChunkID("dir::odd/name.md", 7)))
	assert.Equal(t, 0, Ordinal("no-separator"))
	assert.Equal(t, 0, Ordinal("bad.md::x"))
}
